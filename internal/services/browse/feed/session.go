package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"
)

// ErrClosed is returned by commands posted after the session stopped.
var ErrClosed = errors.New("feed session closed")

// Source fetches catalog data. Implementations must be safe for concurrent
// use.
type Source interface {
	Page(ctx context.Context, offset int) ([]Record, error)
	ByPartition(ctx context.Context, key int) ([]Record, error)
	Summaries(ctx context.Context) ([]PartitionSummary, error)
}

// FetchKind names the request that failed.
type FetchKind int

const (
	FetchPage FetchKind = iota + 1
	FetchPartition
	FetchSummaries
)

func (k FetchKind) String() string {
	switch k {
	case FetchPage:
		return "page"
	case FetchPartition:
		return "partition"
	case FetchSummaries:
		return "summaries"
	default:
		return "unknown"
	}
}

// Observer receives session updates on the session goroutine. Methods must
// not block and must not call Snapshot.
type Observer interface {
	Changed(View)
	Notice(Notice)
	FetchFailed(FetchKind, error)
}

// View is a copy of the session state.
type View struct {
	Records   []Record
	Mode      Mode
	Scroll    ScrollState
	Threshold *float64
	Choices   []PartitionSummary
	Busy      bool
	// Loaded counts the records of the active mode before filtering.
	Loaded int
}

// Option configures a Session.
type Option func(*Session)

// WithFetchTimeout bounds each fetch. Zero disables the bound.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.fetchTimeout = timeout
	}
}

// WithLanguage selects the language of notices.
func WithLanguage(tag language.Tag) Option {
	return func(s *Session) {
		s.lang = tag
	}
}

// Session serializes browsing on a single goroutine. Commands and fetch
// completions are posted as events to Run; only Run touches the state.
type Session struct {
	source       Source
	observer     Observer
	fetchTimeout time.Duration
	lang         language.Tag
	notices      noticePrinter

	events  chan func()
	done    chan struct{}
	started atomic.Bool
	fetches sync.WaitGroup
	ctx     context.Context

	set       *LoadedSet
	scroll    ScrollController
	selector  PartitionSelector
	resolver  FallbackResolver
	threshold *float64

	summaries       []PartitionSummary
	summariesLoaded bool
	summarySeq      uint64
	summaryTicket   uint64
	pendingFallback bool
}

// NewSession builds a session over source. A nil observer discards updates.
func NewSession(source Source, observer Observer, opts ...Option) (*Session, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Session{
		source:   source,
		observer: observer,
		lang:     language.English,
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		set:      NewLoadedSet(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	notices, err := newNoticePrinter(s.lang)
	if err != nil {
		return nil, fmt.Errorf("build notice catalog: %w", err)
	}
	s.notices = notices
	return s, nil
}

// Run processes events until ctx is canceled. It loads the partition
// summaries first.
func (s *Session) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("feed session already running")
	}
	s.ctx = ctx
	defer func() {
		close(s.done)
		s.fetches.Wait()
	}()

	s.requestSummaries()
	s.notify()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-s.events:
			event()
		}
	}
}

// SentinelVisible reports that the end of the list is on screen.
func (s *Session) SentinelVisible() error {
	return s.post(s.onVisible)
}

// SelectPartition shows every record of key.
func (s *Session) SelectPartition(key int) error {
	return s.post(func() {
		s.resolver.Reset()
		s.selectPartition(key)
	})
}

// ClearPartition returns to the incremental feed.
func (s *Session) ClearPartition() error {
	return s.post(func() {
		s.resolver.Reset()
		s.selector.Clear(s.set)
		s.notify()
	})
}

// SetThreshold sets the mass filter. A nil threshold disables it.
func (s *Session) SetThreshold(threshold *float64) error {
	var value *float64
	if threshold != nil {
		v := *threshold
		value = &v
	}
	return s.post(func() {
		s.resolver.Reset()
		s.threshold = value
		s.evaluate()
		s.notify()
	})
}

// Snapshot returns the current view.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.post(func() { reply <- s.view() }); err != nil {
		return View{}, err
	}
	select {
	case view := <-reply:
		return view, nil
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Session) post(event func()) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// fetch runs call off the loop and posts the completion it returns.
func (s *Session) fetch(call func(ctx context.Context) func()) {
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		ctx := s.ctx
		cancel := func() {}
		if s.fetchTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		}
		complete := call(ctx)
		cancel()
		_ = s.post(complete)
	}()
}

func (s *Session) onVisible() {
	req, ok := s.scroll.Visible(s.set)
	if !ok {
		return
	}
	s.notify()
	s.fetch(func(ctx context.Context) func() {
		records, err := s.source.Page(ctx, req.Offset)
		return func() { s.onPage(req.Ticket, records, err) }
	})
}

func (s *Session) onPage(ticket uint64, records []Record, err error) {
	switch s.scroll.PageArrived(s.set, ticket, records, err) {
	case OutcomeStale:
		return
	case OutcomeFailed:
		s.observer.FetchFailed(FetchPage, err)
	}
	s.notify()
}

func (s *Session) selectPartition(key int) {
	s.scroll.Suspend()
	req := s.selector.Select(s.set, key)
	s.notify()
	s.fetch(func(ctx context.Context) func() {
		records, err := s.source.ByPartition(ctx, req.Key)
		return func() { s.onPartition(req.Ticket, records, err) }
	})
}

func (s *Session) onPartition(ticket uint64, records []Record, err error) {
	switch s.selector.Loaded(s.set, ticket, records, err) {
	case OutcomeStale:
		return
	case OutcomeFailed:
		s.observer.FetchFailed(FetchPartition, err)
	case OutcomeApplied:
		s.evaluate()
	}
	s.notify()
}

func (s *Session) requestSummaries() {
	if s.summaryTicket != 0 {
		return
	}
	s.summarySeq++
	ticket := s.summarySeq
	s.summaryTicket = ticket
	s.fetch(func(ctx context.Context) func() {
		summaries, err := s.source.Summaries(ctx)
		return func() { s.onSummaries(ticket, summaries, err) }
	})
}

func (s *Session) onSummaries(ticket uint64, summaries []PartitionSummary, err error) {
	if ticket != s.summaryTicket {
		return
	}
	s.summaryTicket = 0
	if err != nil {
		s.pendingFallback = false
		s.observer.FetchFailed(FetchSummaries, err)
		s.notify()
		return
	}
	s.summaries = append([]PartitionSummary(nil), summaries...)
	s.summariesLoaded = true
	if s.pendingFallback {
		s.pendingFallback = false
		s.evaluate()
	}
	s.notify()
}

// evaluate runs the fallback rule once against the current state.
func (s *Session) evaluate() {
	key, active := s.set.ActivePartition()
	res := s.resolver.Resolve(FallbackInput{
		Threshold:       s.threshold,
		ActiveKey:       key,
		PartitionActive: active,
		PartitionLoaded: s.set.PartitionLoaded(),
		VisibleCount:    len(Visible(s.set.Records(), s.threshold)),
		Summaries:       s.summaries,
		SummariesLoaded: s.summariesLoaded,
	})
	switch res.Action {
	case ActionNeedSummaries:
		s.pendingFallback = true
		s.requestSummaries()
	case ActionSwitch:
		s.selectPartition(res.Key)
		s.observer.Notice(s.notices.fallback(res.Key, *s.threshold))
	case ActionNoResults:
		s.observer.Notice(s.notices.noResults(*s.threshold))
	}
}

func (s *Session) view() View {
	visible := Visible(s.set.Records(), s.threshold)
	view := View{
		Records: append([]Record(nil), visible...),
		Mode:    s.set.Mode(),
		Scroll:  s.scroll.State(),
		Choices: append([]PartitionSummary(nil), Choices(s.summaries, s.threshold)...),
		Busy:    s.scroll.Pending() || s.selector.Pending() || s.summaryTicket != 0,
		Loaded:  len(s.set.Records()),
	}
	if s.threshold != nil {
		v := *s.threshold
		view.Threshold = &v
	}
	return view
}

func (s *Session) notify() {
	s.observer.Changed(s.view())
}

type nopObserver struct{}

func (nopObserver) Changed(View)                 {}
func (nopObserver) Notice(Notice)                {}
func (nopObserver) FetchFailed(FetchKind, error) {}
