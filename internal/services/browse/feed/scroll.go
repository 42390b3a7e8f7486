package feed

// ScrollState is the state of the incremental feed driver.
type ScrollState int

const (
	ScrollIdle ScrollState = iota
	ScrollLoading
	ScrollExhausted
)

func (s ScrollState) String() string {
	switch s {
	case ScrollIdle:
		return "idle"
	case ScrollLoading:
		return "loading"
	case ScrollExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ScrollEvent is an input to StepScroll.
type ScrollEvent int

const (
	// SentinelShown means the end of the list became visible.
	SentinelShown ScrollEvent = iota
	// PageLoaded means a non-empty page arrived.
	PageLoaded
	// PageEmpty means the catalog has no records past the offset.
	PageEmpty
	// PageFailed means the page fetch returned an error.
	PageFailed
	// ScrollSuspended means a partition became active while scrolling.
	ScrollSuspended
)

// StepScroll is the transition function of the scroll driver. incremental
// reports whether the loaded set is in incremental mode. fetch is true when
// the transition must issue a page request at the current offset.
func StepScroll(state ScrollState, incremental bool, event ScrollEvent) (next ScrollState, fetch bool) {
	switch event {
	case SentinelShown:
		if state == ScrollIdle && incremental {
			return ScrollLoading, true
		}
	case PageLoaded, PageFailed:
		if state == ScrollLoading {
			return ScrollIdle, false
		}
	case ScrollSuspended:
		// A mode change lifts exhaustion; an empty page re-exhausts.
		if state == ScrollLoading || state == ScrollExhausted {
			return ScrollIdle, false
		}
	case PageEmpty:
		if state == ScrollLoading {
			return ScrollExhausted, false
		}
	}
	return state, false
}

// Outcome classifies the arrival of a fetch result.
type Outcome int

const (
	// OutcomeApplied means the result updated the loaded set.
	OutcomeApplied Outcome = iota
	// OutcomeFailed means the fetch failed and the set is unchanged.
	OutcomeFailed
	// OutcomeStale means the result belongs to a superseded request.
	OutcomeStale
)

// PageRequest is a page fetch issued by the scroll driver.
type PageRequest struct {
	Ticket uint64
	Offset int
}

// ScrollController drives the incremental feed. At most one page is in
// flight; its ticket is zero when nothing is pending.
type ScrollController struct {
	state  ScrollState
	seq    uint64
	ticket uint64
}

// State returns the driver state.
func (c *ScrollController) State() ScrollState {
	return c.state
}

// Pending reports whether a page request is in flight.
func (c *ScrollController) Pending() bool {
	return c.ticket != 0
}

// Visible handles the sentinel becoming visible and returns the page to
// fetch, if any.
func (c *ScrollController) Visible(set *LoadedSet) (PageRequest, bool) {
	next, fetch := StepScroll(c.state, set.Incremental(), SentinelShown)
	c.state = next
	if !fetch {
		return PageRequest{}, false
	}
	c.seq++
	c.ticket = c.seq
	return PageRequest{Ticket: c.ticket, Offset: set.NextOffset()}, true
}

// Suspend abandons the page in flight so its result is discarded, and
// returns the driver to Idle for when incremental mode resumes.
func (c *ScrollController) Suspend() {
	c.state, _ = StepScroll(c.state, false, ScrollSuspended)
	c.ticket = 0
}

// PageArrived applies a page result to the set.
func (c *ScrollController) PageArrived(set *LoadedSet, ticket uint64, records []Record, err error) Outcome {
	if ticket == 0 || ticket != c.ticket || !set.Incremental() {
		return OutcomeStale
	}
	c.ticket = 0
	switch {
	case err != nil:
		c.state, _ = StepScroll(c.state, true, PageFailed)
		return OutcomeFailed
	case len(records) == 0:
		c.state, _ = StepScroll(c.state, true, PageEmpty)
		set.exhaust()
	default:
		c.state, _ = StepScroll(c.state, true, PageLoaded)
		set.appendPage(records)
	}
	return OutcomeApplied
}
