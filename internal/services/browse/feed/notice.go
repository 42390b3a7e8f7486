package feed

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// NoticeKind identifies a user-facing notice.
type NoticeKind int

const (
	// NoticeFallback means the filter moved the selection to another year.
	NoticeFallback NoticeKind = iota + 1
	// NoticeNoResults means no year has a fall heavier than the threshold.
	NoticeNoResults
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeFallback:
		return "fallback"
	case NoticeNoResults:
		return "no-results"
	default:
		return "unknown"
	}
}

// Notice is emitted by a fallback evaluation.
type Notice struct {
	Kind      NoticeKind
	Key       int
	Threshold float64
	Title     string
	Text      string
}

const (
	msgFallbackTitle  = "notice.fallback.title"
	msgFallbackText   = "notice.fallback.text"
	msgNoResultsTitle = "notice.no_results.title"
)

var noticeMessages = map[string]string{
	msgFallbackTitle: "There were no meteors greater than your chosen mass found in your selected year",
	msgFallbackText: "Showing you meteors from the year %s which is the first year where there is a meteor " +
		"greater than your filtered mass. The year selection list now contains only years where there " +
		"exists a meteor with a mass greater than %v.",
	msgNoResultsTitle: "There were no meteors found with mass greater than %v",
}

func newNoticeCatalog() (*catalog.Builder, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range noticeMessages {
		if err := builder.SetString(language.English, key, msg); err != nil {
			return nil, err
		}
	}
	return builder, nil
}

// noticePrinter formats notices for one language.
type noticePrinter struct {
	printer *message.Printer
}

func newNoticePrinter(tag language.Tag) (noticePrinter, error) {
	cat, err := newNoticeCatalog()
	if err != nil {
		return noticePrinter{}, err
	}
	return noticePrinter{printer: message.NewPrinter(tag, message.Catalog(cat))}, nil
}

func (p noticePrinter) fallback(key int, threshold float64) Notice {
	// Years are printed without digit grouping.
	return Notice{
		Kind:      NoticeFallback,
		Key:       key,
		Threshold: threshold,
		Title:     p.printer.Sprintf(msgFallbackTitle),
		Text:      p.printer.Sprintf(msgFallbackText, strconv.Itoa(key), threshold),
	}
}

func (p noticePrinter) noResults(threshold float64) Notice {
	return Notice{
		Kind:      NoticeNoResults,
		Threshold: threshold,
		Title:     p.printer.Sprintf(msgNoResultsTitle, threshold),
	}
}
