package feed

// Visible returns the records heavier than threshold. A nil threshold
// returns records unchanged.
func Visible(records []Record, threshold *float64) []Record {
	if threshold == nil {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, record := range records {
		if record.Mass > *threshold {
			out = append(out, record)
		}
	}
	return out
}

// Choices returns the partitions whose maximum mass exceeds threshold, in
// the order given. A nil threshold returns every summary.
func Choices(summaries []PartitionSummary, threshold *float64) []PartitionSummary {
	if threshold == nil {
		return summaries
	}
	out := make([]PartitionSummary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Max > *threshold {
			out = append(out, summary)
		}
	}
	return out
}

// FirstAbove returns the first summary key whose maximum exceeds threshold.
// Summaries are expected in ascending key order.
func FirstAbove(summaries []PartitionSummary, threshold float64) (int, bool) {
	for _, summary := range summaries {
		if summary.Max > threshold {
			return summary.Key, true
		}
	}
	return 0, false
}

// Action is the decision of a fallback evaluation.
type Action int

const (
	// ActionNone leaves the selection alone.
	ActionNone Action = iota
	// ActionNeedSummaries defers the evaluation until summaries arrive.
	ActionNeedSummaries
	// ActionSwitch selects Resolution.Key.
	ActionSwitch
	// ActionNoResults reports that no partition can satisfy the threshold.
	ActionNoResults
)

// Resolution is the outcome of FallbackResolver.Resolve.
type Resolution struct {
	Action Action
	Key    int
}

// FallbackInput is the state a fallback evaluation reads.
type FallbackInput struct {
	Threshold       *float64
	ActiveKey       int
	PartitionActive bool
	PartitionLoaded bool
	VisibleCount    int
	Summaries       []PartitionSummary
	SummariesLoaded bool
}

// maxHops bounds the automatic partition switches per user action.
const maxHops = 1

// FallbackResolver picks another partition when the mass filter empties the
// active one.
type FallbackResolver struct {
	hops int
}

// Reset starts a new user action.
func (r *FallbackResolver) Reset() {
	r.hops = 0
}

// Resolve evaluates the fallback rule once.
func (r *FallbackResolver) Resolve(in FallbackInput) Resolution {
	if in.Threshold == nil || !in.PartitionActive || !in.PartitionLoaded || in.VisibleCount > 0 {
		return Resolution{Action: ActionNone}
	}
	if !in.SummariesLoaded {
		return Resolution{Action: ActionNeedSummaries}
	}
	key, ok := FirstAbove(in.Summaries, *in.Threshold)
	if !ok || key == in.ActiveKey || r.hops >= maxHops {
		return Resolution{Action: ActionNoResults}
	}
	r.hops++
	return Resolution{Action: ActionSwitch, Key: key}
}
