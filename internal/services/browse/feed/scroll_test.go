package feed

import (
	"errors"
	"testing"
)

func TestStepScroll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		state       ScrollState
		incremental bool
		event       ScrollEvent
		want        ScrollState
		wantFetch   bool
	}{
		{name: "idle visible fetches", state: ScrollIdle, incremental: true, event: SentinelShown, want: ScrollLoading, wantFetch: true},
		{name: "idle visible in partition mode", state: ScrollIdle, incremental: false, event: SentinelShown, want: ScrollIdle},
		{name: "loading visible is no-op", state: ScrollLoading, incremental: true, event: SentinelShown, want: ScrollLoading},
		{name: "exhausted visible is no-op", state: ScrollExhausted, incremental: true, event: SentinelShown, want: ScrollExhausted},
		{name: "page loaded", state: ScrollLoading, incremental: true, event: PageLoaded, want: ScrollIdle},
		{name: "page empty", state: ScrollLoading, incremental: true, event: PageEmpty, want: ScrollExhausted},
		{name: "page failed", state: ScrollLoading, incremental: true, event: PageFailed, want: ScrollIdle},
		{name: "suspend while loading", state: ScrollLoading, incremental: false, event: ScrollSuspended, want: ScrollIdle},
		{name: "suspend lifts exhausted", state: ScrollExhausted, incremental: false, event: ScrollSuspended, want: ScrollIdle},
		{name: "stray page while idle", state: ScrollIdle, incremental: true, event: PageLoaded, want: ScrollIdle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, fetch := StepScroll(tc.state, tc.incremental, tc.event)
			if got != tc.want || fetch != tc.wantFetch {
				t.Fatalf("StepScroll(%v, %v, %v) = (%v, %v), want (%v, %v)", tc.state, tc.incremental, tc.event, got, fetch, tc.want, tc.wantFetch)
			}
		})
	}
}

func TestScrollControllerPagesUntilExhausted(t *testing.T) {
	t.Parallel()

	catalog := makeRecords(120, 2000)
	set := NewLoadedSet()
	var c ScrollController
	for i := 0; i < 10; i++ {
		req, ok := c.Visible(set)
		if !ok {
			break
		}
		end := req.Offset + 50
		if end > len(catalog) {
			end = len(catalog)
		}
		var page []Record
		if req.Offset < len(catalog) {
			page = catalog[req.Offset:end]
		}
		if got := c.PageArrived(set, req.Ticket, page, nil); got != OutcomeApplied {
			t.Fatalf("page at %d outcome = %v", req.Offset, got)
		}
	}

	if c.State() != ScrollExhausted {
		t.Fatalf("state = %v, want exhausted", c.State())
	}
	if set.NextOffset() != 120 || set.MoreAvailable() {
		t.Fatalf("offset = %d more = %v, want 120 false", set.NextOffset(), set.MoreAvailable())
	}
	if _, ok := c.Visible(set); ok {
		t.Fatal("exhausted controller issued a fetch")
	}
}

func TestScrollControllerSingleFetchInFlight(t *testing.T) {
	t.Parallel()

	set := NewLoadedSet()
	var c ScrollController
	if _, ok := c.Visible(set); !ok {
		t.Fatal("expected first fetch")
	}
	if _, ok := c.Visible(set); ok {
		t.Fatal("second fetch issued while loading")
	}
	if !c.Pending() {
		t.Fatal("expected pending page")
	}
}

func TestScrollControllerFailureKeepsSet(t *testing.T) {
	t.Parallel()

	set := NewLoadedSet()
	var c ScrollController
	req, _ := c.Visible(set)
	if got := c.PageArrived(set, req.Ticket, nil, errors.New("boom")); got != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	if c.State() != ScrollIdle || set.NextOffset() != 0 || !set.MoreAvailable() {
		t.Fatalf("state = %v offset = %d more = %v", c.State(), set.NextOffset(), set.MoreAvailable())
	}
	next, ok := c.Visible(set)
	if !ok || next.Offset != 0 {
		t.Fatalf("retry = %+v %v, want offset 0", next, ok)
	}
}

func TestScrollControllerDiscardsPageAfterPartitionSwitch(t *testing.T) {
	t.Parallel()

	set := NewLoadedSet()
	var (
		c   ScrollController
		sel PartitionSelector
	)
	req, _ := c.Visible(set)
	c.Suspend()
	sel.Select(set, 2005)

	if got := c.PageArrived(set, req.Ticket, makeRecords(50, 1990), nil); got != OutcomeStale {
		t.Fatalf("outcome = %v, want stale", got)
	}
	sel.Clear(set)
	if got := c.PageArrived(set, req.Ticket, makeRecords(50, 1990), nil); got != OutcomeStale {
		t.Fatalf("outcome after clear = %v, want stale", got)
	}
	if set.NextOffset() != 0 {
		t.Fatalf("offset = %d, want 0", set.NextOffset())
	}
	if c.State() != ScrollIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestScrollControllerFetchesAgainAfterPartitionRoundTrip(t *testing.T) {
	t.Parallel()

	set := NewLoadedSet()
	var (
		c   ScrollController
		sel PartitionSelector
	)
	req, _ := c.Visible(set)
	c.PageArrived(set, req.Ticket, makeRecords(20, 1990), nil)
	req, _ = c.Visible(set)
	c.PageArrived(set, req.Ticket, []Record{}, nil)
	if c.State() != ScrollExhausted {
		t.Fatalf("state = %v, want exhausted", c.State())
	}

	c.Suspend()
	sel.Select(set, 2000)
	sel.Clear(set)

	next, ok := c.Visible(set)
	if !ok || next.Offset != 20 {
		t.Fatalf("after partition round trip fetch = %+v %v, want offset 20", next, ok)
	}
	if got := c.PageArrived(set, next.Ticket, []Record{}, nil); got != OutcomeApplied {
		t.Fatalf("outcome = %v, want applied", got)
	}
	if c.State() != ScrollExhausted || set.MoreAvailable() {
		t.Fatalf("state = %v more = %v, want exhausted again", c.State(), set.MoreAvailable())
	}
}

func makeRecords(n, year int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{ID: int64(i + 1), Name: "fall", Year: year, Mass: float64(i + 1)}
	}
	return records
}
