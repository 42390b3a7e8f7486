package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/meteorfall/internal/services/catalog/api/wire"
	"github.com/louisbranch/meteorfall/internal/services/catalog/storage"
)

func TestPageNormalizesMalformedOffset(t *testing.T) {
	t.Parallel()

	store := newFakeStore(120)
	h := newTestHandler(t, store)

	for _, raw := range []string{"", "abc", "-10", "3.5"} {
		rr := serve(h, "/records?offset="+raw)
		if rr.Code != http.StatusOK {
			t.Fatalf("offset %q status = %d, want %d", raw, rr.Code, http.StatusOK)
		}
		var got []wire.Record
		decode(t, rr, &got)
		if len(got) != storage.PageSize || got[0].ID != store.records[0].ID {
			t.Fatalf("offset %q did not serve the first page", raw)
		}
	}
	if store.lastOffset != 0 {
		t.Fatalf("store offset = %d, want 0", store.lastOffset)
	}
}

func TestPageSetsLongLivedCacheHeader(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newFakeStore(10))
	rr := serve(h, "/records?offset=0")
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Fatalf("cache-control = %q", got)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("content-type = %q", got)
	}
}

func TestPagesConcatenateToFullSet(t *testing.T) {
	t.Parallel()

	store := newFakeStore(120)
	h := newTestHandler(t, store)

	var (
		all    []wire.Record
		counts []int
	)
	for offset := 0; ; {
		var page []wire.Record
		decode(t, serve(h, fmt.Sprintf("/records?offset=%d", offset)), &page)
		counts = append(counts, len(page))
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += len(page)
	}
	if diff := cmp.Diff([]int{50, 50, 20, 0}, counts); diff != "" {
		t.Fatalf("page sizes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(toWireRecords(store.records), all); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestPartitionRejectsNonIntegerKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore(10)
	h := newTestHandler(t, store)

	rr := serve(h, "/records/nineteen")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var body wire.ErrorBody
	decode(t, rr, &body)
	if body.Error == "" {
		t.Fatal("expected error message")
	}
	if store.yearCalls != 0 {
		t.Fatalf("store reached %d times, want 0", store.yearCalls)
	}
	if got := rr.Header().Get("Cache-Control"); got != "" {
		t.Fatalf("cache-control on error = %q, want empty", got)
	}
}

func TestPartitionReturnsEmptyArrayForUnknownYear(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newFakeStore(10))
	rr := serve(h, "/records/1200")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Body.String(); got != "[]\n" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestPartitionServesOnlyThatYear(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newFakeStore(40))
	var got []wire.Record
	decode(t, serve(h, "/records/2003"), &got)
	if len(got) == 0 {
		t.Fatal("expected records")
	}
	for _, record := range got {
		if record.Year != 2003 {
			t.Fatalf("record %d year = %d, want 2003", record.ID, record.Year)
		}
	}
}

func TestPartitionsAscendingWithMax(t *testing.T) {
	t.Parallel()

	store := &fakeStore{summaries: []storage.PartitionSummary{
		{Year: 2000, MaxMass: 10},
		{Year: 2005, MaxMass: 40},
		{Year: 2010, MaxMass: 5},
	}}
	h := newTestHandler(t, store)

	var got []wire.PartitionSummary
	decode(t, serve(h, "/partitions"), &got)
	want := []wire.PartitionSummary{{Key: 2000, Max: 10}, {Key: 2005, Max: 40}, {Key: 2010, Max: 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("partitions (-want +got):\n%s", diff)
	}
}

func TestLegacyYearsServesYearKeyedRows(t *testing.T) {
	t.Parallel()

	store := &fakeStore{summaries: []storage.PartitionSummary{
		{Year: 1880, MaxMass: 21},
		{Year: 1952, MaxMass: 107000},
	}}
	h := newTestHandler(t, store)

	rr := serve(h, "/api/v1/meteor/years")
	if body := rr.Body.String(); !strings.Contains(body, `"year":1880`) || strings.Contains(body, `"key"`) {
		t.Fatalf("years body = %s, want year-keyed rows", body)
	}
	var got []wire.YearSummary
	decode(t, rr, &got)
	want := []wire.YearSummary{{Year: 1880, Max: 21}, {Year: 1952, Max: 107000}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("years (-want +got):\n%s", diff)
	}

	var partitions []wire.PartitionSummary
	decode(t, serve(h, "/api/v1/meteor/partitions"), &partitions)
	if len(partitions) != 2 || partitions[1].Key != 1952 {
		t.Fatalf("partitions = %+v, want key-based rows", partitions)
	}
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	t.Parallel()

	store := newFakeStore(10)
	store.err = fmt.Errorf("list: %w", storage.ErrUnavailable)
	h := newTestHandler(t, store)

	for _, path := range []string{"/partitions", "/records", "/records/2001", "/healthz"} {
		rr := serve(h, path)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d, want %d", path, rr.Code, http.StatusServiceUnavailable)
		}
		var body wire.ErrorBody
		decode(t, rr, &body)
		if body.Error == "" {
			t.Fatalf("%s missing error payload", path)
		}
	}
}

func TestUnexpectedStoreErrorMapsTo500(t *testing.T) {
	t.Parallel()

	store := newFakeStore(10)
	store.err = errors.New("no such column: mass")
	h := newTestHandler(t, store)

	rr := serve(h, "/partitions")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestPrefixedLegacyRoutes(t *testing.T) {
	t.Parallel()

	store := newFakeStore(60)
	h := newTestHandler(t, store)

	testCases := []struct {
		path string
		want int
	}{
		{path: "/api/v1/meteor/years", want: http.StatusOK},
		{path: "/api/v1/meteor?offset=50", want: http.StatusOK},
		{path: "/api/v1/meteor/?offset=50", want: http.StatusOK},
		{path: "/api/v1/meteor/2001", want: http.StatusOK},
		{path: "/api/v1/meteor/records?offset=0", want: http.StatusOK},
		{path: "/api/v1/meteor/partitions", want: http.StatusOK},
		{path: "/api/v1/meteor/abc", want: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		if rr := serve(h, tc.path); rr.Code != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.path, rr.Code, tc.want)
		}
	}

	var page []wire.Record
	decode(t, serve(h, "/api/v1/meteor?offset=50"), &page)
	if len(page) != 10 {
		t.Fatalf("second page len = %d, want 10", len(page))
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newFakeStore(1))
	var body wire.Health
	decode(t, serve(h, "/healthz"), &body)
	if body.Status != "ok" {
		t.Fatalf("status = %q, want ok", body.Status)
	}
}

func TestNewHandlerRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, Options{}); err == nil {
		t.Fatal("expected missing store error")
	}
}

func newTestHandler(t *testing.T, store Store) *Handler {
	t.Helper()
	h, err := NewHandler(store, Options{Prefix: DefaultPrefix, CacheMaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

type fakeStore struct {
	records   []storage.Record
	summaries []storage.PartitionSummary
	err       error

	lastOffset int
	yearCalls  int
}

func newFakeStore(n int) *fakeStore {
	records := make([]storage.Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, storage.Record{
			ID:   int64(i),
			Name: fmt.Sprintf("fall-%d", i),
			Year: 2000 + i%5,
			Mass: float64(i),
		})
	}
	sort.SliceStable(records, func(a, b int) bool {
		if records[a].Year != records[b].Year {
			return records[a].Year < records[b].Year
		}
		return records[a].ID < records[b].ID
	})
	return &fakeStore{records: records}
}

func (f *fakeStore) ListRecords(_ context.Context, offset, limit int) ([]storage.Record, error) {
	f.lastOffset = offset
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.records) {
		return []storage.Record{}, nil
	}
	end := min(offset+limit, len(f.records))
	return f.records[offset:end], nil
}

func (f *fakeStore) ListRecordsByYear(_ context.Context, year int) ([]storage.Record, error) {
	f.yearCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := []storage.Record{}
	for _, record := range f.records {
		if record.Year == year {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPartitionSummaries(context.Context) ([]storage.PartitionSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.err
}
