// Package httpapi serves the catalog read API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/meteorfall/internal/platform/errors"
	"github.com/louisbranch/meteorfall/internal/platform/httpx"
	platformotel "github.com/louisbranch/meteorfall/internal/platform/otel"
	"github.com/louisbranch/meteorfall/internal/platform/pagination"
	"github.com/louisbranch/meteorfall/internal/platform/timeouts"
	"github.com/louisbranch/meteorfall/internal/services/catalog/api/wire"
	"github.com/louisbranch/meteorfall/internal/services/catalog/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPrefix is the public mount point of the API.
const DefaultPrefix = "/api/v1/meteor"

// Store is the read surface the handlers need.
type Store interface {
	storage.RecordReader
	storage.PartitionIndex
	Ping(ctx context.Context) error
}

// Options tune the handler.
type Options struct {
	// Prefix mounts every route a second time under this path. Empty skips
	// the prefixed mount.
	Prefix string
	// CacheMaxAge is the client cache lifetime declared on record responses.
	CacheMaxAge time.Duration
	// QueryTimeout caps one store query.
	QueryTimeout time.Duration
}

// Handler serves the catalog routes.
type Handler struct {
	store   Store
	opts    Options
	tracer  trace.Tracer
	records http.Handler
	mux     *http.ServeMux
}

// NewHandler builds the route table over store.
func NewHandler(store Store, opts Options) (*Handler, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = timeouts.StoreQuery
	}
	opts.Prefix = "/" + strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if opts.Prefix == "/" {
		opts.Prefix = ""
	}

	h := &Handler{
		store:  store,
		opts:   opts,
		tracer: platformotel.Tracer("catalog/http"),
		mux:    http.NewServeMux(),
	}
	cached := httpx.CacheControl(opts.CacheMaxAge)

	for _, prefix := range uniquePrefixes(opts.Prefix) {
		h.mux.HandleFunc("GET "+prefix+"/partitions", h.handlePartitions)
		h.mux.Handle("GET "+prefix+"/records", cached(http.HandlerFunc(h.handlePage)))
		h.mux.Handle("GET "+prefix+"/records/{key}", cached(http.HandlerFunc(h.handlePartition)))
		h.mux.HandleFunc("GET "+prefix+"/healthz", h.handleHealth)
	}
	if opts.Prefix != "" {
		// Legacy paths: /years with year-keyed rows, the bare prefix for pages
		// and /{key} for a year.
		h.mux.HandleFunc("GET "+opts.Prefix+"/years", h.handleYears)
		h.mux.Handle("GET "+opts.Prefix, cached(http.HandlerFunc(h.handlePage)))
		h.mux.Handle("GET "+opts.Prefix+"/{$}", cached(http.HandlerFunc(h.handlePage)))
		h.mux.Handle("GET "+opts.Prefix+"/{key}", cached(http.HandlerFunc(h.handlePartition)))
	}
	return h, nil
}

func uniquePrefixes(prefix string) []string {
	if prefix == "" {
		return []string{""}
	}
	return []string{"", prefix}
}

// ServeHTTP dispatches to the route table.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handlePartitions(w http.ResponseWriter, r *http.Request) {
	h.serveSummaries(w, r, "catalog.partitions", func(summaries []storage.PartitionSummary) any {
		body := make([]wire.PartitionSummary, 0, len(summaries))
		for _, summary := range summaries {
			body = append(body, wire.PartitionSummary{Key: summary.Year, Max: summary.MaxMass})
		}
		return body
	})
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	h.serveSummaries(w, r, "catalog.years", func(summaries []storage.PartitionSummary) any {
		body := make([]wire.YearSummary, 0, len(summaries))
		for _, summary := range summaries {
			body = append(body, wire.YearSummary{Year: summary.Year, Max: summary.MaxMass})
		}
		return body
	})
}

func (h *Handler) serveSummaries(w http.ResponseWriter, r *http.Request, spanName string, encode func([]storage.PartitionSummary) any) {
	ctx, span, cancel := h.begin(r, spanName)
	defer cancel()
	defer span.End()

	summaries, err := h.store.ListPartitionSummaries(ctx)
	if err != nil {
		h.fail(w, r, span, "list partitions", storeError(err))
		return
	}
	span.SetAttributes(attribute.Int("catalog.partitions", len(summaries)))
	h.write(w, r, encode(summaries))
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, span, cancel := h.begin(r, "catalog.page")
	defer cancel()
	defer span.End()

	offset := pagination.ParseOffset(r.URL.Query().Get("offset"))
	span.SetAttributes(attribute.Int("catalog.offset", offset))

	records, err := h.store.ListRecords(ctx, offset, storage.PageSize)
	if err != nil {
		h.fail(w, r, span, "list records", storeError(err))
		return
	}
	span.SetAttributes(attribute.Int("catalog.records", len(records)))
	h.write(w, r, toWireRecords(records))
}

func (h *Handler) handlePartition(w http.ResponseWriter, r *http.Request) {
	ctx, span, cancel := h.begin(r, "catalog.partition")
	defer cancel()
	defer span.End()

	year, err := parseKey(r.PathValue("key"))
	if err != nil {
		h.fail(w, r, span, "parse key", err)
		return
	}
	span.SetAttributes(attribute.Int("catalog.year", year))

	records, err := h.store.ListRecordsByYear(ctx, year)
	if err != nil {
		h.fail(w, r, span, "list records by year", storeError(err))
		return
	}
	span.SetAttributes(attribute.Int("catalog.records", len(records)))
	h.write(w, r, toWireRecords(records))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span, cancel := h.begin(r, "catalog.health")
	defer cancel()
	defer span.End()

	if err := h.store.Ping(ctx); err != nil {
		h.fail(w, r, span, "ping store", storeError(err))
		return
	}
	h.write(w, r, wire.Health{Status: "ok"})
}

func (h *Handler) begin(r *http.Request, name string) (context.Context, trace.Span, context.CancelFunc) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
	ctx, cancel := context.WithTimeout(ctx, h.opts.QueryTimeout)
	return ctx, span, cancel
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, payload any) {
	if err := httpx.WriteJSON(w, http.StatusOK, payload); err != nil {
		log.Printf("write response path=%s request_id=%s err=%v", r.URL.Path, r.Header.Get("X-Request-ID"), err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s failed path=%s request_id=%s status=%d err=%v", op, r.URL.Path, r.Header.Get("X-Request-ID"), status, err)
	}
	httpx.WriteError(w, err)
}

// parseKey accepts only a base-10 integer year.
func parseKey(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInvalidInput, "partition key must be an integer", err)
	}
	return year, nil
}

func storeError(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperrors.Wrap(apperrors.KindUnavailable, "catalog store unavailable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindUnavailable, "catalog query timed out", err)
	}
	return err
}

func toWireRecords(records []storage.Record) []wire.Record {
	out := make([]wire.Record, 0, len(records))
	for _, record := range records {
		out = append(out, wire.Record{
			ID:       record.ID,
			Name:     record.Name,
			Year:     record.Year,
			Mass:     record.Mass,
			RecLat:   record.Lat,
			RecLong:  record.Long,
			RecClass: record.Class,
		})
	}
	return out
}
