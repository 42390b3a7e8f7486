// Package server wires the catalog runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/meteorfall/internal/platform/httpx"
	"github.com/louisbranch/meteorfall/internal/platform/timeouts"
	"github.com/louisbranch/meteorfall/internal/services/catalog/api/httpapi"
	catalogsqlite "github.com/louisbranch/meteorfall/internal/services/catalog/storage/sqlite"
	"golang.org/x/time/rate"
)

// Config holds catalog server runtime settings.
type Config struct {
	Addr        string
	DBPath      string
	Prefix      string
	CacheMaxAge time.Duration
	CORSOrigin  string
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server hosts the catalog HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *catalogsqlite.Store
}

// New opens the store, builds the handler chain and binds the listener.
func New(ctx context.Context, cfg Config) (*Server, error) {
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join("data", "catalog.db")
	}
	store, err := openCatalogStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	handler, err := buildHandler(store, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store: store,
	}, nil
}

func buildHandler(store *catalogsqlite.Store, cfg Config) (http.Handler, error) {
	api, err := httpapi.NewHandler(store, httpapi.Options{
		Prefix:      cfg.Prefix,
		CacheMaxAge: cfg.CacheMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}
	compress, err := httpx.Compress()
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return httpx.Chain(
		api,
		httpx.RequestID(),
		httpx.RecoverPanic(),
		httpx.CORS(cfg.CORSOrigin),
		httpx.RateLimit(limiter),
		compress,
	), nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a catalog server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx)
}

// ListenAndServe runs the HTTP server until the context ends.
//
// On cancellation, it performs a bounded shutdown so in-flight requests
// are drained before the store closes.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("catalog server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	defer s.Close()

	log.Printf("catalog server listening at %v", s.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases catalog server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close catalog store: %v", err)
		}
		s.store = nil
	}
}

func openCatalogStore(ctx context.Context, path string) (*catalogsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := catalogsqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open catalog sqlite store: %w", err)
	}
	return store, nil
}
