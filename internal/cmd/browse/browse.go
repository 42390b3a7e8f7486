// Package browse parses browse flags and runs the interactive catalog browser.
package browse

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	entrypoint "github.com/louisbranch/meteorfall/internal/platform/cmd"
	"github.com/louisbranch/meteorfall/internal/platform/timeouts"
	"github.com/louisbranch/meteorfall/internal/services/browse/client"
	"github.com/louisbranch/meteorfall/internal/services/browse/feed"
	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"
)

// Config holds browse command configuration.
type Config struct {
	APIURL  string        `env:"BROWSE_API_URL" envDefault:"http://localhost:8090/api/v1/meteor"`
	Timeout time.Duration `env:"BROWSE_TIMEOUT" envDefault:"15s"`
	History string        `env:"BROWSE_HISTORY"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Base URL of the catalog API")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for each catalog request")
	fs.StringVar(&cfg.History, "history", cfg.History, "Command history file (default ~/.meteorfall_history)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return Config{}, errors.New("api URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.ClientRequest
	}
	return cfg, nil
}

// Run connects to the catalog and reads commands from the terminal until
// the user quits or ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBrowse, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	source, err := client.New(cfg.APIURL, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return err
	}
	if err := source.Health(ctx); err != nil {
		log.Printf("catalog not healthy at %s: %v", cfg.APIURL, err)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	historyPath := cfg.History
	if historyPath == "" {
		historyPath = defaultHistoryFile()
	}
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, historyPath)

	out := &syncWriter{w: os.Stdout}
	return Browse(ctx, source, line, out, cfg.Timeout)
}

// Browse runs a feed session over source and a command loop over in.
func Browse(ctx context.Context, source feed.Source, in LineReader, out io.Writer, timeout time.Duration) error {
	session, err := feed.NewSession(source, &printObserver{out: out}, feed.WithFetchTimeout(timeout))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return session.Run(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		r := &repl{session: session, in: in, out: out, settle: settleTimeout(timeout)}
		return r.run(groupCtx)
	})
	return group.Wait()
}

// settleTimeout bounds how long a command waits for its fetches.
func settleTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = timeouts.ClientRequest
	}
	return 2 * timeout
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".meteorfall_history")
}

func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// syncWriter serializes writes from the command loop and the session
// observer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printObserver prints notices and fetch failures as they happen.
type printObserver struct {
	out io.Writer
}

func (o *printObserver) Changed(feed.View) {}

func (o *printObserver) Notice(n feed.Notice) {
	fmt.Fprintf(o.out, "\n! %s\n", n.Title)
	if n.Text != "" {
		fmt.Fprintf(o.out, "  %s\n", n.Text)
	}
}

func (o *printObserver) FetchFailed(kind feed.FetchKind, err error) {
	fmt.Fprintf(o.out, "\n! %s request failed: %v\n", kind, err)
	switch {
	case client.IsStatus(err, http.StatusTooManyRequests):
		fmt.Fprintln(o.out, "  the catalog is rate limiting requests, wait a moment and retry")
	case client.IsStatus(err, http.StatusServiceUnavailable):
		fmt.Fprintln(o.out, "  the catalog store is unavailable, retry later")
	}
}
