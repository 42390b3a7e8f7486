// Package seed parses catalog-seed flags and loads a dataset into the catalog.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	entrypoint "github.com/louisbranch/meteorfall/internal/platform/cmd"
	catalogseed "github.com/louisbranch/meteorfall/internal/services/catalog/seed"
	catalogsqlite "github.com/louisbranch/meteorfall/internal/services/catalog/storage/sqlite"
)

// Config holds catalog-seed command configuration.
type Config struct {
	DBPath  string `env:"SEED_DB_PATH" envDefault:"data/catalog.db"`
	Dataset string `env:"SEED_DATASET"`
	Replace bool   `env:"SEED_REPLACE" envDefault:"true"`
	DryRun  bool
	Verbose bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "catalog database path")
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "meteorite dataset JSON file (.json or .json.zst)")
	fs.BoolVar(&cfg.Replace, "replace", cfg.Replace, "clear the catalog before loading")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	fs.BoolVar(&cfg.Verbose, "v", false, "list skipped rows")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Dataset) == "" {
		return Config{}, errors.New("dataset is required")
	}
	return cfg, nil
}

// Run loads the dataset and reports what was imported to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	dataset, err := catalogseed.ReadFile(cfg.Dataset)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		for _, skipped := range dataset.Skipped {
			fmt.Fprintf(out, "skip row %d: %s\n", skipped.Index, skipped.Reason)
		}
	}
	if cfg.DryRun {
		_, err := fmt.Fprintf(out, "validated %d record(s), %d skipped\n", len(dataset.Records), len(dataset.Skipped))
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := catalogsqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	result, err := catalogseed.Import(ctx, store, dataset, cfg.Replace)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d record(s) into %s, %d skipped\n", result.Imported, cfg.DBPath, result.Skipped)
	return err
}
