// Package catalog parses catalog service flags and launches the service.
package catalog

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/meteorfall/internal/platform/cmd"
	server "github.com/louisbranch/meteorfall/internal/services/catalog/app"
)

// Config holds catalog command configuration.
type Config struct {
	Port        int           `env:"CATALOG_PORT" envDefault:"8090"`
	DBPath      string        `env:"CATALOG_DB_PATH" envDefault:"data/catalog.db"`
	Prefix      string        `env:"CATALOG_PREFIX" envDefault:"/api/v1/meteor"`
	CacheMaxAge time.Duration `env:"CATALOG_CACHE_MAX_AGE" envDefault:"24h"`
	CORSOrigin  string        `env:"CATALOG_CORS_ORIGIN" envDefault:"*"`
	RateLimit   float64       `env:"CATALOG_RATE_LIMIT" envDefault:"0"`
	RateBurst   int           `env:"CATALOG_RATE_BURST" envDefault:"20"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The catalog HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the catalog SQLite database")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Extra path prefix the API is mounted under")
	fs.DurationVar(&cfg.CacheMaxAge, "cache-max-age", cfg.CacheMaxAge, "Client cache lifetime for record responses")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Sustained requests per second (0 disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}
	return cfg, nil
}

// Run starts the catalog HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCatalog, func(ctx context.Context) error {
		return server.Run(ctx, cfg.serverConfig())
	})
}

func (c Config) serverConfig() server.Config {
	return server.Config{
		Addr:        fmt.Sprintf(":%d", c.Port),
		DBPath:      c.DBPath,
		Prefix:      c.Prefix,
		CacheMaxAge: c.CacheMaxAge,
		CORSOrigin:  c.CORSOrigin,
		RateLimit:   c.RateLimit,
		RateBurst:   c.RateBurst,
	}
}
