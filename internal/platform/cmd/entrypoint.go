// Package cmd holds the startup plumbing shared by every meteorfall command.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/meteorfall/internal/platform/config"
	"github.com/louisbranch/meteorfall/internal/platform/otel"
)

// telemetryShutdown bounds the final span flush.
const telemetryShutdown = 5 * time.Second

// Service names one meteorfall process for telemetry and log output.
type Service string

const (
	ServiceCatalog Service = "catalog"
	ServiceBrowse  Service = "browse"
	ServiceSeed    Service = "catalog-seed"
)

// LogPrefix is the stdlib log prefix of the process, e.g. "[CATALOG] ".
func (s Service) LogPrefix() string {
	name := strings.TrimPrefix(strings.TrimSpace(string(s)), "catalog-")
	if name == "" {
		return ""
	}
	return "[" + strings.ToUpper(name) + "] "
}

// ParseConfig loads environment defaults into cfg. Commands register their
// flags with these defaults and then call ParseArgs.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for service, runs it and flushes spans
// once run returns.
func RunWithTelemetry(ctx context.Context, service Service, run func(context.Context) error) error {
	name := strings.TrimSpace(string(service))
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, name)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdown)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("otel shutdown service=%s err=%v", name, err)
		}
	}()
	return run(ctx)
}
