// Package main starts the catalog HTTP service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	catalogcmd "github.com/louisbranch/meteorfall/internal/cmd/catalog"
	entrypoint "github.com/louisbranch/meteorfall/internal/platform/cmd"
)

func main() {
	cfg, err := catalogcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.ServiceCatalog.LogPrefix())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := catalogcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
