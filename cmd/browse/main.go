// Package main runs the interactive meteor catalog browser.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	browsecmd "github.com/louisbranch/meteorfall/internal/cmd/browse"
	entrypoint "github.com/louisbranch/meteorfall/internal/platform/cmd"
	"github.com/louisbranch/meteorfall/internal/platform/config"
)

func main() {
	cfg, err := browsecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix(entrypoint.ServiceBrowse.LogPrefix())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := browsecmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}
