// webgate – a static file server with forbid, redirect and failure rules.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webgate/config"
	"webgate/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
