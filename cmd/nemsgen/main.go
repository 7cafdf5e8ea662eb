// Package main is the entry point for the nemsgen command.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/flexinfer/nemsgen/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
