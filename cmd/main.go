package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/diffapply/internal/cli"
)

// main applies a unified diff to a single file; see internal/cli for flags.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
