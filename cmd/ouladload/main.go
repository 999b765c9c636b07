package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ouladload/internal/cli"

	// register every storage backend with the factory;
	// the config picks which one a run uses.
	_ "ouladload/internal/storage/all"
)

// version is stamped by the build:
// go build -ldflags "-X main.version=v1.0.0" ./cmd/ouladload
var version = "dev"

// main wires signal handling into the command context so an interrupted load
// stops at a batch boundary and the next run resumes from the checkpoint.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
