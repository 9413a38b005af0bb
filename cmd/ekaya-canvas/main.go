package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekaya-inc/ekaya-canvas/pkg/cli"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(Version).ExecuteContext(ctx)
	os.Exit(cli.GetExitCode(err))
}
