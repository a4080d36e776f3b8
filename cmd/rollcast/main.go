package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/rollcast/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.NewCLI(version)
	if err := c.Execute(ctx, os.Args[1:]); err != nil {
		c.PrintError(err)
		stop()
		os.Exit(1)
	}
}
