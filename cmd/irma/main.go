// ABOUTME: Entry point for irma, the conversation command-line client
// ABOUTME: Wires stdio, terminal detection and signal cancellation into the cli package

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/cli"
)

// Set by goreleaser at build time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)
	width := 0
	if tty {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}

	app := &cli.App{
		Build:  buildinfo.New(version, commit, date),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		TTY:    tty,
		Width:  width,
	}

	code := app.Run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
