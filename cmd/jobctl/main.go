// Command jobctl dispatches generation jobs to a genjobs server and follows
// them until they settle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitJobError = 3
	exitTimeout  = 4
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	cmd, ok := commands()[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			logger.Error("load .env file", "error", err)
			return exitFailure
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Out: stdout}
	if err := cmd.run(cmdCtx, args[1:]); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		return exitCode(err)
	}
	return exitOK
}

func commands() map[string]command {
	return map[string]command{
		"dispatch": {
			name:        "dispatch",
			description: "Dispatch a job and follow its progress until it settles",
			run:         runDispatch,
		},
		"status": {
			name:        "status",
			description: "Print the current record of a job",
			run:         runStatus,
		},
		"wait": {
			name:        "wait",
			description: "Follow an existing job until it settles",
			run:         runWait,
		},
		"events": {
			name:        "events",
			description: "List the event names the server can run",
			run:         runEvents,
		},
		"token": {
			name:        "token",
			description: "Mint an API token signed with the server's JWT secret",
			run:         runToken,
		},
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Usage: jobctl <command> [flags]\n\nAvailable commands:\n")
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-10s %s\n", name, commands()[name].description)
	}
}
