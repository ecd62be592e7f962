// Command winwatch prints the daemon's window list every time it changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/list-windows/internal/config"
	"github.com/1broseidon/list-windows/internal/snapshot"
	"golang.org/x/term"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("winwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("snapshot", "", "snapshot file to watch (default from config)")
	once := fs.Bool("once", false, "print the current list and exit")
	verbose := fs.Bool("v", false, "log watcher activity")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
			return 1
		}
		*path = cfg.SnapshotPath
	}

	if *once {
		entries, err := snapshot.Load(*path)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read snapshot: %v\n", err)
			return 1
		}
		printEntries(stdout, entries)
		return 0
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	redraw := isTerminal(stdout)
	w, err := snapshot.NewWatcher(*path, func(entries []snapshot.Entry) {
		if redraw {
			fmt.Fprint(stdout, "\033[H\033[2J")
		}
		printEntries(stdout, entries)
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to watch snapshot: %v\n", err)
		return 1
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Watcher stopped: %v\n", err)
		return 1
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printEntries(w io.Writer, entries []snapshot.Entry) {
	fmt.Fprintf(w, "%d windows\n", len(entries))
	for _, e := range entries {
		var flags []byte
		for _, f := range []struct {
			on bool
			c  byte
		}{{e.Focused, 'F'}, {e.Minimized, 'm'}, {e.Maximized, 'M'}} {
			if f.on {
				flags = append(flags, f.c)
			} else {
				flags = append(flags, '-')
			}
		}
		fmt.Fprintf(w, "  %s  %-30s  %s (%s)\n", flags, e.AppID, e.Title, e.Icon)
	}
}
