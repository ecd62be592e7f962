package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/list-windows/internal/config"
	"github.com/1broseidon/list-windows/internal/daemon"
	"github.com/1broseidon/list-windows/internal/ipc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run selects the mode from the argument shape: help, client (exactly an
// action flag and a title) or daemon (anything else).
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		printUsage(stdout)
		return 0
	}
	if len(args) == 2 {
		if action, ok := ipc.ActionFromFlag(args[0]); ok {
			return runClient(ipc.Command{Action: action, Title: args[1]}, stderr)
		}
	}
	return runDaemon(stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  list-windows [COMMAND] [WINDOW_TITLE]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  --activate TITLE       Activate the window with the given TITLE")
	fmt.Fprintln(w, "  --activate-only TITLE  Activate TITLE and minimize all other windows")
	fmt.Fprintln(w, "  --minimize TITLE       Minimize the window with the given TITLE")
	fmt.Fprintln(w, "  --maximize TITLE       Maximize the window with the given TITLE")
	fmt.Fprintln(w, "  --unmaximize TITLE     Unmaximize the window with the given TITLE")
	fmt.Fprintln(w, "  --close TITLE          Close the window with the given TITLE")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run without arguments to start the daemon.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  LISTWINDOWS_SOCKET_PATH, LISTWINDOWS_SNAPSHOT_PATH, LISTWINDOWS_LOG_LEVEL,")
	fmt.Fprintln(w, "  LISTWINDOWS_METRICS_ADDR override the matching config.yaml settings.")
}

func runClient(cmd ipc.Command, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	client := ipc.NewClient(cfg.SocketPath, cfg.ClientTimeout)
	if err := client.Send(cmd); err != nil {
		fmt.Fprintf(stderr, "Failed to connect to socket: %s: %v\n", cfg.SocketPath, err)
		return 1
	}
	return 0
}

func runDaemon(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}
	defer d.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := daemon.ServeMetrics(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("list-windows daemon started",
		"socket", cfg.SocketPath,
		"snapshot", cfg.SnapshotPath)

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrCompositorGone) {
			logger.Error("compositor went away", "error", err)
		} else {
			logger.Error("daemon stopped", "error", err)
		}
		return 1
	}
	logger.Info("list-windows daemon stopped")
	return 0
}
