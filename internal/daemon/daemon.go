// Package daemon runs the window registry: it follows the compositor's
// toplevel events, publishes the window list and executes control
// commands, all on one event-loop goroutine.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/list-windows/internal/config"
	"github.com/1broseidon/list-windows/internal/desktopentry"
	"github.com/1broseidon/list-windows/internal/ipc"
	"github.com/1broseidon/list-windows/internal/platform"
	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/1broseidon/list-windows/internal/snapshot"
	"github.com/1broseidon/list-windows/internal/wayland"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

var (
	ErrNoToplevelManager = errors.New("compositor does not support " + wayland.InterfaceToplevelManager)
	ErrCompositorGone    = errors.New("compositor connection lost")
)

type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Conn overrides dialing the compositor from the environment.
	Conn *wayland.Conn
	// Resolver overrides the desktop-entry icon resolver.
	Resolver snapshot.IconResolver
	// Registerer receives the daemon's metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	conn    *wayland.Conn
	manager *wayland.ToplevelManager
	seat    *wayland.Seat

	store      *registry.Store
	tracker    *Tracker
	dispatcher *Dispatcher
	publisher  *snapshot.Publisher
	server     *ipc.Server
	metrics    *Metrics
}

// New connects to the compositor, binds the toplevel manager, receives the
// initial window set and opens the control socket.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	conn := opts.Conn
	if conn == nil {
		var err error
		if conn, err = wayland.Dial(); err != nil {
			return nil, fmt.Errorf("failed to connect to compositor: %w", err)
		}
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		store:   registry.New(),
		metrics: NewMetrics(reg),
	}
	if err := d.bind(); err != nil {
		conn.Close()
		return nil, err
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = desktopentry.NewResolver(cfg.DesktopEntryDirs, logger)
	}
	d.publisher = snapshot.NewPublisher(cfg.SnapshotPath, resolver, logger)
	d.dispatcher = NewDispatcher(d.store, platform.NewWaylandBackend(conn, d.manager, d.seat), logger, d.metrics)

	server, err := ipc.Listen(cfg.SocketPath, d.dispatcher, ipc.ServerOptions{
		ReadTimeout: cfg.ReadTimeout,
		Logger:      logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	d.server = server
	return d, nil
}

func (d *Daemon) bind() error {
	reg, err := d.conn.GetRegistry()
	if err != nil {
		return err
	}
	if err := d.conn.Roundtrip(); err != nil {
		return fmt.Errorf("failed to list compositor globals: %w", err)
	}

	g, ok := reg.Find(wayland.InterfaceToplevelManager)
	if !ok {
		return ErrNoToplevelManager
	}
	d.tracker = NewTracker(d.store, d.logger, d.metrics)
	if d.manager, err = wayland.BindToplevelManager(reg, g, d.tracker.Apply); err != nil {
		return err
	}

	if sg, ok := reg.Find(wayland.InterfaceSeat); ok {
		if d.seat, err = wayland.BindSeat(reg, sg); err != nil {
			return err
		}
	} else {
		d.logger.Warn("compositor advertises no wl_seat; activate commands will be ignored")
	}

	if err := d.conn.Roundtrip(); err != nil {
		return fmt.Errorf("failed to receive initial windows: %w", err)
	}
	d.logger.Info("connected to compositor",
		"manager_version", d.manager.Version(),
		"windows", d.store.Len())
	return nil
}

// Run is the event loop. It returns nil when ctx is cancelled and an error
// when the compositor connection fails.
func (d *Daemon) Run(ctx context.Context) error {
	w, err := newWaker()
	if err != nil {
		return fmt.Errorf("failed to create wake pipe: %w", err)
	}
	woke := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		w.Wake()
		close(woke)
	})
	defer func() {
		if !stop() {
			<-woke
		}
		w.Close()
	}()

	d.tracker.dirty = true
	for {
		if ctx.Err() != nil {
			return nil
		}

		for !d.conn.PrepareRead() {
			if _, err := d.conn.DispatchPending(); err != nil {
				return d.fatal(err)
			}
		}
		if err := d.conn.Flush(); err != nil {
			d.conn.CancelRead()
			return d.fatal(err)
		}
		if d.tracker.Dirty() {
			d.publish()
			d.tracker.ClearDirty()
		}

		fds := []unix.PollFd{
			{Fd: int32(d.conn.Fd()), Events: unix.POLLIN},
			{Fd: int32(d.server.Fd()), Events: unix.POLLIN},
			{Fd: int32(w.r), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			d.conn.CancelRead()
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}

		if wl := fds[0].Revents; wl&unix.POLLIN != 0 {
			if err := d.conn.ReadEvents(); err != nil {
				return d.fatal(err)
			}
			if _, err := d.conn.DispatchPending(); err != nil {
				return d.fatal(err)
			}
		} else {
			d.conn.CancelRead()
			if wl&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
				return ErrCompositorGone
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			if err := d.server.HandleNext(); err != nil {
				d.logger.Warn("control socket", "error", err)
			}
		}
	}
}

func (d *Daemon) publish() {
	wrote, err := d.publisher.Publish(d.store)
	switch {
	case err != nil:
		d.metrics.Publishes.WithLabelValues("failed").Inc()
		d.logger.Error("snapshot publish failed", "path", d.publisher.Path(), "error", err)
		return
	case wrote:
		d.metrics.Publishes.WithLabelValues("written").Inc()
	default:
		d.metrics.Publishes.WithLabelValues("unchanged").Inc()
	}
	d.metrics.Windows.Set(float64(len(d.store.Complete())))
}

func (d *Daemon) fatal(err error) error {
	if errors.Is(err, wayland.ErrConnectionClosed) {
		return fmt.Errorf("%w: %w", ErrCompositorGone, err)
	}
	var perr *wayland.ProtocolError
	if errors.As(err, &perr) {
		return fmt.Errorf("compositor reported a fatal error: %w", err)
	}
	return err
}

// Close removes the control socket and disconnects from the compositor.
// Unless the compositor already finished the manager, it is asked to stop
// first. Close must not run concurrently with Run.
func (d *Daemon) Close() error {
	var errs []error
	if d.server != nil {
		errs = append(errs, d.server.Close())
		d.server = nil
	}
	if d.conn != nil {
		if d.manager != nil && !d.tracker.Finished() && d.conn.Err() == nil {
			if err := d.manager.Stop(); err == nil {
				d.conn.Flush()
			}
		}
		errs = append(errs, d.conn.Close())
		d.conn = nil
	}
	return errors.Join(errs...)
}
