package daemon

import (
	"errors"
	"log/slog"

	"github.com/1broseidon/list-windows/internal/ipc"
	"github.com/1broseidon/list-windows/internal/platform"
	"github.com/1broseidon/list-windows/internal/registry"
)

// Dispatcher turns control commands into compositor requests.
type Dispatcher struct {
	store   *registry.Store
	backend platform.Backend
	logger  *slog.Logger
	metrics *Metrics
}

var _ ipc.Handler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher that resolves titles in store and
// issues requests through backend. logger and metrics may be nil.
func NewDispatcher(store *registry.Store, backend platform.Backend, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, backend: backend, logger: logger, metrics: metrics}
}

// HandleCommand resolves cmd.Title and issues the matching requests followed
// by a single flush. Commands naming no complete window are dropped.
func (d *Dispatcher) HandleCommand(cmd ipc.Command) {
	target, ok := d.store.FindByTitle(cmd.Title)
	if !ok {
		d.logger.Debug("no window with title", "action", string(cmd.Action), "title", cmd.Title)
		d.count(cmd.Action, "no_match")
		return
	}

	var err error
	switch cmd.Action {
	case ipc.ActionActivate:
		err = d.backend.Activate(target.Handle)
	case ipc.ActionActivateOnly:
		for _, w := range d.store.Complete() {
			if w.Handle == target.Handle {
				continue
			}
			if mErr := d.backend.Minimize(w.Handle); mErr != nil {
				d.logger.Warn("minimize failed", "handle", uint32(w.Handle), "title", w.Title, "error", mErr)
			}
		}
		err = d.backend.Activate(target.Handle)
	case ipc.ActionMinimize:
		err = d.backend.Minimize(target.Handle)
	case ipc.ActionMaximize:
		err = d.backend.Maximize(target.Handle)
	case ipc.ActionUnmaximize:
		err = d.backend.Unmaximize(target.Handle)
	case ipc.ActionClose:
		err = d.backend.Close(target.Handle)
	default:
		d.count(cmd.Action, "unknown_action")
		return
	}

	result := "ok"
	if err != nil {
		result = "failed"
		if errors.Is(err, platform.ErrNoSeat) {
			d.logger.Warn("activation skipped: compositor has no seat", "title", cmd.Title)
		} else {
			d.logger.Warn("request failed", "action", string(cmd.Action), "title", cmd.Title, "error", err)
		}
	}
	if fErr := d.backend.Flush(); fErr != nil {
		result = "failed"
		d.logger.Error("flush failed", "error", fErr)
	}
	d.count(cmd.Action, result)
}

func (d *Dispatcher) count(action ipc.Action, result string) {
	if d.metrics != nil {
		d.metrics.Commands.WithLabelValues(string(action), result).Inc()
	}
}
