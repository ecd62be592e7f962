package daemon

import (
	"log/slog"

	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/1broseidon/list-windows/internal/wayland"
)

// Tracker applies toplevel events to the registry. It is the only writer of
// window lifecycle: windows are created on new and removed on closed.
type Tracker struct {
	store   *registry.Store
	logger  *slog.Logger
	metrics *Metrics

	dirty    bool
	finished bool
}

// NewTracker creates a tracker applying events to store. logger and
// metrics may be nil.
func NewTracker(store *registry.Store, logger *slog.Logger, metrics *Metrics) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger, metrics: metrics}
}

// Apply is the sink for every toplevel manager and handle event.
func (t *Tracker) Apply(ev wayland.ToplevelEvent) {
	h := registry.Handle(ev.Handle)
	t.dirty = true
	if t.metrics != nil {
		t.metrics.Events.WithLabelValues(ev.Kind.String()).Inc()
	}

	switch ev.Kind {
	case wayland.ToplevelNew:
		t.store.Upsert(h, nil)
		t.logger.Debug("toplevel created", "handle", uint32(h))
	case wayland.ToplevelTitle:
		t.store.Upsert(h, func(w *registry.Window) { w.Title = ev.Text })
	case wayland.ToplevelAppID:
		t.store.Upsert(h, func(w *registry.Window) { w.AppID = ev.Text })
	case wayland.ToplevelStateChanged:
		t.store.Upsert(h, func(w *registry.Window) { applyStates(w, ev.States) })
	case wayland.ToplevelDone:
	case wayland.ToplevelClosed:
		if t.store.Remove(h) {
			t.logger.Debug("toplevel closed", "handle", uint32(h))
		}
	case wayland.ToplevelFinished:
		t.finished = true
		t.logger.Warn("compositor stopped the toplevel manager; window list is frozen")
	}
}

// applyStates replaces every state flag: the protocol always sends the
// complete set.
func applyStates(w *registry.Window, states []wayland.ToplevelState) {
	w.Focused, w.Minimized, w.Maximized, w.Fullscreen = false, false, false, false
	for _, s := range states {
		switch s {
		case wayland.StateActivated:
			w.Focused = true
		case wayland.StateMinimized:
			w.Minimized = true
		case wayland.StateMaximized:
			w.Maximized = true
		case wayland.StateFullscreen:
			w.Fullscreen = true
		}
	}
}

// Dirty reports whether any event arrived since the last ClearDirty.
func (t *Tracker) Dirty() bool {
	return t.dirty
}

// ClearDirty marks the current store contents as published.
func (t *Tracker) ClearDirty() {
	t.dirty = false
}

// Finished reports whether the compositor sent the manager's finished event.
func (t *Tracker) Finished() bool {
	return t.finished
}
