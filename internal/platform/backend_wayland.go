package platform

import (
	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/1broseidon/list-windows/internal/wayland"
)

// WaylandBackend issues zwlr_foreign_toplevel_handle_v1 requests.
type WaylandBackend struct {
	conn    *wayland.Conn
	manager *wayland.ToplevelManager
	seat    *wayland.Seat
}

var _ Backend = (*WaylandBackend)(nil)

// NewWaylandBackend wraps a bound toplevel manager. seat may be nil.
func NewWaylandBackend(conn *wayland.Conn, manager *wayland.ToplevelManager, seat *wayland.Seat) *WaylandBackend {
	return &WaylandBackend{conn: conn, manager: manager, seat: seat}
}

// Activate focuses h on the bound seat. It returns ErrNoSeat when the
// compositor advertised none.
func (b *WaylandBackend) Activate(h registry.Handle) error {
	if b.seat == nil {
		return ErrNoSeat
	}
	return b.manager.Activate(wayland.ObjectID(h), b.seat.ID())
}

// Minimize queues a set_minimized request for h.
func (b *WaylandBackend) Minimize(h registry.Handle) error {
	return b.manager.SetMinimized(wayland.ObjectID(h))
}

// Maximize queues a set_maximized request for h.
func (b *WaylandBackend) Maximize(h registry.Handle) error {
	return b.manager.SetMaximized(wayland.ObjectID(h))
}

// Unmaximize queues an unset_maximized request for h.
func (b *WaylandBackend) Unmaximize(h registry.Handle) error {
	return b.manager.UnsetMaximized(wayland.ObjectID(h))
}

// Close asks the client owning h to close the window.
func (b *WaylandBackend) Close(h registry.Handle) error {
	return b.manager.Close(wayland.ObjectID(h))
}

// Flush sends every queued request to the compositor.
func (b *WaylandBackend) Flush() error {
	return b.conn.Flush()
}
