package platform

import (
	"errors"

	"github.com/1broseidon/list-windows/internal/registry"
)

// ErrNoSeat is returned by Activate when the compositor advertised no seat.
var ErrNoSeat = errors.New("no wl_seat available for activation")

// Backend abstracts the window-management requests the daemon issues.
// Requests are queued; Flush sends them to the compositor.
type Backend interface {
	Activate(h registry.Handle) error
	Minimize(h registry.Handle) error
	Maximize(h registry.Handle) error
	Unmaximize(h registry.Handle) error
	Close(h registry.Handle) error
	Flush() error
}
