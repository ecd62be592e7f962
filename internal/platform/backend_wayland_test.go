package platform

import (
	"errors"
	"testing"
	"time"

	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/1broseidon/list-windows/internal/wayland"
	"github.com/1broseidon/list-windows/internal/wayland/wltest"
	"golang.org/x/sys/unix"
)

func setup(t *testing.T, opts wltest.Options) (*wltest.Compositor, *wayland.Conn, *WaylandBackend, chan wayland.ToplevelEvent) {
	t.Helper()
	comp := wltest.New(t, opts)
	conn, err := comp.Connect()
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	reg, err := conn.GetRegistry()
	if err != nil {
		t.Fatalf("get registry: %v", err)
	}
	if err := conn.Roundtrip(); err != nil {
		t.Fatalf("roundtrip: %v", err)
	}

	events := make(chan wayland.ToplevelEvent, 64)
	g, _ := reg.Find(wayland.InterfaceToplevelManager)
	mgr, err := wayland.BindToplevelManager(reg, g, func(ev wayland.ToplevelEvent) { events <- ev })
	if err != nil {
		t.Fatalf("bind manager: %v", err)
	}
	var seat *wayland.Seat
	if sg, ok := reg.Find(wayland.InterfaceSeat); ok {
		if seat, err = wayland.BindSeat(reg, sg); err != nil {
			t.Fatalf("bind seat: %v", err)
		}
	}
	if err := conn.Roundtrip(); err != nil {
		t.Fatalf("roundtrip: %v", err)
	}
	return comp, conn, NewWaylandBackend(conn, mgr, seat), events
}

// announce creates a window on the compositor and waits until the client
// has dispatched its done event.
func announce(t *testing.T, comp *wltest.Compositor, conn *wayland.Conn, events chan wayland.ToplevelEvent) registry.Handle {
	t.Helper()
	h := comp.Window("Editor", "org.example.Editor")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn.PrepareRead() {
			fds := []unix.PollFd{{Fd: int32(conn.Fd()), Events: unix.POLLIN}}
			unix.Poll(fds, 50)
			if err := conn.ReadEvents(); err != nil {
				t.Fatalf("read events: %v", err)
			}
		}
		if _, err := conn.DispatchPending(); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		for len(events) > 0 {
			if ev := <-events; ev.Kind == wayland.ToplevelDone {
				return registry.Handle(h)
			}
		}
	}
	t.Fatal("window was never announced")
	return 0
}

func TestWaylandBackend_RequestsReachCompositor(t *testing.T) {
	comp, conn, b, events := setup(t, wltest.Options{})
	h := announce(t, comp, conn, events)

	for _, req := range []func(registry.Handle) error{b.Minimize, b.Maximize, b.Unmaximize, b.Activate, b.Close} {
		if err := req(h); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	comp.WaitFor(func(c *wltest.Compositor) bool { return len(c.Calls()) == 6 })
	want := []string{"set_minimized", "unset_minimized", "set_maximized", "unset_maximized", "activate", "close"}
	for i, call := range comp.Calls() {
		if call.Op != want[i] || call.Handle != wayland.ObjectID(h) {
			t.Fatalf("call %d = %+v, want %s on %d", i, call, want[i], h)
		}
	}
}

func TestWaylandBackend_ActivateWithoutSeat(t *testing.T) {
	comp, conn, b, events := setup(t, wltest.Options{NoSeat: true})
	h := announce(t, comp, conn, events)

	if err := b.Activate(h); !errors.Is(err, ErrNoSeat) {
		t.Fatalf("Activate() = %v, want ErrNoSeat", err)
	}
	if err := b.Minimize(h); err != nil {
		t.Fatalf("Minimize() = %v", err)
	}
}

func TestWaylandBackend_UnknownHandle(t *testing.T) {
	_, _, b, _ := setup(t, wltest.Options{})
	if err := b.Close(registry.Handle(0xff0000ff)); !errors.Is(err, wayland.ErrUnknownObject) {
		t.Fatalf("Close() = %v, want ErrUnknownObject", err)
	}
}
