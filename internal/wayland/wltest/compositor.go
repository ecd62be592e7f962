// Package wltest provides an in-process fake compositor that speaks enough of
// the Wayland wire protocol to exercise the toplevel manager client.
package wltest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/list-windows/internal/wayland"
	"golang.org/x/sys/unix"
)

const (
	ifaceDisplay  = "wl_display"
	ifaceRegistry = "wl_registry"
	ifaceCallback = "wl_callback"
	ifaceHandle   = "zwlr_foreign_toplevel_handle_v1"
)

// Options controls which globals the fake compositor advertises.
type Options struct {
	NoToplevelManager bool
	NoSeat            bool
	ManagerVersion    uint32
}

// Request is one client request as seen by the compositor.
type Request struct {
	Object    wayland.ObjectID
	Interface string
	Opcode    uint16
	Body      []byte
}

// Call is a toplevel handle request in readable form.
type Call struct {
	Handle wayland.ObjectID
	Op     string
	Seat   wayland.ObjectID
}

var handleOps = map[uint16]string{
	0: "set_maximized",
	1: "unset_maximized",
	2: "set_minimized",
	3: "unset_minimized",
	4: "activate",
	5: "close",
	6: "set_rectangle",
	7: "destroy",
}

type global struct {
	name    uint32
	iface   string
	version uint32
}

// Compositor is the server end of a socketpair. Requests are read on a
// background goroutine; events are written synchronously by the test.
type Compositor struct {
	t        testing.TB
	fd       int
	clientFD int
	globals  []global

	writeMu sync.Mutex

	mu       sync.Mutex
	objects  map[wayland.ObjectID]string
	requests []Request
	manager  wayland.ObjectID
	seat     wayland.ObjectID
	serial   uint32
	nextID   wayland.ObjectID

	done      chan struct{}
	closeOnce sync.Once
}

// New starts a fake compositor. It is shut down by t.Cleanup.
func New(t testing.TB, opts Options) *Compositor {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	version := opts.ManagerVersion
	if version == 0 {
		version = 3
	}
	c := &Compositor{
		t:        t,
		fd:       fds[0],
		clientFD: fds[1],
		objects:  map[wayland.ObjectID]string{wayland.DisplayID: ifaceDisplay},
		nextID:   0xff000000,
		done:     make(chan struct{}),
	}
	if !opts.NoSeat {
		c.globals = append(c.globals, global{name: 1, iface: wayland.InterfaceSeat, version: 7})
	}
	c.globals = append(c.globals, global{name: 2, iface: "wl_compositor", version: 4})
	if !opts.NoToplevelManager {
		c.globals = append(c.globals, global{name: 3, iface: wayland.InterfaceToplevelManager, version: version})
	}

	go c.serve()
	t.Cleanup(c.Close)
	return c
}

// Connect wraps the client end of the socketpair. The returned Conn owns it.
func (c *Compositor) Connect() (*wayland.Conn, error) {
	return wayland.FromFD(c.clientFD)
}

// Close stops the compositor and waits for its reader to exit.
func (c *Compositor) Close() {
	c.closeOnce.Do(func() {
		unix.Shutdown(c.fd, unix.SHUT_RDWR)
		<-c.done
		unix.Close(c.fd)
	})
}

// Hangup closes the compositor's write side, as a crashing compositor would.
func (c *Compositor) Hangup() {
	unix.Shutdown(c.fd, unix.SHUT_RDWR)
}

func (c *Compositor) serve() {
	defer close(c.done)
	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(c.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || n == 0 {
			return
		}
		pending = append(pending, buf[:n]...)
		for {
			h, ok := wayland.ParseHeader(pending)
			if !ok || len(pending) < h.Size || h.Size < 8 {
				break
			}
			body := append([]byte(nil), pending[8:h.Size]...)
			pending = pending[h.Size:]
			c.handle(h, body)
		}
	}
}

func (c *Compositor) handle(h wayland.Header, body []byte) {
	c.mu.Lock()
	iface := c.objects[h.Sender]
	c.requests = append(c.requests, Request{Object: h.Sender, Interface: iface, Opcode: h.Opcode, Body: body})
	c.mu.Unlock()

	dec := wayland.NewDecoder(body)
	switch iface {
	case ifaceDisplay:
		id, err := dec.ReadNewID()
		if err != nil {
			return
		}
		switch h.Opcode {
		case 0: // sync
			c.mu.Lock()
			c.objects[id] = ifaceCallback
			c.serial++
			serial := c.serial
			c.mu.Unlock()
			e := wayland.NewEncoder(id, 0)
			e.PutUint(serial)
			c.write(e)
			c.deleteID(id)
		case 1: // get_registry
			c.mu.Lock()
			c.objects[id] = ifaceRegistry
			c.mu.Unlock()
			for _, g := range c.globals {
				e := wayland.NewEncoder(id, 0)
				e.PutUint(g.name)
				e.PutString(g.iface)
				e.PutUint(g.version)
				c.write(e)
			}
		}
	case ifaceRegistry:
		if h.Opcode != 0 {
			return
		}
		if _, err := dec.ReadUint(); err != nil {
			return
		}
		bound, err := dec.ReadString()
		if err != nil {
			return
		}
		if _, err := dec.ReadUint(); err != nil {
			return
		}
		id, err := dec.ReadNewID()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.objects[id] = bound
		switch bound {
		case wayland.InterfaceToplevelManager:
			c.manager = id
		case wayland.InterfaceSeat:
			c.seat = id
		}
		c.mu.Unlock()
	}
}

func (c *Compositor) deleteID(id wayland.ObjectID) {
	c.mu.Lock()
	delete(c.objects, id)
	c.mu.Unlock()
	e := wayland.NewEncoder(wayland.DisplayID, 1)
	e.PutUint(uint32(id))
	c.write(e)
}

func (c *Compositor) write(e *wayland.Encoder) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	b := e.Bytes()
	for len(b) > 0 {
		n, err := unix.Write(c.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return
		}
		b = b[n:]
	}
}

// Manager returns the id the client bound the toplevel manager to, waiting
// briefly for the bind to arrive.
func (c *Compositor) Manager() wayland.ObjectID {
	c.t.Helper()
	var id wayland.ObjectID
	c.WaitFor(func(*Compositor) bool {
		c.mu.Lock()
		id = c.manager
		c.mu.Unlock()
		return id != 0
	})
	return id
}

// Seat returns the id of the bound wl_seat, or 0.
func (c *Compositor) Seat() wayland.ObjectID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seat
}

// NewToplevel announces a new toplevel handle and returns its id.
func (c *Compositor) NewToplevel() wayland.ObjectID {
	manager := c.Manager()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.objects[id] = ifaceHandle
	c.mu.Unlock()

	e := wayland.NewEncoder(manager, 0)
	e.PutNewID(id)
	c.write(e)
	return id
}

// Title sends a title event for h.
func (c *Compositor) Title(h wayland.ObjectID, title string) {
	e := wayland.NewEncoder(h, 0)
	e.PutString(title)
	c.write(e)
}

// AppID sends an app_id event for h.
func (c *Compositor) AppID(h wayland.ObjectID, appID string) {
	e := wayland.NewEncoder(h, 1)
	e.PutString(appID)
	c.write(e)
}

// State sends the complete state set of h.
func (c *Compositor) State(h wayland.ObjectID, states ...wayland.ToplevelState) {
	words := make([]uint32, len(states))
	for i, s := range states {
		words[i] = uint32(s)
	}
	e := wayland.NewEncoder(h, 4)
	e.PutArray(wayland.Uint32Array(words...))
	c.write(e)
}

// Done ends a batch of events for h.
func (c *Compositor) Done(h wayland.ObjectID) {
	c.write(wayland.NewEncoder(h, 5))
}

// Closed announces that h is gone.
func (c *Compositor) Closed(h wayland.ObjectID) {
	c.write(wayland.NewEncoder(h, 6))
}

// Finished sends the manager's finished event.
func (c *Compositor) Finished() {
	c.write(wayland.NewEncoder(c.Manager(), 1))
}

// ProtocolError sends a fatal wl_display.error.
func (c *Compositor) ProtocolError(obj wayland.ObjectID, code uint32, msg string) {
	e := wayland.NewEncoder(wayland.DisplayID, 0)
	e.PutObject(obj)
	e.PutUint(code)
	e.PutString(msg)
	c.write(e)
}

// Window announces a complete window in one batch.
func (c *Compositor) Window(title, appID string, states ...wayland.ToplevelState) wayland.ObjectID {
	h := c.NewToplevel()
	c.Title(h, title)
	c.AppID(h, appID)
	c.State(h, states...)
	c.Done(h)
	return h
}

// Requests returns every request received so far.
func (c *Compositor) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns the toplevel handle requests received so far, in order.
// Destroy requests are omitted.
func (c *Compositor) Calls() []Call {
	var out []Call
	for _, r := range c.Requests() {
		if r.Interface != ifaceHandle || r.Opcode == 7 {
			continue
		}
		call := Call{Handle: r.Object, Op: handleOps[r.Opcode]}
		if r.Opcode == 4 {
			seat, err := wayland.NewDecoder(r.Body).ReadObject()
			if err == nil {
				call.Seat = seat
			}
		}
		out = append(out, call)
	}
	return out
}

// Stopped reports whether the client sent the manager's stop request.
func (c *Compositor) Stopped() bool {
	for _, r := range c.Requests() {
		if r.Interface == wayland.InterfaceToplevelManager && r.Opcode == 0 {
			return true
		}
	}
	return false
}

// Destroyed reports whether the client destroyed handle h.
func (c *Compositor) Destroyed(h wayland.ObjectID) bool {
	for _, r := range c.Requests() {
		if r.Object == h && r.Interface == ifaceHandle && r.Opcode == 7 {
			return true
		}
	}
	return false
}

// WaitFor polls cond until it holds or two seconds pass.
func (c *Compositor) WaitFor(cond func(*Compositor) bool) {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond(c) {
		if time.Now().After(deadline) {
			c.t.Fatalf("wltest: condition not met within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
