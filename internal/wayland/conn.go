package wayland

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/1broseidon/list-windows/internal/runtimepath"
	"golang.org/x/sys/unix"
)

// ErrConnectionClosed is returned once the compositor has hung up.
var ErrConnectionClosed = errors.New("wayland: connection closed by compositor")

// ProtocolError is the fatal wl_display.error event.
type ProtocolError struct {
	Object  ObjectID
	Code    uint32
	Message string
}

// Error formats the compositor's error event.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error on object %d (code %d): %s", e.Object, e.Code, e.Message)
}

// object receives the events addressed to one protocol object.
type object interface {
	dispatch(opcode uint16, d *Decoder) error
}

// Conn is a client connection to a Wayland compositor. It is not safe for
// concurrent use; all calls are expected from the goroutine that runs the
// event loop.
type Conn struct {
	fd      int
	out     []byte
	in      []byte
	scratch []byte

	objects map[ObjectID]object
	lastID  ObjectID
	freeIDs []ObjectID

	reading bool
	err     error
}

// Dial connects to the compositor named by the environment. An inherited
// WAYLAND_SOCKET descriptor takes priority over WAYLAND_DISPLAY.
func Dial() (*Conn, error) {
	if s := os.Getenv("WAYLAND_SOCKET"); s != "" {
		fd, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid WAYLAND_SOCKET %q: %w", s, err)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		unix.CloseOnExec(fd)
		return FromFD(fd)
	}

	path, err := runtimepath.WaylandSocketPath()
	if err != nil {
		return nil, err
	}
	return DialPath(path)
}

// DialPath connects to the compositor socket at path.
func DialPath(path string) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create wayland socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	return FromFD(fd)
}

// FromFD wraps an already connected stream socket. The Conn takes ownership
// of fd.
func FromFD(fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set wayland socket non-blocking: %w", err)
	}
	c := &Conn{
		fd:      fd,
		scratch: make([]byte, maxMessageSize),
		objects: make(map[ObjectID]object),
		lastID:  DisplayID,
	}
	c.objects[DisplayID] = &display{conn: c}
	return c, nil
}

// Fd returns the socket descriptor for readiness polling.
func (c *Conn) Fd() int {
	return c.fd
}

// Err returns the fatal error that stopped the connection, if any.
func (c *Conn) Err() error {
	return c.err
}

// Close releases the socket.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *Conn) newID() ObjectID {
	if n := len(c.freeIDs); n > 0 {
		id := c.freeIDs[n-1]
		c.freeIDs = c.freeIDs[:n-1]
		return id
	}
	c.lastID++
	return c.lastID
}

func (c *Conn) register(id ObjectID, obj object) {
	c.objects[id] = obj
}

// forget drops a server-allocated object. Client ids are recycled only after
// wl_display.delete_id.
func (c *Conn) forget(id ObjectID) {
	delete(c.objects, id)
}

func (c *Conn) deleteID(id ObjectID) {
	delete(c.objects, id)
	if id < serverIDBase {
		c.freeIDs = append(c.freeIDs, id)
	}
}

// send queues a request. It is written by the next Flush.
func (c *Conn) send(e *Encoder) error {
	if c.err != nil {
		return c.err
	}
	c.out = append(c.out, e.Bytes()...)
	return nil
}

// Flush writes all queued requests, waiting for the socket to become
// writable when the kernel buffer is full.
func (c *Conn) Flush() error {
	if c.err != nil {
		return c.err
	}
	off := 0
	for off < len(c.out) {
		n, err := unix.Write(c.fd, c.out[off:])
		switch {
		case err == nil:
			off += n
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if err := c.wait(unix.POLLOUT); err != nil {
				return err
			}
		case errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNRESET):
			c.err = ErrConnectionClosed
			return c.err
		default:
			return fmt.Errorf("wayland: write: %w", err)
		}
	}
	c.out = c.out[:0]
	return nil
}

// PrepareRead announces the intention to read from the socket. It returns
// false when complete events are already queued; the caller must dispatch
// them instead of waiting for the socket.
func (c *Conn) PrepareRead() bool {
	if c.queued() {
		return false
	}
	c.reading = true
	return true
}

// CancelRead abandons a read announced with PrepareRead.
func (c *Conn) CancelRead() {
	c.reading = false
}

// ReadEvents performs one non-blocking read into the event queue. A socket
// with no data is not an error.
func (c *Conn) ReadEvents() error {
	c.reading = false
	if c.err != nil {
		return c.err
	}
	for {
		n, err := unix.Read(c.fd, c.scratch)
		switch {
		case err == nil && n == 0:
			c.err = ErrConnectionClosed
			return c.err
		case err == nil:
			c.in = append(c.in, c.scratch[:n]...)
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil
		case errors.Is(err, unix.ECONNRESET):
			c.err = ErrConnectionClosed
			return c.err
		default:
			return fmt.Errorf("wayland: read: %w", err)
		}
	}
}

func (c *Conn) queued() bool {
	h, ok := ParseHeader(c.in)
	return ok && len(c.in) >= h.Size
}

// DispatchPending delivers every complete queued event to its object and
// returns how many were dispatched.
func (c *Conn) DispatchPending() (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	off, count := 0, 0
	defer func() {
		c.in = append(c.in[:0], c.in[off:]...)
	}()

	for {
		h, ok := ParseHeader(c.in[off:])
		if !ok {
			return count, nil
		}
		if h.Size < headerSize || h.Size%4 != 0 {
			c.err = fmt.Errorf("wayland: invalid message size %d from object %d", h.Size, h.Sender)
			return count, c.err
		}
		if len(c.in)-off < h.Size {
			return count, nil
		}
		body := c.in[off+headerSize : off+h.Size]
		off += h.Size

		obj, ok := c.objects[h.Sender]
		if !ok {
			continue
		}
		if err := obj.dispatch(h.Opcode, NewDecoder(body)); err != nil {
			if c.err == nil {
				c.err = err
			}
			return count, c.err
		}
		count++
		if c.err != nil {
			return count, c.err
		}
	}
}

// Roundtrip blocks until the compositor has processed every request sent so
// far, dispatching the events that arrive in the meantime.
func (c *Conn) Roundtrip() error {
	done := false
	id := c.newID()
	c.register(id, &callback{done: func(uint32) { done = true }})
	e := NewEncoder(DisplayID, displaySync)
	e.PutNewID(id)
	if err := c.send(e); err != nil {
		return err
	}

	for !done {
		if err := c.Flush(); err != nil {
			return err
		}
		if c.PrepareRead() {
			if err := c.wait(unix.POLLIN); err != nil {
				c.CancelRead()
				return err
			}
			if err := c.ReadEvents(); err != nil {
				return err
			}
		}
		if _, err := c.DispatchPending(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) wait(events int16) error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("wayland: poll: %w", err)
		}
		if fds[0].Revents&events == 0 && fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			c.err = ErrConnectionClosed
			return c.err
		}
		return nil
	}
}
