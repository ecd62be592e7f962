package daemon

import (
	"errors"

	"golang.org/x/sys/unix"
)

// waker is a self-pipe that interrupts the event loop's poll from another
// goroutine.
type waker struct {
	r, w int
}

func newWaker() (*waker, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &waker{r: p[0], w: p[1]}, nil
}

// Wake makes the read end readable. Extra wakes are dropped.
func (w *waker) Wake() {
	for {
		_, err := unix.Write(w.w, []byte{1})
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

// Close releases both ends of the pipe.
func (w *waker) Close() {
	unix.Close(w.r)
	unix.Close(w.w)
}
