package ipc

import (
	"fmt"
	"net"
	"time"
)

// Client sends commands to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the daemon socket at socketPath.
func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Send writes cmd as one line and returns. The daemon never replies, so a
// nil error only means the line was handed to the socket.
func (c *Client) Send(cmd Command) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write([]byte(cmd.String() + "\n")); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}
