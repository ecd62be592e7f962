package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Handler receives every well-formed command.
type Handler interface {
	HandleCommand(Command)
}

type HandlerFunc func(Command)

// HandleCommand calls f(c).
func (f HandlerFunc) HandleCommand(c Command) { f(c) }

type ServerOptions struct {
	// ReadTimeout bounds both the accept and the read of one command.
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

// Server is the control socket. It does not run its own goroutine: the
// owner polls Fd and calls HandleNext when it is readable, so commands are
// handled on the caller's goroutine one at a time.
type Server struct {
	socketPath string
	listener   *net.UnixListener
	fd         int
	handler    Handler
	timeout    time.Duration
	logger     *slog.Logger
}

// Listen binds the control socket at socketPath, replacing a stale socket
// file left by a previous run.
func Listen(socketPath string, h Handler, opts ServerOptions) (*Server, error) {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket dir: %w", err)
	}
	// Remove existing socket if present
	os.Remove(socketPath)

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to create control socket: %w", err)
	}
	l.SetUnlinkOnClose(false)

	if err := os.Chmod(socketPath, 0600); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	fd := -1
	raw, err := l.SyscallConn()
	if err == nil {
		err = raw.Control(func(f uintptr) { fd = int(f) })
	}
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to get socket descriptor: %w", err)
	}

	opts.Logger.Info("control socket listening", "path", socketPath)
	return &Server{
		socketPath: socketPath,
		listener:   l,
		fd:         fd,
		handler:    h,
		timeout:    opts.ReadTimeout,
		logger:     opts.Logger,
	}, nil
}

// Fd returns the listening descriptor for readiness polling.
func (s *Server) Fd() int {
	return s.fd
}

// Path returns the socket path the server listens on.
func (s *Server) Path() string {
	return s.socketPath
}

// HandleNext accepts one connection, reads one command line and passes it to
// the handler. Nothing is ever written back. Malformed input is dropped; the
// returned error only reports accept failures.
func (s *Server) HandleNext() error {
	s.listener.SetDeadline(time.Now().Add(s.timeout))
	conn, err := s.listener.AcceptUnix()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()

	line, err := s.readLine(conn)
	if err != nil {
		s.logger.Debug("control read dropped", "error", err)
		return nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		s.logger.Debug("control command dropped", "error", err)
		return nil
	}
	s.logger.Debug("control command", "action", string(cmd.Action), "title", cmd.Title)
	s.handler.HandleCommand(cmd)
	return nil
}

func (s *Server) readLine(conn net.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(s.timeout))
	reader := bufio.NewReader(io.LimitReader(conn, MaxLineLength+1))
	data, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if len(data) > MaxLineLength {
		return "", fmt.Errorf("command exceeds %d bytes", MaxLineLength)
	}
	return data, nil
}

// Close stops listening and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
