package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1broseidon/list-windows/internal/runtimepath"
)

const (
	DefaultReadTimeout   = 300 * time.Millisecond
	DefaultClientTimeout = 500 * time.Millisecond
	DefaultLogLevel      = "info"
)

// Config is the daemon and client configuration. Every field can be set in
// config.yaml and overridden from the environment as LISTWINDOWS_<FIELD>,
// e.g. LISTWINDOWS_SOCKET_PATH. Unprefixed variables are never read.
type Config struct {
	// SocketPath is the control socket the daemon listens on and the client
	// dials.
	SocketPath string `yaml:"socket_path" split_words:"true"`
	// SnapshotPath is the INI file the window list is published to.
	SnapshotPath string `yaml:"snapshot_path" split_words:"true"`
	// DesktopEntryDirs are searched in order when resolving icons.
	DesktopEntryDirs []string `yaml:"desktop_entry_dirs" split_words:"true"`

	LogLevel string `yaml:"log_level" split_words:"true"`

	// ReadTimeout bounds how long the daemon waits for a control client to
	// send its command line.
	ReadTimeout time.Duration `yaml:"read_timeout" split_words:"true"`
	// ClientTimeout bounds the client's connect and write.
	ClientTimeout time.Duration `yaml:"client_timeout" split_words:"true"`

	// MetricsAddr enables the Prometheus endpoint when non-empty, e.g.
	// "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" split_words:"true"`
}

// DefaultConfig returns the built-in configuration. Paths that cannot be
// resolved are left empty and reported by Validate.
func DefaultConfig() *Config {
	socket, _ := runtimepath.SocketPath()
	snapshot, _ := runtimepath.SnapshotPath()
	return &Config{
		SocketPath:       socket,
		SnapshotPath:     snapshot,
		DesktopEntryDirs: runtimepath.DesktopEntryDirs(),
		LogLevel:         DefaultLogLevel,
		ReadTimeout:      DefaultReadTimeout,
		ClientTimeout:    DefaultClientTimeout,
	}
}

// ValidationError reports an invalid setting by its YAML path.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

// Error prefixes the message with the setting's origin when known.
func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying validation failure.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the configuration and returns the first problem as a
// *ValidationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SocketPath) == "" {
		return &ValidationError{Path: "socket_path", Err: fmt.Errorf("socket_path is required")}
	}
	if strings.TrimSpace(c.SnapshotPath) == "" {
		return &ValidationError{Path: "snapshot_path", Err: fmt.Errorf("snapshot_path is required")}
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.ReadTimeout <= 0 {
		return &ValidationError{Path: "read_timeout", Err: fmt.Errorf("read_timeout must be > 0")}
	}
	if c.ClientTimeout <= 0 {
		return &ValidationError{Path: "client_timeout", Err: fmt.Errorf("client_timeout must be > 0")}
	}
	for i, dir := range c.DesktopEntryDirs {
		if strings.TrimSpace(dir) == "" {
			return &ValidationError{Path: fmt.Sprintf("desktop_entry_dirs.%d", i), Err: fmt.Errorf("directory must not be empty")}
		}
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
