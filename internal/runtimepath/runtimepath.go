package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user config directory and the control socket.
const AppName = "list-windows"

// Dir returns the runtime directory the compositor socket lives in.
// Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	runUserDir := fmt.Sprintf("/run/user/%d", os.Getuid())
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}
	return "", fmt.Errorf("XDG_RUNTIME_DIR is not set and %s does not exist", runUserDir)
}

// ConfigDir returns $XDG_CONFIG_HOME/list-windows, falling back to
// ~/.config/list-windows.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// SocketPath returns the daemon control socket path.
func SocketPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".sock"), nil
}

// SnapshotPath returns the published window list path.
func SnapshotPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "windows.ini"), nil
}

// ConfigPath returns the optional YAML config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WaylandSocketPath resolves WAYLAND_DISPLAY (default wayland-0). Relative
// names are joined to the runtime directory.
func WaylandSocketPath() (string, error) {
	name := os.Getenv("WAYLAND_DISPLAY")
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DesktopEntryDirs returns the directories searched for .desktop files, in
// lookup order.
func DesktopEntryDirs() []string {
	dirs := []string{"/usr/share/applications", "/usr/local/share/applications"}
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return dirs
		}
		data = filepath.Join(home, ".local", "share")
	}
	return append(dirs, filepath.Join(data, "applications"))
}
