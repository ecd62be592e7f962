package snapshot

import (
	"bytes"
	"log/slog"
	"os"

	"github.com/1broseidon/list-windows/internal/registry"
)

// IconResolver maps an app id to an icon name.
type IconResolver interface {
	Resolve(appID string) string
}

// Publisher writes the complete windows of a registry to the snapshot file.
type Publisher struct {
	path     string
	resolver IconResolver
	logger   *slog.Logger
	last     []byte
	written  os.FileInfo
}

// NewPublisher creates a publisher for path. A nil resolver leaves icons
// empty.
func NewPublisher(path string, resolver IconResolver, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{path: path, resolver: resolver, logger: logger}
}

// Path returns the snapshot file path.
func (p *Publisher) Path() string {
	return p.path
}

// Entries fills missing icons in store and returns its complete windows in
// registry order.
func (p *Publisher) Entries(store *registry.Store) []Entry {
	windows := store.Complete()
	entries := make([]Entry, 0, len(windows))
	for _, w := range windows {
		if w.Icon == "" && p.resolver != nil {
			icon := p.resolver.Resolve(w.AppID)
			if icon != "" {
				store.Upsert(w.Handle, func(win *registry.Window) { win.Icon = icon })
				w.Icon = icon
			}
		}
		entries = append(entries, Entry{
			Title:     w.Title,
			AppID:     w.AppID,
			Icon:      w.Icon,
			Focused:   w.Focused,
			Minimized: w.Minimized,
			Maximized: w.Maximized,
		})
	}
	return entries
}

// Publish encodes store and replaces the snapshot file. It reports false
// without touching the file when the content equals the last successful
// publish and the file on disk is still the one that publish wrote.
func (p *Publisher) Publish(store *registry.Store) (bool, error) {
	entries := p.Entries(store)
	data, err := Marshal(entries)
	if err != nil {
		return false, err
	}
	if p.unchanged(data) {
		return false, nil
	}
	if err := WriteFile(p.path, data); err != nil {
		return false, err
	}
	p.last = data
	p.written = nil
	if fi, err := os.Stat(p.path); err == nil {
		p.written = fi
	}
	p.logger.Debug("snapshot published", "path", p.path, "windows", len(entries))
	return true, nil
}

// unchanged reports whether data matches the last publish and nobody has
// since removed, replaced or rewritten the file.
func (p *Publisher) unchanged(data []byte) bool {
	if p.written == nil || !bytes.Equal(data, p.last) {
		return false
	}
	fi, err := os.Stat(p.path)
	if err != nil {
		return false
	}
	return os.SameFile(fi, p.written) &&
		fi.Size() == p.written.Size() &&
		fi.ModTime().Equal(p.written.ModTime())
}
