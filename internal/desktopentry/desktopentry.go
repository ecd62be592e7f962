// Package desktopentry maps Wayland app ids to icon names using the
// freedesktop .desktop files installed on the system.
package desktopentry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

const mainSection = "Desktop Entry"

// Entry is the subset of a [Desktop Entry] group used for icon lookup.
type Entry struct {
	Path       string
	Name       string
	Exec       string
	Icon       string
	WMClass    string
	OnlyShowIn string
}

// excluded reports whether the entry is a desktop handler or an
// environment-specific service rather than an application window.
func (e Entry) excluded() bool {
	return e.OnlyShowIn != "" ||
		strings.Contains(strings.ToLower(e.Exec), "--desktop") ||
		strings.EqualFold(e.Name, "Desktop")
}

// execName is the base name of the first Exec token.
func (e Entry) execName() string {
	fields := strings.Fields(e.Exec)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(strings.Trim(fields[0], `"`))
}

var loadOptions = ini.LoadOptions{
	Loose:                   true,
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
}

// ParseFile reads the [Desktop Entry] group of one file.
func ParseFile(path string) (Entry, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return Entry{}, err
	}
	sec, err := f.GetSection(mainSection)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:       path,
		Name:       sec.Key("Name").String(),
		Exec:       sec.Key("Exec").String(),
		Icon:       sec.Key("Icon").String(),
		WMClass:    sec.Key("StartupWMClass").String(),
		OnlyShowIn: sec.Key("OnlyShowIn").String(),
	}, nil
}

// Index is an ordered list of usable desktop entries.
type Index struct {
	entries []Entry
	skipped int
}

// LoadIndex scans dirs in order, and the *.desktop files of each dir sorted
// by name. Missing directories and unparsable files are skipped.
func LoadIndex(dirs ...string) *Index {
	ix := &Index{}
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.desktop"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, path := range matches {
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			e, err := ParseFile(path)
			if err != nil {
				ix.skipped++
				continue
			}
			if e.excluded() {
				continue
			}
			ix.entries = append(ix.entries, e)
		}
	}
	return ix
}

// Len returns the number of usable entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns the usable entries in lookup order.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// ShortName returns the part of appID after its last dot.
func ShortName(appID string) string {
	if i := strings.LastIndexByte(appID, '.'); i >= 0 {
		return appID[i+1:]
	}
	return appID
}

// Lookup returns the icon for appID. The first entry whose Name,
// StartupWMClass or Exec equals the short name (ignoring case) wins;
// otherwise the first entry containing it in one of those fields; otherwise
// the short name itself.
func (ix *Index) Lookup(appID string) string {
	if appID == "" {
		return ""
	}
	short := ShortName(appID)
	lower := strings.ToLower(short)

	fallback := ""
	for _, e := range ix.entries {
		if strings.EqualFold(e.Name, short) ||
			strings.EqualFold(e.WMClass, short) ||
			strings.EqualFold(e.Exec, short) ||
			strings.EqualFold(e.execName(), short) {
			return e.Icon
		}
		if fallback == "" && (strings.Contains(strings.ToLower(e.Name), lower) ||
			strings.Contains(strings.ToLower(e.WMClass), lower) ||
			strings.Contains(strings.ToLower(e.Exec), lower)) {
			fallback = e.Icon
		}
	}
	if fallback != "" {
		return fallback
	}
	return short
}

// Resolver loads the index on first use and memoizes lookups per app id.
type Resolver struct {
	dirs   []string
	logger *slog.Logger

	once  sync.Once
	index *Index
	cache map[string]string
}

// NewResolver creates a resolver over dirs. The index is read on first use.
func NewResolver(dirs []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		dirs:   append([]string(nil), dirs...),
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Resolve returns the icon name for appID.
func (r *Resolver) Resolve(appID string) string {
	if appID == "" {
		return ""
	}
	if icon, ok := r.cache[appID]; ok {
		return icon
	}
	r.once.Do(func() {
		r.index = LoadIndex(r.dirs...)
		r.logger.Debug("desktop entries indexed", "entries", r.index.Len(), "skipped", r.index.skipped, "dirs", r.dirs)
	})
	icon := r.index.Lookup(appID)
	r.cache[appID] = icon
	return icon
}
