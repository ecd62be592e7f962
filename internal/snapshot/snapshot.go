// Package snapshot reads and writes the INI file through which the daemon
// shares its window list with other processes.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

func init() {
	// Key=value lines, no alignment padding.
	ini.PrettyFormat = false
	ini.PrettyEqual = false
}

// Entry is one published window. Sections carry no handle: consumers
// address windows by title.
type Entry struct {
	Title     string
	AppID     string
	Icon      string
	Focused   bool
	Minimized bool
	Maximized bool
}

var options = ini.LoadOptions{
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
}

// quoteValue returns v as written to the file. Values ini would alter on
// read (leading quote or backtick, surrounding whitespace, control
// characters) are written as a Go quoted string; everything else is raw.
func quoteValue(v string) string {
	if v == "" {
		return v
	}
	if strings.ContainsRune("\"'`", rune(v[0])) ||
		strings.TrimSpace(v) != v ||
		strings.ContainsFunc(v, func(r rune) bool { return !strconv.IsPrint(r) }) {
		return strconv.Quote(v)
	}
	return v
}

// unquoteValue reverses quoteValue. A raw value never starts with a double
// quote, so anything that does and unquotes cleanly was quoted by us.
func unquoteValue(v string) string {
	if strings.HasPrefix(v, `"`) {
		if u, err := strconv.Unquote(v); err == nil {
			return u
		}
	}
	return v
}

// Encode writes entries as sections [1]..[n] with keys in a fixed order.
func Encode(w io.Writer, entries []Entry) error {
	f := ini.Empty(options)
	for i, e := range entries {
		sec, err := f.NewSection(strconv.Itoa(i + 1))
		if err != nil {
			return err
		}
		for _, kv := range [...]struct{ k, v string }{
			{"Title", quoteValue(e.Title)},
			{"AppID", quoteValue(e.AppID)},
			{"Icon", quoteValue(e.Icon)},
			{"Focused", strconv.FormatBool(e.Focused)},
			{"Minimized", strconv.FormatBool(e.Minimized)},
			{"Maximized", strconv.FormatBool(e.Maximized)},
		} {
			if _, err := sec.NewKey(kv.k, kv.v); err != nil {
				return fmt.Errorf("section %d: %w", i+1, err)
			}
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// Marshal is Encode into a byte slice.
func Marshal(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse reads entries in section order. Keys outside a section are ignored;
// missing or malformed booleans read as false.
func Parse(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(options, data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	var out []Entry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		out = append(out, Entry{
			Title:     unquoteValue(sec.Key("Title").String()),
			AppID:     unquoteValue(sec.Key("AppID").String()),
			Icon:      unquoteValue(sec.Key("Icon").String()),
			Focused:   sec.Key("Focused").MustBool(false),
			Minimized: sec.Key("Minimized").MustBool(false),
			Maximized: sec.Key("Maximized").MustBool(false),
		})
	}
	return out, nil
}

// Load parses the snapshot file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// WriteFile replaces path atomically: readers see either the previous file
// or the complete new one.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
