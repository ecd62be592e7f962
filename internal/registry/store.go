// Package registry holds the daemon's view of the compositor's open
// top-level windows.
package registry

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handle identifies a window for its whole lifetime. It is the protocol
// object id of the window's toplevel handle.
type Handle uint32

// Window is one live top-level surface.
type Window struct {
	Handle Handle
	Title  string
	AppID  string
	Icon   string

	Focused    bool
	Minimized  bool
	Maximized  bool
	Fullscreen bool
}

// Complete reports whether the window has both a title and an app id.
// Incomplete windows are never published or targeted by commands.
func (w Window) Complete() bool {
	return w.Title != "" && w.AppID != ""
}

// Store maps handles to windows in creation order. It is not safe for
// concurrent use; the daemon's event loop owns it.
type Store struct {
	windows *orderedmap.OrderedMap[Handle, *Window]
}

// New creates an empty store.
func New() *Store {
	return &Store{windows: orderedmap.New[Handle, *Window]()}
}

// Upsert creates the window for h if needed and applies patch to it.
func (s *Store) Upsert(h Handle, patch func(*Window)) {
	w, ok := s.windows.Get(h)
	if !ok {
		w = &Window{Handle: h}
		s.windows.Set(h, w)
	}
	if patch != nil {
		patch(w)
	}
}

// Remove deletes h and reports whether it was present.
func (s *Store) Remove(h Handle) bool {
	_, ok := s.windows.Delete(h)
	return ok
}

// Get returns a copy of the window with handle h.
func (s *Store) Get(h Handle) (Window, bool) {
	w, ok := s.windows.Get(h)
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// FindByTitle returns the first complete window whose title equals title.
// When several windows share a title the oldest one wins.
func (s *Store) FindByTitle(title string) (Window, bool) {
	for p := s.windows.Oldest(); p != nil; p = p.Next() {
		if w := p.Value; w.Complete() && w.Title == title {
			return *w, true
		}
	}
	return Window{}, false
}

// All returns a copy of every window in creation order.
func (s *Store) All() []Window {
	out := make([]Window, 0, s.windows.Len())
	for p := s.windows.Oldest(); p != nil; p = p.Next() {
		out = append(out, *p.Value)
	}
	return out
}

// Complete returns the complete windows in creation order.
func (s *Store) Complete() []Window {
	var out []Window
	for p := s.windows.Oldest(); p != nil; p = p.Next() {
		if p.Value.Complete() {
			out = append(out, *p.Value)
		}
	}
	return out
}

// Len returns the number of tracked windows, complete or not.
func (s *Store) Len() int {
	return s.windows.Len()
}
