package daemon

import (
	"fmt"
	"testing"

	"github.com/1broseidon/list-windows/internal/ipc"
	"github.com/1broseidon/list-windows/internal/platform"
	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/stretchr/testify/assert"
)

type recordingBackend struct {
	calls       []string
	flushes     int
	activateErr error
}

func (b *recordingBackend) record(op string, h registry.Handle) {
	b.calls = append(b.calls, fmt.Sprintf("%s(%d)", op, h))
}

func (b *recordingBackend) Activate(h registry.Handle) error {
	if b.activateErr != nil {
		return b.activateErr
	}
	b.record("activate", h)
	return nil
}

func (b *recordingBackend) Minimize(h registry.Handle) error {
	b.record("minimize", h)
	return nil
}

func (b *recordingBackend) Maximize(h registry.Handle) error {
	b.record("maximize", h)
	return nil
}

func (b *recordingBackend) Unmaximize(h registry.Handle) error {
	b.record("unmaximize", h)
	return nil
}

func (b *recordingBackend) Close(h registry.Handle) error {
	b.record("close", h)
	return nil
}

func (b *recordingBackend) Flush() error {
	b.flushes++
	return nil
}

var _ platform.Backend = (*recordingBackend)(nil)

// threeWindows holds A, W, B in that order plus an incomplete window.
func threeWindows() *registry.Store {
	s := registry.New()
	s.Upsert(1, func(w *registry.Window) { w.Title, w.AppID = "A", "a" })
	s.Upsert(2, func(w *registry.Window) { w.Title, w.AppID = "W", "w" })
	s.Upsert(3, func(w *registry.Window) { w.Title = "pending" })
	s.Upsert(4, func(w *registry.Window) { w.Title, w.AppID = "B", "b" })
	return s
}

func TestDispatcher_ActivateOnly(t *testing.T) {
	b := &recordingBackend{}
	d := NewDispatcher(threeWindows(), b, nil, nil)

	d.HandleCommand(ipc.Command{Action: ipc.ActionActivateOnly, Title: "W"})

	assert.Equal(t, []string{"minimize(1)", "minimize(4)", "activate(2)"}, b.calls)
	assert.Equal(t, 1, b.flushes)
}

func TestDispatcher_SingleRequestActions(t *testing.T) {
	tests := []struct {
		action ipc.Action
		want   string
	}{
		{ipc.ActionActivate, "activate(4)"},
		{ipc.ActionMinimize, "minimize(4)"},
		{ipc.ActionMaximize, "maximize(4)"},
		{ipc.ActionUnmaximize, "unmaximize(4)"},
		{ipc.ActionClose, "close(4)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			b := &recordingBackend{}
			d := NewDispatcher(threeWindows(), b, nil, nil)
			d.HandleCommand(ipc.Command{Action: tt.action, Title: "B"})
			assert.Equal(t, []string{tt.want}, b.calls)
			assert.Equal(t, 1, b.flushes)
		})
	}
}

func TestDispatcher_UnknownTitleIssuesNothing(t *testing.T) {
	for _, title := range []string{"BadTitle", "pending", "w"} {
		b := &recordingBackend{}
		d := NewDispatcher(threeWindows(), b, nil, nil)

		d.HandleCommand(ipc.Command{Action: ipc.ActionActivateOnly, Title: title})
		assert.Empty(t, b.calls, "title %q", title)
		assert.Zero(t, b.flushes, "title %q", title)
	}
}

func TestDispatcher_ActivateWithoutSeatStillFlushes(t *testing.T) {
	b := &recordingBackend{activateErr: platform.ErrNoSeat}
	d := NewDispatcher(threeWindows(), b, nil, nil)

	d.HandleCommand(ipc.Command{Action: ipc.ActionActivateOnly, Title: "A"})
	assert.Equal(t, []string{"minimize(2)", "minimize(4)"}, b.calls)
	assert.Equal(t, 1, b.flushes)
}

func TestDispatcher_DuplicateTitlesTargetOldest(t *testing.T) {
	s := threeWindows()
	s.Upsert(9, func(w *registry.Window) { w.Title, w.AppID = "A", "a2" })
	b := &recordingBackend{}

	NewDispatcher(s, b, nil, nil).HandleCommand(ipc.Command{Action: ipc.ActionClose, Title: "A"})
	assert.Equal(t, []string{"close(1)"}, b.calls)
}
