package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/1broseidon/list-windows/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver struct {
	icons map[string]string
	calls int
}

func (r *mapResolver) Resolve(appID string) string {
	r.calls++
	return r.icons[appID]
}

func populated() *registry.Store {
	s := registry.New()
	s.Upsert(1, func(w *registry.Window) { w.Title, w.AppID, w.Focused = "Terminal", "foot", true })
	s.Upsert(2, func(w *registry.Window) { w.Title = "Loading" }) // incomplete
	s.Upsert(3, func(w *registry.Window) { w.Title, w.AppID, w.Minimized = "Browser", "firefox", true })
	return s
}

func TestPublisher_WritesCompleteWindowsWithIcons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.ini")
	res := &mapResolver{icons: map[string]string{"foot": "utilities-terminal", "firefox": "firefox"}}
	store := populated()

	p := NewPublisher(path, res, nil)
	wrote, err := p.Publish(store)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Title: "Terminal", AppID: "foot", Icon: "utilities-terminal", Focused: true},
		{Title: "Browser", AppID: "firefox", Icon: "firefox", Minimized: true},
	}, got)

	// Icons are stored back so they are resolved once per window.
	w, _ := store.Get(1)
	assert.Equal(t, "utilities-terminal", w.Icon)
	calls := res.calls
	_, err = p.Publish(store)
	require.NoError(t, err)
	assert.Equal(t, calls, res.calls)
}

func TestPublisher_Deterministic(t *testing.T) {
	dir := t.TempDir()
	res := &mapResolver{icons: map[string]string{"foot": "foot"}}

	a := filepath.Join(dir, "a.ini")
	b := filepath.Join(dir, "b.ini")
	_, err := NewPublisher(a, res, nil).Publish(populated())
	require.NoError(t, err)
	_, err = NewPublisher(b, res, nil).Publish(populated())
	require.NoError(t, err)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestPublisher_SkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.ini")
	store := populated()
	p := NewPublisher(path, nil, nil)

	wrote, err := p.Publish(store)
	require.NoError(t, err)
	assert.True(t, wrote)

	// An incomplete window changing does not alter the published content.
	store.Upsert(2, func(w *registry.Window) { w.Title = "Still loading" })
	wrote, err = p.Publish(store)
	require.NoError(t, err)
	assert.False(t, wrote)

	store.Remove(1)
	wrote, err = p.Publish(store)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Browser", got[0].Title)
}

func TestPublisher_RestoresRemovedOrReplacedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.ini")
	store := populated()
	p := NewPublisher(path, nil, nil)

	_, err := p.Publish(store)
	require.NoError(t, err)
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	wrote, err := p.Publish(store)
	require.NoError(t, err)
	assert.True(t, wrote, "removed file is written again")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Another process renames its own file over the snapshot.
	require.NoError(t, WriteFile(path, []byte("[1]\nTitle=Impostor\n")))
	wrote, err = p.Publish(store)
	require.NoError(t, err)
	assert.True(t, wrote, "replaced file is written again")
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wrote, err = p.Publish(store)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestPublisher_EmptyRegistryWritesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.ini")
	_, err := NewPublisher(path, nil, nil).Publish(registry.New())
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublisher_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	// The parent of the snapshot path is a regular file.
	p := NewPublisher(filepath.Join(blocker, "windows.ini"), nil, nil)
	_, err := p.Publish(populated())
	assert.Error(t, err)
}
