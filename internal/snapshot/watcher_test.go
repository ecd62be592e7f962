package snapshot

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	seen [][]Entry
}

func (c *collector) add(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, entries)
}

func (c *collector) last() ([]Entry, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return nil, 0
	}
	return c.seen[len(c.seen)-1], len(c.seen)
}

func TestWatcher_DeliversInitialAndReplacedSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lw", "windows.ini")

	c := &collector{}
	w, err := NewWatcher(path, c.add, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i, title := range []string{"First", "Second"} {
		data, err := Marshal([]Entry{{Title: title, AppID: "app"}})
		require.NoError(t, err)
		require.NoError(t, WriteFile(path, data))

		require.Eventually(t, func() bool {
			entries, n := c.last()
			return n >= i+1 && len(entries) == 1 && entries[0].Title == title
		}, 2*time.Second, 10*time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "windows.ini")

	c := &collector{}
	w, err := NewWatcher(path, c.add, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, WriteFile(filepath.Join(dir, "other.ini"), []byte("[1]\nTitle=x\n")))
	time.Sleep(100 * time.Millisecond)
	_, n := c.last()
	require.Equal(t, 0, n)
}
