package ipc

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type recorder struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *recorder) HandleCommand(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
}

func (r *recorder) commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

func listen(t *testing.T) (*Server, *recorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg", "lw.sock")
	rec := &recorder{}
	s, err := Listen(path, rec, ServerOptions{ReadTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

// waitReadable blocks until the listener has a pending connection.
func waitReadable(t *testing.T, s *Server) {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(s.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 2000)
	require.NoError(t, err)
	require.Equal(t, 1, n, "listener never became readable")
}

func rawSend(t *testing.T, path, data string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	if data != "" {
		_, err = conn.Write([]byte(data))
		require.NoError(t, err)
	}
	return conn
}

func TestListen_SocketPermissionsAndStaleFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	path := filepath.Join(dir, "lw.sock")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	s, err := Listen(path, &recorder{}, ServerOptions{})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode()&os.ModeSocket)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket file should be removed on close")
}

func TestServer_HandlesClientCommand(t *testing.T) {
	s, rec := listen(t)

	client := NewClient(s.Path(), time.Second)
	require.NoError(t, client.Send(Command{Action: ActionActivateOnly, Title: "My Window"}))

	waitReadable(t, s)
	require.NoError(t, s.HandleNext())
	assert.Equal(t, []Command{{Action: ActionActivateOnly, Title: "My Window"}}, rec.commands())
}

func TestServer_AcceptsLineWithoutTerminator(t *testing.T) {
	s, rec := listen(t)

	conn := rawSend(t, s.Path(), "MINIMIZE Editor")
	conn.Close()

	waitReadable(t, s)
	require.NoError(t, s.HandleNext())
	assert.Equal(t, []Command{{Action: ActionMinimize, Title: "Editor"}}, rec.commands())
}

func TestServer_DropsInvalidCommandsWithoutReply(t *testing.T) {
	s, rec := listen(t)

	for _, line := range []string{"resize Foo\n", "activate\n", "\n"} {
		conn := rawSend(t, s.Path(), line)

		waitReadable(t, s)
		require.NoError(t, s.HandleNext())

		// The server closes without writing anything back.
		conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 16)
		n, err := conn.Read(buf)
		assert.Equal(t, 0, n)
		assert.Error(t, err)
		conn.Close()
	}
	assert.Empty(t, rec.commands())
}

func TestServer_SilentClientTimesOut(t *testing.T) {
	s, rec := listen(t)

	conn := rawSend(t, s.Path(), "")
	defer conn.Close()

	waitReadable(t, s)
	start := time.Now()
	require.NoError(t, s.HandleNext())
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, rec.commands())
}

func TestServer_DropsOversizedLine(t *testing.T) {
	s, rec := listen(t)

	big := make([]byte, MaxLineLength+10)
	for i := range big {
		big[i] = 'x'
	}
	copy(big, "close ")
	go func() {
		conn, err := net.Dial("unix", s.Path())
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(big)
	}()

	waitReadable(t, s)
	require.NoError(t, s.HandleNext())
	assert.Empty(t, rec.commands())
}

func TestServer_HandleNextWithoutPendingConnection(t *testing.T) {
	s, _ := listen(t)
	assert.NoError(t, s.HandleNext())
}

func TestClient_NoDaemon(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "absent.sock"), 100*time.Millisecond)

	start := time.Now()
	err := client.Send(Command{Action: ActionActivate, Title: "My Window"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to daemon")
	assert.Less(t, time.Since(start), time.Second)
}
