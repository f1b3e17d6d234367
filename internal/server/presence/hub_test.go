package presence

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestHub_RegisterRejectsSecondSession(t *testing.T) {
	h := NewHub()
	first := NewPeer("alice", &bytes.Buffer{})
	_, err := h.Register(first)
	require.NoError(t, err)

	_, err = h.Register(NewPeer("alice", &bytes.Buffer{}), "LOGIN_OK")
	assert.ErrorIs(t, err, common.ErrAlreadyOnline)
	assert.True(t, h.IsOnline("alice"))
}

func TestHub_UnregisterIgnoresStalePeer(t *testing.T) {
	h := NewHub()
	old := NewPeer("alice", &bytes.Buffer{})
	_, err := h.Register(old)
	require.NoError(t, err)
	h.Unregister(old)

	cur := NewPeer("alice", &bytes.Buffer{})
	_, err = h.Register(cur)
	require.NoError(t, err)

	h.Unregister(old)
	assert.True(t, h.IsOnline("alice"))
	assert.Equal(t, []string{"alice"}, h.Online())
}

func TestHub_DeliverLiveAndOffline(t *testing.T) {
	h := NewHub()
	var buf bytes.Buffer
	_, err := h.Register(NewPeer("bob", &buf))
	require.NoError(t, err)

	assert.True(t, h.Deliver("alice", "bob", "hi\nthere"))
	assert.Equal(t, "alice|hi there\n", buf.String())

	assert.False(t, h.Deliver("alice", "carol", "first"))
	assert.False(t, h.Deliver("bob", "carol", "second"))
	assert.Equal(t, 2, h.QueuedFor("carol"))

	var carol bytes.Buffer
	n, err := h.Register(NewPeer("carol", &carol), "LOGIN_OK")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "LOGIN_OK\nalice|first\nbob|second\n", carol.String())
	assert.Zero(t, h.QueuedFor("carol"))
}

func TestHub_DeliverQueuesWhenWriteFails(t *testing.T) {
	h := NewHub()
	_, err := h.Register(NewPeer("bob", failingWriter{}))
	require.NoError(t, err)

	assert.False(t, h.Deliver("alice", "bob", "lost?"))
	assert.Equal(t, 1, h.QueuedFor("bob"))
	assert.False(t, h.IsOnline("bob"))
}

func TestHub_RegisterKeepsQueueWhenFlushFails(t *testing.T) {
	h := NewHub()
	h.Deliver("alice", "bob", "keep me")

	_, err := h.Register(NewPeer("bob", failingWriter{}), "LOGIN_OK")
	require.Error(t, err)
	assert.False(t, h.IsOnline("bob"))
	assert.Equal(t, 1, h.QueuedFor("bob"))
}

func TestHub_Unread(t *testing.T) {
	h := NewHub()
	assert.False(t, h.HasUnread("bob", "alice"))

	h.MarkUnread("bob", "alice", "one")
	assert.True(t, h.HasUnread("bob", "alice"))
	assert.False(t, h.HasUnread("alice", "bob"))

	h.ClearUnread("bob", "alice")
	assert.False(t, h.HasUnread("bob", "alice"))
}

func TestHub_NotifyOffline(t *testing.T) {
	h := NewHub()
	assert.False(t, h.Notify("ghost", "hello"))
	assert.Zero(t, h.QueuedFor("ghost"))
}

func TestPeer_ClosedRejectsWrites(t *testing.T) {
	p := NewPeer("a", &bytes.Buffer{})
	p.Close()
	assert.ErrorIs(t, p.Send("x"), common.ErrPeerClosed)
}

func TestPeer_ConcurrentSendsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	p := NewPeer("a", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Send(strings.Repeat("x", 100))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, l := range lines {
		assert.Len(t, l, 100)
	}
}

func shortWriteTimeout(t *testing.T, d time.Duration) {
	t.Helper()
	old := writeTimeout
	writeTimeout = d
	t.Cleanup(func() { writeTimeout = old })
}

// stalledConn returns the server end of a pipe whose client never reads.
func stalledConn(t *testing.T) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server
}

func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call did not return within %s", d)
	}
}

func TestHub_StalledLoginDoesNotBlockOthers(t *testing.T) {
	shortWriteTimeout(t, 300*time.Millisecond)
	h := NewHub()
	h.Deliver("alice", "bob", "queued")

	conn := stalledConn(t)
	errc := make(chan error, 1)
	go func() {
		_, err := h.Register(NewPeer("bob", conn), "LOGIN_OK")
		errc <- err
	}()

	within(t, 100*time.Millisecond, func() {
		assert.False(t, h.IsOnline("carol"))
		assert.False(t, h.Deliver("alice", "carol", "hi"))
		assert.Equal(t, []string{}, withoutBob(h.Online()))
	})

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("register did not give up on a stalled client")
	}
	assert.False(t, h.IsOnline("bob"))
	assert.Equal(t, 1, h.QueuedFor("bob"))
	assert.Equal(t, 1, h.QueuedFor("carol"))
}

func withoutBob(names []string) []string {
	out := []string{}
	for _, n := range names {
		if n != "bob" {
			out = append(out, n)
		}
	}
	return out
}

func TestHub_DeliverToStalledReaderQueues(t *testing.T) {
	shortWriteTimeout(t, 100*time.Millisecond)
	h := NewHub()
	_, err := h.Register(NewPeer("bob", stalledConn(t)))
	require.NoError(t, err)

	within(t, time.Second, func() {
		assert.False(t, h.Deliver("alice", "bob", "one"))
	})
	assert.False(t, h.IsOnline("bob"))

	within(t, 50*time.Millisecond, func() {
		assert.False(t, h.Deliver("alice", "bob", "two"))
	})
	assert.Equal(t, 2, h.QueuedFor("bob"))
}

func TestHub_LiveDeliveryWaitsForQueueFlush(t *testing.T) {
	h := NewHub()
	h.Deliver("alice", "bob", "queued")

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() { _, _ = h.Register(NewPeer("bob", server), "LOGIN_OK") }()
	require.Eventually(t, func() bool { return h.IsOnline("bob") }, time.Second, 5*time.Millisecond)

	go h.Deliver("carol", "bob", "live")

	r := bufio.NewReader(client)
	var got []string
	for i := 0; i < 3; i++ {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		got = append(got, strings.TrimSuffix(line, "\n"))
	}
	assert.Equal(t, []string{"LOGIN_OK", "alice|queued", "carol|live"}, got)
}
