package chat

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/autoai"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/dmitrijs2005/gophtalk/internal/server/friends"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/presence"
	"github.com/dmitrijs2005/gophtalk/internal/server/protocol"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeResponder) Relay(ctx context.Context, req webhook.RelayRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeResponder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAssist struct {
	mu        sync.Mutex
	summaries []webhook.ConversationRequest
	summary   string
	helper    string
	playbook  int
	fileMania []webhook.FileManiaRequest
	err       error
}

func (f *fakeAssist) Summarize(ctx context.Context, req webhook.ConversationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, req)
	return f.summary, f.err
}

func (f *fakeAssist) Helper(ctx context.Context, req webhook.HelperRequest) (string, error) {
	return f.helper, f.err
}

func (f *fakeAssist) Playbook(ctx context.Context, req webhook.ConversationRequest) (int, error) {
	return f.playbook, f.err
}

func (f *fakeAssist) Summaries() []webhook.ConversationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhook.ConversationRequest(nil), f.summaries...)
}

func (f *fakeAssist) FileManiaCalls() []webhook.FileManiaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhook.FileManiaRequest(nil), f.fileMania...)
}

func (f *fakeAssist) FileMania(ctx context.Context, req webhook.FileManiaRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileMania = append(f.fileMania, req)
	return "looks fine", f.err
}

type harness struct {
	addr      string
	repo      *credentials.FileRepository
	creds     *credentials.Service
	graph     *friends.Graph
	ledger    *ledger.Ledger
	hub       *presence.Hub
	scheduler *autoai.Scheduler
	responder *fakeResponder
	assist    *fakeAssist
}

type harnessOption func(*Options)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	log := logging.NewNopLogger()

	repo := credentials.NewFileRepository(filepath.Join(dir, "users_db.json"), filepath.Join(dir, "temporary_passwords.json"))
	graph, err := friends.Open(context.Background(), filepath.Join(dir, "friends_data.json"), log)
	require.NoError(t, err)
	led, err := ledger.Open(ctx, filepath.Join(dir, "chat_history.json"), log)
	require.NoError(t, err)

	h := &harness{
		repo:      repo,
		creds:     credentials.NewService(repo),
		graph:     graph,
		ledger:    led,
		hub:       presence.NewHub(),
		scheduler: autoai.NewScheduler(),
		responder: &fakeResponder{reply: "auto reply"},
		assist:    &fakeAssist{summary: "all good", helper: "try this", playbook: 200},
	}
	relay := autoai.NewRelay(h.scheduler, h.responder, led, 20, protocol.AutoAIError, log)

	o := Options{AssistHistory: 50}
	for _, fn := range opts {
		fn(&o)
	}

	srv := NewServer(o, Deps{
		Auth:      h.creds,
		Friends:   graph,
		Ledger:    led,
		Hub:       h.hub,
		Scheduler: h.scheduler,
		Relay:     relay,
		Assist:    h.assist,
	}, log)

	var ln net.Listener
	ln, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h.addr = ln.Addr().String()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("chat server did not stop")
		}
	})
	return h
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// seedUsers stores active accounts whose password equals their name.
func (h *harness) seedUsers(t *testing.T, names ...string) {
	t.Helper()
	users, err := h.repo.LoadUsers(context.Background())
	require.NoError(t, err)
	for _, n := range names {
		users[n] = &credentials.User{PasswordHash: sha(n)}
	}
	require.NoError(t, h.repo.SaveUsers(context.Background(), users))
}

func (h *harness) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.graph.Request(ctx, a, b))
	_, err := h.graph.Respond(ctx, b, 1, true)
	require.NoError(t, err)
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (h *harness) dial(t *testing.T) *client {
	t.Helper()
	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *client) read() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSuffix(line, "\n")
}

func (c *client) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.Equal(c.t, want, c.read())
	}
}

// expectSilence asserts nothing arrives for a short while.
func (c *client) expectSilence() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	line, err := c.r.ReadString('\n')
	require.Error(c.t, err, "unexpected line %q", line)
	var ne net.Error
	require.ErrorAs(c.t, err, &ne)
	require.True(c.t, ne.Timeout())
}

// login authenticates a seeded user and consumes the greeting.
func (h *harness) login(t *testing.T, name string) *client {
	t.Helper()
	c := h.dial(t)
	c.send("LOGIN|" + name + "|" + name)
	c.expect("LOGIN_OK")
	c.expect("Welcome "+name+"!", "Connected. Type /help for commands.")
	return c
}
