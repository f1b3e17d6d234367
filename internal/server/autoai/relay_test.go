package autoai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	mu    sync.Mutex
	reqs  []webhook.RelayRequest
	reply string
	err   error
}

func (f *fakeResponder) Relay(ctx context.Context, req webhook.RelayRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

type fakeHistory struct{ entries []ledger.Entry }

func (f fakeHistory) Recent(user, peer string, n int) []ledger.Entry {
	if n > 0 && len(f.entries) > n {
		return f.entries[len(f.entries)-n:]
	}
	return f.entries
}

type sent struct{ from, to, text string }

type fakeOutbox struct {
	mu      sync.Mutex
	ai      []sent
	notices []sent
}

func (f *fakeOutbox) SendAI(ctx context.Context, from, to, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ai = append(f.ai, sent{from, to, text})
}

func (f *fakeOutbox) Notice(user, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, sent{to: user, text: text})
}

func errText(err error) string { return fmt.Sprintf("(AutoAI error: %v)", err) }

func TestRelay_RepliesOnBehalfOfRecipient(t *testing.T) {
	s, _ := newTestScheduler()
	s.Enable("alice", "bob", 15)

	hist := make([]ledger.Entry, 30)
	for i := range hist {
		hist[i] = ledger.Entry{Sender: "bob", Message: fmt.Sprint(i)}
	}
	resp := &fakeResponder{reply: "on my way"}
	out := &fakeOutbox{}
	r := NewRelay(s, resp, fakeHistory{entries: hist}, 20, errText, logging.NewNopLogger())

	assert.True(t, r.Handle(context.Background(), "bob", "alice", "where are you?", out))
	r.Wait()

	require.Len(t, resp.reqs, 1)
	assert.Equal(t, "alice", resp.reqs[0].Sender)
	assert.Equal(t, "bob", resp.reqs[0].Recipient)
	assert.Equal(t, "where are you?", resp.reqs[0].LatestMessage)
	assert.Len(t, resp.reqs[0].RecentMessages, 20)

	assert.Equal(t, []sent{{from: "alice", to: "bob", text: "on my way"}}, out.ai)
	assert.Empty(t, out.notices)
}

func TestRelay_NoSessionNoCall(t *testing.T) {
	s, _ := newTestScheduler()
	resp := &fakeResponder{}
	r := NewRelay(s, resp, fakeHistory{}, 20, errText, logging.NewNopLogger())

	assert.False(t, r.Handle(context.Background(), "bob", "alice", "hi", &fakeOutbox{}))
	r.Wait()
	assert.Empty(t, resp.reqs)
}

func TestRelay_FailureNotifiesDelegatingUser(t *testing.T) {
	s, _ := newTestScheduler()
	s.Enable("alice", "bob", 15)
	resp := &fakeResponder{err: errors.New("timeout")}
	out := &fakeOutbox{}
	r := NewRelay(s, resp, fakeHistory{}, 20, errText, logging.NewNopLogger())

	r.Handle(context.Background(), "bob", "alice", "hi", out)
	r.Wait()

	assert.Empty(t, out.ai)
	assert.Equal(t, []sent{{to: "alice", text: "(AutoAI error: timeout)"}}, out.notices)

	// failure leaves the session in place
	_, ok := s.Match("bob", "alice")
	assert.True(t, ok)
}

func TestRelay_SurvivesCanceledCallerContext(t *testing.T) {
	s, _ := newTestScheduler()
	s.Enable("alice", "bob", 15)
	out := &fakeOutbox{}
	r := NewRelay(s, ctxAwareResponder{}, fakeHistory{}, 20, errText, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Handle(ctx, "bob", "alice", "hi", out)
	r.Wait()

	assert.Len(t, out.ai, 1)
}

type ctxAwareResponder struct{}

func (ctxAwareResponder) Relay(ctx context.Context, req webhook.RelayRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "ok", nil
}
