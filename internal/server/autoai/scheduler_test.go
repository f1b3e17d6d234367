package autoai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestScheduler() (*Scheduler, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler()
	s.now = clk.now
	return s, clk
}

func TestScheduler_EnableAndMatchBothDirections(t *testing.T) {
	s, _ := newTestScheduler()
	s.Enable("alice", "bob", 15)

	sess, ok := s.Match("bob", "alice")
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Activator)
	assert.Equal(t, "bob", sess.Target)

	_, ok = s.Match("alice", "bob")
	assert.True(t, ok)

	_, ok = s.Match("carol", "alice")
	assert.False(t, ok)
}

func TestScheduler_Expiry(t *testing.T) {
	s, clk := newTestScheduler()
	s.Enable("alice", "bob", 15)

	clk.t = clk.t.Add(14*time.Minute + 59*time.Second)
	_, ok := s.Match("bob", "alice")
	assert.True(t, ok)

	clk.t = clk.t.Add(time.Second)
	_, ok = s.Match("bob", "alice")
	assert.False(t, ok)

	// expired sessions are gone for good
	assert.False(t, s.Disable("alice", "bob"))
}

func TestScheduler_DefaultWindow(t *testing.T) {
	s, clk := newTestScheduler()
	sess := s.Enable("alice", "bob", 0)
	assert.Equal(t, clk.t.Add(DefaultMinutes*time.Minute), sess.Expires)
}

func TestScheduler_Disable(t *testing.T) {
	s, _ := newTestScheduler()
	assert.False(t, s.Disable("alice", "bob"))

	s.Enable("alice", "bob", 5)
	assert.True(t, s.Disable("alice", "bob"))
	assert.False(t, s.Disable("alice", "bob"))

	_, ok := s.Match("bob", "alice")
	assert.False(t, ok)
}

func TestScheduler_RecipientDelegationWins(t *testing.T) {
	s, _ := newTestScheduler()
	s.Enable("alice", "bob", 5)
	s.Enable("bob", "alice", 5)

	sess, ok := s.Match("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, "bob", sess.Activator)
}
