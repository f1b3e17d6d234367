// Package autoai lets a user delegate a conversation to an AI workflow for a
// while. The Scheduler tracks who delegated what; the Relay turns incoming
// human messages into webhook calls and delivers the replies.
package autoai

import (
	"sync"
	"time"
)

// DefaultMinutes is the window used when no duration is given.
const DefaultMinutes = 9999

// Session is an active delegation from Activator for conversations with Target.
type Session struct {
	Activator string
	Target    string
	Active    bool
	Expires   time.Time
}

// Key identifies a session.
func Key(activator, target string) string {
	return activator + ":" + target
}

// Scheduler keeps sessions in memory only; they do not survive a restart.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{sessions: map[string]Session{}, now: time.Now}
}

// Enable starts or replaces the session activator:target. minutes <= 0
// selects DefaultMinutes.
func (s *Scheduler) Enable(activator, target string, minutes int) Session {
	if minutes <= 0 {
		minutes = DefaultMinutes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{
		Activator: activator,
		Target:    target,
		Active:    true,
		Expires:   s.now().Add(time.Duration(minutes) * time.Minute),
	}
	s.sessions[Key(activator, target)] = sess
	return sess
}

// Disable removes the session and reports whether one existed.
func (s *Scheduler) Disable(activator, target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key(activator, target)
	if _, ok := s.sessions[k]; !ok {
		return false
	}
	delete(s.sessions, k)
	return true
}

// Match finds a live session covering a message from sender to recipient.
// A session delegated by the recipient wins over one delegated by the
// sender. Expired sessions found on the way are dropped.
func (s *Scheduler) Match(sender, recipient string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, k := range []string{Key(recipient, sender), Key(sender, recipient)} {
		sess, ok := s.sessions[k]
		if !ok {
			continue
		}
		if !sess.Active || !now.Before(sess.Expires) {
			delete(s.sessions, k)
			continue
		}
		return sess, true
	}
	return Session{}, false
}
