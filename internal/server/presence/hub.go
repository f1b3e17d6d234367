package presence

import (
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophtalk/internal/common"
)

// Queued is a message held for a user who was offline when it was sent.
type Queued struct {
	Sender  string
	Message string
}

// Frame renders the queued message the way live deliveries look.
func (q Queued) Frame() string {
	return DeliveryFrame(q.Sender, q.Message)
}

// DeliveryFrame formats a chat message for the wire as "sender|message".
// Line breaks inside the message are flattened so one frame stays one line.
func DeliveryFrame(sender, message string) string {
	message = strings.ReplaceAll(message, "\r\n", " ")
	message = strings.ReplaceAll(message, "\n", " ")
	return sender + "|" + message
}

// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	online  map[string]*Peer
	unread  map[string]map[string][]string
	offline map[string][]Queued
}

func NewHub() *Hub {
	return &Hub{
		online:  map[string]*Peer{},
		unread:  map[string]map[string][]string{},
		offline: map[string][]Queued{},
	}
}

// Register makes p the live session for its user. The greeting lines and
// the messages queued while the user was away are written to p before any
// other sender can reach it. A user can hold one session. It returns the
// number of queued messages flushed.
//
// The hub lock is released before any I/O; p's own lock is taken first, so
// live deliveries wait behind the flush instead of overtaking it.
func (h *Hub) Register(p *Peer, greeting ...string) (int, error) {
	h.mu.Lock()
	if _, ok := h.online[p.name]; ok {
		h.mu.Unlock()
		return 0, common.ErrAlreadyOnline
	}

	queued := h.offline[p.name]
	delete(h.offline, p.name)
	h.online[p.name] = p
	if _, ok := h.unread[p.name]; !ok {
		h.unread[p.name] = map[string][]string{}
	}
	p.mu.Lock()
	h.mu.Unlock()
	defer p.mu.Unlock()

	for _, g := range greeting {
		if err := p.sendLocked(g); err != nil {
			h.abortRegister(p, queued)
			return 0, err
		}
	}
	for i, q := range queued {
		if err := p.sendLocked(q.Frame()); err != nil {
			h.abortRegister(p, queued[i:])
			return 0, err
		}
	}
	return len(queued), nil
}

// abortRegister undoes a failed Register: p goes offline again and the
// unsent part of its queue is put back ahead of anything queued meanwhile.
// Called with p.mu held.
func (h *Hub) abortRegister(p *Peer, unsent []Queued) {
	p.closed = true

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.online[p.name]; ok && cur == p {
		delete(h.online, p.name)
	}
	if len(unsent) > 0 {
		h.offline[p.name] = append(slices.Clone(unsent), h.offline[p.name]...)
	}
}

// Unregister removes p if it is still the registered session for its user.
func (h *Hub) Unregister(p *Peer) {
	p.Close()
	h.evict(p)
}

// evict drops p from the online table unless a newer session replaced it.
func (h *Hub) evict(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.online[p.name]; ok && cur == p {
		delete(h.online, p.name)
	}
}

func (h *Hub) IsOnline(user string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.online[user]
	return ok
}

// Online returns the names of all connected users.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.online))
	for name := range h.online {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (h *Hub) peer(user string) *Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[user]
}

// Notify sends a server message to user if connected. It reports whether the
// write succeeded; nothing is queued.
func (h *Hub) Notify(user, msg string) bool {
	p := h.peer(user)
	if p == nil {
		return false
	}
	if err := p.Send(msg); err != nil {
		h.evict(p)
		return false
	}
	return true
}

// Deliver sends message from sender to recipient, or queues it when the
// recipient is offline or the write fails. It reports live delivery.
func (h *Hub) Deliver(sender, recipient, message string) bool {
	if p := h.peer(recipient); p != nil {
		if err := p.Send(DeliveryFrame(sender, message)); err == nil {
			return true
		}
		h.evict(p)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline[recipient] = append(h.offline[recipient], Queued{Sender: sender, Message: message})
	return false
}

// MarkUnread records message from sender as unread by recipient.
func (h *Hub) MarkUnread(recipient, sender, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.unread[recipient]
	if !ok {
		m = map[string][]string{}
		h.unread[recipient] = m
	}
	m[sender] = append(m[sender], message)
}

// ClearUnread drops recipient's unread messages from sender.
func (h *Hub) ClearUnread(recipient, sender string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.unread[recipient]; ok {
		delete(m, sender)
	}
}

// HasUnread reports whether recipient has unread messages from sender.
func (h *Hub) HasUnread(recipient, sender string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.unread[recipient][sender]) > 0
}

// QueuedFor returns how many messages are waiting for user.
func (h *Hub) QueuedFor(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.offline[user])
}
