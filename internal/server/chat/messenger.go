package chat

import (
	"context"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/autoai"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/presence"
)

// Messenger is the single path private messages take: ledger first, then
// unread tracking and delivery, then the AutoAI check.
type Messenger struct {
	ledger *ledger.Ledger
	hub    *presence.Hub
	relay  *autoai.Relay
	logger logging.Logger
}

func NewMessenger(l *ledger.Ledger, h *presence.Hub, r *autoai.Relay, logger logging.Logger) *Messenger {
	return &Messenger{ledger: l, hub: h, relay: r, logger: logger}
}

// SendHuman delivers a message typed by a user. An exact repeat of the last
// message in the conversation is dropped.
func (m *Messenger) SendHuman(ctx context.Context, from, to, text string) {
	if !m.store(ctx, from, to, text, false) {
		return
	}

	m.hub.MarkUnread(to, from, text)
	m.deliver(ctx, from, to, text)

	if m.relay != nil {
		m.relay.Handle(ctx, from, to, text, m)
	}
}

// SendAI delivers an AI-generated message. It is stored with the AI flag,
// never marked unread and never re-examined for AutoAI.
func (m *Messenger) SendAI(ctx context.Context, from, to, text string) {
	if !m.store(ctx, from, to, text, true) {
		return
	}
	m.deliver(ctx, from, to, text)
}

func (m *Messenger) deliver(ctx context.Context, from, to, text string) {
	if !m.hub.Deliver(from, to, text) {
		m.logger.Debug(ctx, "recipient offline, message queued", "from", from, "to", to, "queued", m.hub.QueuedFor(to))
	}
}

// Notice sends an AutoAI notice to user, queueing it if they are offline.
func (m *Messenger) Notice(user, text string) {
	m.hub.Deliver(common.AutoAISender, user, text)
}

func (m *Messenger) store(ctx context.Context, from, to, text string, ai bool) bool {
	appended, err := m.ledger.Append(ctx, from, to, text, ai)
	if err != nil {
		// memory still has the entry; the next append rewrites the file
		m.logger.Error(ctx, "failed to persist chat history", "from", from, "to", to, "error", err)
	}
	if !appended {
		m.logger.Debug(ctx, "duplicate message dropped", "from", from, "to", to)
		return false
	}
	return true
}
