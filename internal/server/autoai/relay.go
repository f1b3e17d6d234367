package autoai

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
)

// Responder produces the AI reply for a relay request.
type Responder interface {
	Relay(ctx context.Context, req webhook.RelayRequest) (string, error)
}

// History returns recent conversation entries from user's point of view.
type History interface {
	Recent(user, peer string, n int) []ledger.Entry
}

// Outbox is how the relay talks back into the chat.
type Outbox interface {
	// SendAI stores and delivers an AI-generated message. It must not
	// trigger another relay.
	SendAI(ctx context.Context, from, to, text string)
	// Notice delivers a server notice to user without storing it.
	Notice(user, text string)
}

// Relay is safe for concurrent use.
type Relay struct {
	scheduler *Scheduler
	responder Responder
	history   History
	window    int
	logger    logging.Logger
	errorText func(error) string

	wg sync.WaitGroup
}

// NewRelay builds a relay that sends the last window entries as context.
// errorText renders failures for the delegating user.
func NewRelay(s *Scheduler, r Responder, h History, window int, errorText func(error) string, logger logging.Logger) *Relay {
	return &Relay{scheduler: s, responder: r, history: h, window: window, errorText: errorText, logger: logger}
}

// Handle checks whether the human message text from sender to recipient is
// covered by a session and, if so, asks for a reply in the background.
// The reply is sent from recipient back to sender. It reports whether a
// call was started.
func (r *Relay) Handle(ctx context.Context, sender, recipient, text string, out Outbox) bool {
	sess, ok := r.scheduler.Match(sender, recipient)
	if !ok {
		return false
	}

	req := webhook.RelayRequest{
		Sender:         sess.Activator,
		Recipient:      sess.Target,
		LatestMessage:  text,
		RecentMessages: r.history.Recent(sess.Activator, sess.Target, r.window),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// the call outlives the connection that triggered it
		callCtx := context.WithoutCancel(ctx)
		started := time.Now()

		reply, err := r.responder.Relay(callCtx, req)
		if err != nil {
			r.logger.Warn(callCtx, "autoai relay failed",
				"activator", sess.Activator, "target", sess.Target, "error", err)
			out.Notice(recipient, r.errorText(err))
			return
		}

		r.logger.Info(callCtx, "autoai reply ready",
			"from", recipient, "to", sender, "elapsed", time.Since(started))
		out.SendAI(callCtx, recipient, sender, reply)
	}()
	return true
}

// Wait blocks until in-flight relay calls have finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}
