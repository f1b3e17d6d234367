package chat

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophtalk/internal/server/protocol"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
)

// The workflows below run in the background and report back to the
// requesting user through the hub, so a reconnect in the meantime still
// receives the result.

func (ss *session) summarize(ctx context.Context, c protocol.Summarize) {
	deps := ss.srv.deps
	recent := deps.Ledger.Recent(ss.user, c.Friend, ss.srv.opts.AssistHistory)
	if len(recent) == 0 {
		ss.send(protocol.NothingToSummarize(c.Friend))
		return
	}

	user, log := ss.user, ss.logger
	ss.srv.background(func() {
		text, err := deps.Assist.Summarize(ctx, webhook.ConversationRequest{
			Sender:         user,
			Recipient:      c.Friend,
			RecentMessages: recent,
		})
		if err != nil {
			log.Warn(ctx, "summarize failed", "friend", c.Friend, "error", err)
			deps.Hub.Notify(user, protocol.SummaryError(err))
			return
		}
		deps.Hub.Notify(user, protocol.Summary(c.Friend, text))
	})
}

func (ss *session) helper(ctx context.Context, c protocol.Helper) {
	deps := ss.srv.deps
	if !deps.Friends.AreFriends(ss.user, c.Friend) {
		ss.send(protocol.NotFriend(c.Friend))
		return
	}

	req := webhook.HelperRequest{
		Requester:      ss.user,
		TargetFriend:   c.Friend,
		Prompt:         c.Prompt,
		RecentMessages: deps.Ledger.Recent(ss.user, c.Friend, ss.srv.opts.AssistHistory),
	}
	ss.send(protocol.HelperProcessing)

	user, log := ss.user, ss.logger
	ss.srv.background(func() {
		text, err := deps.Assist.Helper(ctx, req)
		if err != nil {
			log.Warn(ctx, "helper failed", "friend", c.Friend, "error", err)
			deps.Hub.Notify(user, protocol.HelperError(err))
			return
		}
		deps.Hub.Notify(user, protocol.HelperResult(c.Friend, c.Prompt, text))
	})
}

func (ss *session) playbook(ctx context.Context, c protocol.Playbook) {
	deps := ss.srv.deps
	recent := deps.Ledger.Recent(ss.user, c.Friend, ss.srv.opts.AssistHistory)
	if len(recent) == 0 {
		ss.send(protocol.NothingForPlaybook(c.Friend))
		return
	}

	user, log := ss.user, ss.logger
	ss.srv.background(func() {
		code, err := deps.Assist.Playbook(ctx, webhook.ConversationRequest{
			Sender:         user,
			Recipient:      c.Friend,
			RecentMessages: recent,
		})
		switch {
		case err != nil:
			log.Warn(ctx, "playbook failed", "friend", c.Friend, "error", err)
			deps.Hub.Notify(user, protocol.PlaybookError(err))
		case code == http.StatusOK:
			deps.Hub.Notify(user, protocol.PlaybookOK)
		default:
			deps.Hub.Notify(user, protocol.PlaybookStatus(code))
		}
	})
}

func (ss *session) fileMania(ctx context.Context, c protocol.FileMania) {
	deps := ss.srv.deps
	req := webhook.FileManiaRequest{
		Sender:  ss.user,
		Action:  c.Action,
		FileURL: ss.srv.tunnelURL(c.FileURL),
	}
	ss.logger.Info(ctx, "filemania requested", "action", c.Action)

	user, log := ss.user, ss.logger
	ss.srv.background(func() {
		text, err := deps.Assist.FileMania(ctx, req)
		if err != nil {
			log.Warn(ctx, "filemania failed", "action", c.Action, "error", err)
			deps.Hub.Notify(user, protocol.FileManiaError(c.Action, err))
			return
		}
		deps.Hub.Notify(user, protocol.FileManiaResult(text))
	})
}

// tunnelURL rewrites a file URL on the public file service base to the
// tunnel base so the external workflow can fetch it.
func (s *Server) tunnelURL(u string) string {
	from := strings.TrimRight(s.opts.PublicFileURL, "/")
	to := strings.TrimRight(s.opts.TunnelBaseURL, "/")
	if from == "" || to == "" || !strings.HasPrefix(u, from) {
		return u
	}
	return to + strings.TrimPrefix(u, from)
}
