package chat

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/server/protocol"
)

// dispatch handles one command of an active session.
func (ss *session) dispatch(ctx context.Context, cmd protocol.Command) {
	deps := ss.srv.deps

	switch c := cmd.(type) {
	case protocol.Private:
		if !deps.Friends.AreFriends(ss.user, c.Recipient) {
			ss.send(protocol.NotFriend(c.Recipient))
			return
		}
		ss.srv.messenger.SendHuman(ctx, ss.user, c.Recipient, c.Text)

	case protocol.AddFriend:
		ss.addFriend(ctx, c.Target)

	case protocol.ListPending:
		pending := deps.Friends.Pending(ss.user)
		ss.send(protocol.PendingList(pending))
		if len(pending) > 0 {
			ss.pendingShown = true
		}

	case protocol.RespondPending:
		if !ss.pendingShown {
			ss.send(protocol.UnknownCommand)
			return
		}
		ss.respondPending(ctx, c)

	case protocol.ListFriends:
		names := deps.Friends.Friends(ss.user)
		rows := make([]protocol.FriendStatus, 0, len(names))
		for _, n := range names {
			rows = append(rows, protocol.FriendStatus{
				Name:      n,
				Online:    deps.Hub.IsOnline(n),
				HasUnread: deps.Hub.HasUnread(ss.user, n),
			})
		}
		ss.send(protocol.FriendList(rows))

	case protocol.Clear:
		if !deps.Friends.AreFriends(ss.user, c.Friend) {
			ss.send(protocol.NotFriend(c.Friend))
			return
		}
		if err := deps.Ledger.Clear(ctx, ss.user, c.Friend); err != nil {
			ss.logger.Error(ctx, "failed to persist cleared chat", "friend", c.Friend, "error", err)
		}
		ss.send(protocol.ChatCleared(c.Friend))

	case protocol.ClearUnread:
		deps.Hub.ClearUnread(ss.user, c.Friend)

	case protocol.EnableAuto:
		if !deps.Friends.AreFriends(ss.user, c.Friend) {
			ss.send(protocol.NotFriend(c.Friend))
			return
		}
		sess := deps.Scheduler.Enable(ss.user, c.Friend, c.Minutes)
		ss.logger.Info(ctx, "autoai enabled", "friend", c.Friend, "expires", sess.Expires)
		ss.send(protocol.AutoEnabled(c.Friend, c.Duration))

	case protocol.DisableAuto:
		if deps.Scheduler.Disable(ss.user, c.Friend) {
			ss.logger.Info(ctx, "autoai disabled", "friend", c.Friend)
			ss.send(protocol.AutoDisabled(c.Friend))
		} else {
			ss.send(protocol.NoAutoSession(c.Friend))
		}

	case protocol.Summarize:
		ss.summarize(ctx, c)
	case protocol.Helper:
		ss.helper(ctx, c)
	case protocol.Playbook:
		ss.playbook(ctx, c)
	case protocol.FileMania:
		ss.fileMania(ctx, c)

	case protocol.Help:
		ss.send(protocol.HelpText)

	case protocol.Malformed:
		if c.PendingReply && !ss.pendingShown {
			ss.send(protocol.UnknownCommand)
			return
		}
		if c.Reply != "" {
			ss.send(c.Reply)
		}

	default:
		ss.send(protocol.UnknownCommand)
	}
}

func (ss *session) addFriend(ctx context.Context, target string) {
	deps := ss.srv.deps

	if !deps.Hub.IsOnline(target) {
		ss.send(protocol.NotOnline(target))
		return
	}

	err := deps.Friends.Request(ctx, ss.user, target)
	switch {
	case err == nil:
		ss.logger.Info(ctx, "friend request sent", "target", target)
		ss.send(protocol.RequestSent(target))
		deps.Hub.Notify(target, protocol.RequestReceived(ss.user))
	case errors.Is(err, common.ErrSelfRequest):
		ss.send("You cannot add yourself as a friend.")
	default:
		// already pending or already friends: nothing to do
		ss.logger.Debug(ctx, "friend request ignored", "target", target, "reason", err)
	}
}

func (ss *session) respondPending(ctx context.Context, c protocol.RespondPending) {
	deps := ss.srv.deps

	requester, err := deps.Friends.Respond(ctx, ss.user, c.Index, c.Accept)
	if errors.Is(err, common.ErrIndexOutOfRange) {
		ss.send(protocol.IndexOutOfRange)
		return
	}
	if err != nil {
		ss.logger.Error(ctx, "friend response failed", "error", err)
		return
	}

	ss.pendingShown = false
	if c.Accept {
		ss.logger.Info(ctx, "friend request accepted", "requester", requester)
		ss.send(protocol.NowFriends(requester))
		deps.Hub.Notify(requester, protocol.RequestAccepted(ss.user))
		return
	}
	ss.logger.Info(ctx, "friend request rejected", "requester", requester)
	ss.send(protocol.RequestRejected(requester))
}
