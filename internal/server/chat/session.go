package chat

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/dmitrijs2005/gophtalk/internal/server/presence"
	"github.com/dmitrijs2005/gophtalk/internal/server/protocol"
	"github.com/google/uuid"
)

type state int

const (
	stateUnauthenticated state = iota
	stateAwaitingNewPassword
	stateActive
)

func (s state) String() string {
	switch s {
	case stateAwaitingNewPassword:
		return "awaiting_new_password"
	case stateActive:
		return "active"
	default:
		return "unauthenticated"
	}
}

// session is the per-connection state. It is only touched by the
// connection's own goroutine; writes go through out.
type session struct {
	srv    *Server
	conn   net.Conn
	out    *presence.Peer
	logger logging.Logger

	state        state
	user         string
	changingUser string
	pendingShown bool
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	sess := &session{
		srv:    s,
		conn:   conn,
		out:    presence.NewPeer("", conn),
		logger: s.logger.With("conn_id", uuid.NewString(), "remote", conn.RemoteAddr().String()),
	}

	defer func() {
		if r := recover(); r != nil {
			sess.logger.Error(ctx, "connection handler panic", "panic", r)
		}
		sess.close(ctx)
	}()

	if tc, ok := conn.(*tls.Conn); ok {
		hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		err := tc.HandshakeContext(hctx)
		cancel()
		if err != nil {
			sess.logger.Warn(ctx, "tls handshake failed", "error", err)
			return
		}
	}

	sess.logger.Info(ctx, "client connected")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd := protocol.Parse(line)
		if sess.state == stateActive {
			sess.dispatch(ctx, cmd)
		} else {
			sess.authenticate(ctx, cmd)
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		sess.logger.Warn(ctx, "connection read failed", "error", err)
	}
}

func (ss *session) send(msg string) {
	if err := ss.out.Send(msg); err != nil {
		ss.logger.Debug(context.Background(), "write to client failed", "error", err)
	}
}

func (ss *session) close(ctx context.Context) {
	if ss.state == stateActive {
		ss.srv.deps.Hub.Unregister(ss.out)
		ss.logger.Info(ctx, "user disconnected")
	} else {
		ss.logger.Info(ctx, "client disconnected", "state", ss.state.String())
	}
	_ = ss.conn.Close()
}

// authenticate handles lines received before the session is active.
func (ss *session) authenticate(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.Login:
		if ss.state == stateAwaitingNewPassword {
			return
		}
		ss.login(ctx, c)
	case protocol.ChangePassword:
		ss.changePassword(ctx, c)
	case protocol.Malformed:
		if c.Auth {
			ss.send(c.Reply)
		}
	}
}

func (ss *session) login(ctx context.Context, c protocol.Login) {
	deps := ss.srv.deps

	outcome, err := deps.Auth.Authenticate(ctx, c.Username, c.Password)
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		ss.logger.Info(ctx, "login rejected", "user", c.Username)
		ss.send(protocol.LoginFail(protocol.ReasonInvalidCredentials))
		return
	case err != nil:
		ss.logger.Error(ctx, "login failed", "user", c.Username, "error", err)
		ss.send(protocol.LoginFail(protocol.ReasonError))
		return
	case outcome == credentials.LoginMustChange:
		ss.state = stateAwaitingNewPassword
		ss.changingUser = c.Username
		ss.logger.Info(ctx, "password change required", "user", c.Username)
		ss.send(protocol.FirstLoginOK)
		return
	}

	peer := presence.NewPeer(c.Username, ss.conn)
	flushed, err := deps.Hub.Register(peer, protocol.LoginOK)
	if errors.Is(err, common.ErrAlreadyOnline) {
		ss.logger.Warn(ctx, "duplicate session refused", "user", c.Username)
		ss.send(protocol.LoginFail(protocol.ReasonAlreadyLoggedIn))
		return
	}
	if err != nil {
		ss.logger.Warn(ctx, "could not start session", "user", c.Username, "error", err)
		return
	}

	ss.out = peer
	ss.user = c.Username
	ss.state = stateActive
	ss.logger = ss.logger.With("user", c.Username)

	deps.Friends.Ensure(c.Username)
	deps.Ledger.Ensure(c.Username)

	ss.send(protocol.Welcome(c.Username))
	ss.logger.Info(ctx, "user logged in", "offline_delivered", flushed, "online", len(deps.Hub.Online()))
}

func (ss *session) changePassword(ctx context.Context, c protocol.ChangePassword) {
	if ss.state == stateAwaitingNewPassword && c.Username != ss.changingUser {
		ss.send(protocol.ChangeFail(protocol.ReasonIncorrectTemp))
		return
	}

	err := ss.srv.deps.Auth.ChangePassword(ctx, c.Username, c.OldPassword, c.NewPassword)
	switch {
	case err == nil:
		ss.state = stateUnauthenticated
		ss.changingUser = ""
		ss.logger.Info(ctx, "password changed", "user", c.Username)
		ss.send(protocol.ChangeOK)
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorNotFound):
		ss.send(protocol.ChangeFail(protocol.ReasonIncorrectTemp))
	default:
		ss.logger.Error(ctx, "password change failed", "user", c.Username, "error", err)
		ss.send(protocol.ChangeFail(protocol.ReasonFormat))
	}
}
