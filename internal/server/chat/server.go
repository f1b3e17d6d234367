// Package chat is the TLS chat gateway: it accepts connections, runs the
// login state machine and dispatches session commands to the friend graph,
// the ledger, presence and the AI workflows.
package chat

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/autoai"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/dmitrijs2005/gophtalk/internal/server/friends"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/presence"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
)

const (
	maxLineBytes     = 64 * 1024
	handshakeTimeout = 10 * time.Second
)

// Authenticator verifies logins and forced password changes.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (credentials.LoginOutcome, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

// Assistant runs the on-demand AI workflows.
type Assistant interface {
	Summarize(ctx context.Context, req webhook.ConversationRequest) (string, error)
	Helper(ctx context.Context, req webhook.HelperRequest) (string, error)
	Playbook(ctx context.Context, req webhook.ConversationRequest) (int, error)
	FileMania(ctx context.Context, req webhook.FileManiaRequest) (string, error)
}

// Options configures the gateway.
type Options struct {
	// TLS wraps the listener given to Serve. Nil serves plain TCP.
	TLS *tls.Config
	// AssistHistory is how many recent entries summarize, helper and
	// playbook send along.
	AssistHistory int
	// PublicFileURL and TunnelBaseURL drive the FileMania URL rewrite.
	PublicFileURL string
	TunnelBaseURL string
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Auth      Authenticator
	Friends   *friends.Graph
	Ledger    *ledger.Ledger
	Hub       *presence.Hub
	Scheduler *autoai.Scheduler
	Relay     *autoai.Relay
	Assist    Assistant
}

type Server struct {
	opts      Options
	deps      Deps
	messenger *Messenger
	logger    logging.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(opts Options, deps Deps, logger logging.Logger) *Server {
	l := logger.With("module", "chat_server")
	return &Server{
		opts:      opts,
		deps:      deps,
		messenger: NewMessenger(deps.Ledger, deps.Hub, deps.Relay, l),
		logger:    l,
		conns:     map[net.Conn]struct{}{},
	}
}

// Serve accepts connections on ln until ctx is done, then closes every open
// connection and waits for the handlers and background tasks to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.TLS != nil {
		ln = tls.NewListener(ln, s.opts.TLS)
	}
	s.logger.Info(ctx, "Starting chat server", "address", ln.Addr().String(), "tls", s.opts.TLS != nil)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping chat server...")
		_ = ln.Close()
		s.closeAll()
	}()

	defer func() {
		s.wg.Wait()
		if s.deps.Relay != nil {
			s.deps.Relay.Wait()
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("chat accept: %w", err)
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// background runs fn off the connection goroutine and tracks it for shutdown.
func (s *Server) background(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}
