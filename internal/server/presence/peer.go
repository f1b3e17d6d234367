// Package presence tracks who is online, writes to their connections and
// keeps the unread and offline queues for everybody else.
package presence

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
)

// writeTimeout bounds every write to a connection that supports deadlines.
// A client that stops reading loses its own connection and nothing else.
var writeTimeout = 10 * time.Second

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// Peer is the writable side of one authenticated connection. Writes are
// serialised so frames from concurrent senders never interleave.
type Peer struct {
	name   string
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func NewPeer(name string, w io.Writer) *Peer {
	return &Peer{name: name, w: w}
}

func (p *Peer) Name() string { return p.name }

// Send writes msg followed by a newline. A failed write closes the peer and
// its underlying connection.
func (p *Peer) Send(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendLocked(msg)
}

func (p *Peer) sendLocked(msg string) error {
	if p.closed {
		return common.ErrPeerClosed
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	dw, hasDeadline := p.w.(deadlineWriter)
	if hasDeadline {
		_ = dw.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	_, err := io.WriteString(p.w, msg)
	if err != nil {
		p.closed = true
		if c, ok := p.w.(io.Closer); ok {
			_ = c.Close()
		}
		return err
	}
	if hasDeadline {
		_ = dw.SetWriteDeadline(time.Time{})
	}
	return nil
}

// Close marks the peer as gone; later sends fail with common.ErrPeerClosed.
func (p *Peer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
