// Package friends maintains the symmetric friendship graph and the queue of
// pending friend requests, persisted as a single JSON document.
package friends

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/filex"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
)

type document struct {
	Friends map[string][]string `json:"friends"`
	Pending map[string][]string `json:"pending"`
}

// Graph is safe for concurrent use. Every mutation is written through to
// disk; a failed write is logged and the in-memory state stays authoritative.
type Graph struct {
	mu      sync.Mutex
	path    string
	friends map[string][]string
	pending map[string][]string
	logger  logging.Logger
}

// Open loads the graph from path. A missing file yields an empty graph, and
// so does an undecodable one after it has been moved aside.
func Open(ctx context.Context, path string, logger logging.Logger) (*Graph, error) {
	doc := document{}
	found, err := filex.ReadJSON(path, &doc)
	switch {
	case err == nil:
	case found:
		backup, rerr := filex.MoveAside(path, time.Now())
		if rerr != nil {
			return nil, fmt.Errorf("open friend graph: %w (%v)", err, rerr)
		}
		logger.Warn(ctx, "friend graph was unreadable and has been moved aside", "path", path, "backup", backup, "error", err)
		doc = document{}
	default:
		return nil, fmt.Errorf("open friend graph: %w", err)
	}
	if doc.Friends == nil {
		doc.Friends = map[string][]string{}
	}
	if doc.Pending == nil {
		doc.Pending = map[string][]string{}
	}
	return &Graph{path: path, friends: doc.Friends, pending: doc.Pending, logger: logger}, nil
}

// Ensure creates empty entries for user. It does not persist.
func (g *Graph) Ensure(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.friends[user]; !ok {
		g.friends[user] = []string{}
	}
	if _, ok := g.pending[user]; !ok {
		g.pending[user] = []string{}
	}
}

// Request files a friend request from requester to target.
func (g *Graph) Request(ctx context.Context, requester, target string) error {
	if requester == target {
		return common.ErrSelfRequest
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if slices.Contains(g.friends[requester], target) {
		return common.ErrAlreadyFriends
	}
	if slices.Contains(g.pending[target], requester) {
		return common.ErrAlreadyRequested
	}

	g.pending[target] = append(g.pending[target], requester)
	g.persistLocked(ctx)
	return nil
}

// Pending returns a copy of the requests waiting on user, oldest first.
func (g *Graph) Pending(user string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.pending[user])
}

// Respond accepts or declines the request at the 1-based index of user's
// pending list and returns the requester's name.
func (g *Graph) Respond(ctx context.Context, user string, index int, accept bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	list := g.pending[user]
	if index < 1 || index > len(list) {
		return "", common.ErrIndexOutOfRange
	}

	requester := list[index-1]
	g.pending[user] = slices.Delete(slices.Clone(list), index-1, index)

	if accept {
		g.link(user, requester)
		g.link(requester, user)
		// a crossed request in the other direction is settled too
		g.pending[requester] = slices.DeleteFunc(slices.Clone(g.pending[requester]), func(s string) bool {
			return s == user
		})
	}

	g.persistLocked(ctx)
	return requester, nil
}

// Friends returns a copy of user's friend list in the order friendships formed.
func (g *Graph) Friends(user string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.friends[user])
}

// AreFriends reports whether a and b are friends.
func (g *Graph) AreFriends(a, b string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Contains(g.friends[a], b)
}

func (g *Graph) link(a, b string) {
	if !slices.Contains(g.friends[a], b) {
		g.friends[a] = append(g.friends[a], b)
	}
}

func (g *Graph) persistLocked(ctx context.Context) {
	doc := document{Friends: g.friends, Pending: g.pending}
	if err := filex.WriteJSONAtomic(g.path, doc); err != nil {
		g.logger.Error(ctx, "failed to save friend graph", "path", g.path, "error", err)
	}
}
