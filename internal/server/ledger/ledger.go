// Package ledger is the durable per-pair chat history. Every conversation is
// stored twice, once under each participant, and both copies are kept equal.
//
// Each append re-reads the file, repairs it from memory when the file lost
// entries, drops an exact repeat of the last message and rewrites the file
// atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/filex"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
)

// Entry is a single stored message.
type Entry struct {
	Sender      string `json:"sender"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	AIGenerated bool   `json:"ai_generated"`
}

// History maps owner -> peer -> ordered entries.
type History map[string]map[string][]Entry

func (h History) get(owner, peer string) []Entry {
	return h[owner][peer]
}

func (h History) set(owner, peer string, entries []Entry) {
	m, ok := h[owner]
	if !ok {
		m = map[string][]Entry{}
		h[owner] = m
	}
	m[peer] = entries
}

func (h History) clone() History {
	out := make(History, len(h))
	for owner, peers := range h {
		m := make(map[string][]Entry, len(peers))
		for peer, entries := range peers {
			m[peer] = slices.Clone(entries)
		}
		out[owner] = m
	}
	return out
}

// Ledger is safe for concurrent use; all read-modify-write cycles are
// serialised by a single mutex.
type Ledger struct {
	mu     sync.Mutex
	path   string
	mem    History
	logger logging.Logger
	now    func() time.Time
}

// Open loads the history at path. A file that exists but cannot be decoded
// is moved aside to a ".corrupt-<timestamp>" sibling so it is never
// overwritten, and the ledger starts empty.
func Open(ctx context.Context, path string, logger logging.Logger) (*Ledger, error) {
	l := &Ledger{path: path, mem: History{}, logger: logger, now: time.Now}

	h, err := l.read()
	switch {
	case err == nil:
		l.mem = h
	case errors.Is(err, errCorrupt):
		backup, rerr := filex.MoveAside(path, l.now())
		if rerr != nil {
			return nil, fmt.Errorf("open ledger: %w (%v)", err, rerr)
		}
		logger.Warn(ctx, "chat history was unreadable and has been moved aside", "path", path, "backup", backup, "error", err)
	default:
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, nil
}

var errCorrupt = errors.New("corrupt history file")

func (l *Ledger) read() (History, error) {
	h := History{}
	found, err := filex.ReadJSON(l.path, &h)
	if err != nil {
		if found {
			return nil, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		return nil, err
	}
	if h == nil {
		h = History{}
	}
	return h, nil
}

// loadLocked returns the on-disk history, or a copy of memory when the file
// cannot be read.
func (l *Ledger) loadLocked(ctx context.Context) History {
	h, err := l.read()
	if err != nil {
		l.logger.Warn(ctx, "failed to read chat history, using in-memory copy", "path", l.path, "error", err)
		return l.mem.clone()
	}
	return h
}

// Ensure registers user in memory so later lookups find an empty map.
func (l *Ledger) Ensure(user string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.mem[user]; !ok {
		l.mem[user] = map[string][]Entry{}
	}
}

// Append records a message from sender to recipient. It returns false when
// the message repeats the last entry of the conversation and was therefore
// skipped. A non-nil error means the file could not be written; memory still
// holds the entry and the next successful append restores the file.
func (l *Ledger) Append(ctx context.Context, sender, recipient, message string, aiGenerated bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.loadLocked(ctx)
	repaired := l.repairAllLocked(ctx, data)

	conv := data.get(sender, recipient)
	if n := len(conv); n > 0 && conv[n-1].Sender == sender && conv[n-1].Message == message {
		l.mem = data
		if repaired {
			return false, l.saveLocked(data)
		}
		return false, nil
	}

	e := Entry{
		Sender:      sender,
		Message:     message,
		Timestamp:   l.now().UTC().Format(time.RFC3339Nano),
		AIGenerated: aiGenerated,
	}
	next := append(slices.Clone(conv), e)
	data.set(sender, recipient, next)
	if sender != recipient {
		data.set(recipient, sender, slices.Clone(next))
	}

	l.mem = data
	return true, l.saveLocked(data)
}

// repairAllLocked repairs every conversation known on disk or in memory,
// so a truncated file never replaces a longer in-memory history even for
// pairs the current call does not touch.
func (l *Ledger) repairAllLocked(ctx context.Context, data History) bool {
	repaired := false
	for _, p := range conversations(data, l.mem) {
		if l.repairLocked(ctx, data, p[0], p[1]) {
			repaired = true
		}
	}
	return repaired
}

// conversations lists each unordered pair present in any of hs once.
func conversations(hs ...History) [][2]string {
	seen := map[[2]string]struct{}{}
	var out [][2]string
	for _, h := range hs {
		for owner, peers := range h {
			for peer := range peers {
				key := [2]string{owner, peer}
				if peer < owner {
					key = [2]string{peer, owner}
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, key)
			}
		}
	}
	return out
}

// repairLocked makes both copies of the sender/recipient conversation in
// data equal to the longest copy known on disk or in memory.
func (l *Ledger) repairLocked(ctx context.Context, data History, a, b string) bool {
	candidates := [][]Entry{
		data.get(a, b),
		data.get(b, a),
		l.mem.get(a, b),
		l.mem.get(b, a),
	}

	longest := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(longest) {
			longest = c
		}
	}

	if len(longest) == len(candidates[0]) && len(longest) == len(candidates[1]) {
		return false
	}

	l.logger.Warn(ctx, "repairing diverged chat history",
		"a", a, "b", b,
		"disk", len(candidates[0]), "disk_mirror", len(candidates[1]),
		"memory", len(candidates[2]), "repaired", len(longest))

	data.set(a, b, slices.Clone(longest))
	if a != b {
		data.set(b, a, slices.Clone(longest))
	}
	return true
}

// Clear empties the conversation between a and b for both participants.
func (l *Ledger) Clear(ctx context.Context, a, b string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.loadLocked(ctx)
	l.repairAllLocked(ctx, data)
	data.set(a, b, []Entry{})
	data.set(b, a, []Entry{})

	l.mem = data
	return l.saveLocked(data)
}

// Recent returns up to n of the latest entries of user's conversation with
// peer, oldest first. n <= 0 returns the whole conversation.
func (l *Ledger) Recent(user, peer string, n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	conv := l.mem.get(user, peer)
	if n > 0 && len(conv) > n {
		conv = conv[len(conv)-n:]
	}
	return slices.Clone(conv)
}

func (l *Ledger) saveLocked(data History) error {
	if err := filex.WriteJSONAtomic(l.path, data); err != nil {
		return fmt.Errorf("save chat history: %w", err)
	}
	return nil
}
