package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/casafind/casafind-chat-api/models"
)

// ThreadIndex maintains the per-user conversation summaries the admin inbox
// is built from. It is recomputed state: losing it is harmless because
// Rebuild folds the message log back into the identical thread set.
type ThreadIndex struct {
	mu      sync.Mutex
	threads map[string]models.Thread
}

// NewThreadIndex returns an empty index.
func NewThreadIndex() *ThreadIndex {
	return &ThreadIndex{threads: make(map[string]models.Thread)}
}

// Apply upserts the thread summary for the non-admin participant of a
// just-persisted message. The freshness check and the write happen under one
// lock so a late-arriving older message can never clobber a newer summary.
func (x *ThreadIndex) Apply(msg models.ChatMessage, adminID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	applyThread(x.threads, msg, adminID)
}

// Threads returns all summaries ordered by last activity, newest first.
func (x *ThreadIndex) Threads() []models.Thread {
	x.mu.Lock()
	out := make([]models.Thread, 0, len(x.threads))
	for _, t := range x.threads {
		out = append(out, t)
	}
	x.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt != out[j].LastMessageAt {
			return out[i].LastMessageAt > out[j].LastMessageAt
		}
		return out[i].LastSeq > out[j].LastSeq
	})
	return out
}

// Rebuild recomputes the full thread set from the message log and swaps it
// in. Because it reuses the exact per-message fold that Apply uses, a rebuilt
// index always matches one maintained incrementally.
func (x *ThreadIndex) Rebuild(ctx context.Context, store Store, adminID string) error {
	fresh := make(map[string]models.Thread)
	err := store.Replay(ctx, func(msg models.ChatMessage) error {
		applyThread(fresh, msg, adminID)
		return nil
	})
	if err != nil {
		return err
	}

	x.mu.Lock()
	x.threads = fresh
	x.mu.Unlock()
	return nil
}

func applyThread(threads map[string]models.Thread, msg models.ChatMessage, adminID string) {
	participant := msg.RecipientID
	if msg.RecipientID == adminID {
		participant = msg.SenderID
	}

	cur, ok := threads[participant]
	if ok {
		if msg.CreatedAt < cur.LastMessageAt {
			return
		}
		if msg.CreatedAt == cur.LastMessageAt && msg.Seq < cur.LastSeq {
			return
		}
	}

	threads[participant] = models.Thread{
		Participant:   participant,
		LastMessageAt: msg.CreatedAt,
		LastSeq:       msg.Seq,
		LastText:      msg.Text,
	}
}
