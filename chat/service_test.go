package chat_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/casafind/casafind-chat-api/chat"
	"github.com/casafind/casafind-chat-api/models"
)

const adminID = "admin-1"

// fakeStore is an in-memory Store with the same ordering semantics as the
// mongo-backed one.
type fakeStore struct {
	mu        sync.Mutex
	seq       int64
	msgs      []models.ChatMessage
	appendErr error
}

func (f *fakeStore) Append(ctx context.Context, senderID, recipientID, text string) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.seq++
	msg := models.ChatMessage{
		ID:          primitive.NewObjectID(),
		Seq:         f.seq,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now().UTC()),
	}
	f.msgs = append(f.msgs, msg)
	return &msg, nil
}

func (f *fakeStore) Conversation(ctx context.Context, participantA, participantB string, limit int64) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ChatMessage{}
	for _, m := range f.msgs {
		if (m.SenderID == participantA && m.RecipientID == participantB) ||
			(m.SenderID == participantB && m.RecipientID == participantA) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Seq < out[j].Seq
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (f *fakeStore) Replay(ctx context.Context, fn func(models.ChatMessage) error) error {
	f.mu.Lock()
	msgs := make([]models.ChatMessage, len(f.msgs))
	copy(msgs, f.msgs)
	f.mu.Unlock()
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	for _, m := range msgs {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

type fakeAdminDirectory struct {
	id  string
	err error
}

func (f fakeAdminDirectory) FindAdmin(ctx context.Context) (string, error) {
	return f.id, f.err
}

func newTestService(store chat.Store) *chat.Service {
	return chat.NewService(store, chat.NewThreadIndex(), chat.NewHub(), fakeAdminDirectory{id: adminID})
}

func TestServiceSendMessageRejectsEmptyText(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.SendMessage(context.Background(), "u1", models.RoleUser, "", "   \n\t ")
	assert.ErrorIs(t, err, chat.ErrEmptyText)
	assert.Empty(t, store.msgs)
}

func TestServiceSendMessageRejectsOversizedText(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.SendMessage(context.Background(), "u1", models.RoleUser, "", strings.Repeat("x", 5001))
	assert.ErrorIs(t, err, chat.ErrTextTooLong)

	// exactly at the bound is fine
	_, err = svc.SendMessage(context.Background(), "u1", models.RoleUser, "", strings.Repeat("x", 5000))
	assert.NoError(t, err)
}

func TestServiceSendMessageRequiresAdminAccount(t *testing.T) {
	store := &fakeStore{}
	svc := chat.NewService(store, chat.NewThreadIndex(), chat.NewHub(), fakeAdminDirectory{})

	_, err := svc.SendMessage(context.Background(), "u1", models.RoleUser, "", "hello")
	assert.ErrorIs(t, err, chat.ErrAdminNotConfigured)
	assert.Empty(t, store.msgs)
}

func TestServiceSendMessageAdminRequiresTarget(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SendMessage(context.Background(), adminID, models.RoleAdmin, "", "hello")
	assert.ErrorIs(t, err, chat.ErrMissingTarget)
}

func TestServiceSendMessageRoutesUserToAdmin(t *testing.T) {
	svc := newTestService(&fakeStore{})

	// a supplied target must be ignored for non-admin senders
	msg, err := svc.SendMessage(context.Background(), "u1", models.RoleUser, "u2", "hello")
	assert.NoError(t, err)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, adminID, msg.RecipientID)
}

func TestServiceSendMessageAdminReachesTarget(t *testing.T) {
	svc := newTestService(&fakeStore{})

	msg, err := svc.SendMessage(context.Background(), adminID, models.RoleAdmin, "u1", "hello")
	assert.NoError(t, err)
	assert.Equal(t, adminID, msg.SenderID)
	assert.Equal(t, "u1", msg.RecipientID)
}

func TestServiceSendMessageStorageFailure(t *testing.T) {
	store := &fakeStore{appendErr: chat.ErrStorageUnavailable}
	svc := newTestService(store)

	_, err := svc.SendMessage(context.Background(), "u1", models.RoleUser, "", "hello")
	assert.ErrorIs(t, err, chat.ErrStorageUnavailable)

	// nothing was persisted, so nothing may surface in the inbox
	store.appendErr = nil
	threads, err := svc.Threads(context.Background(), models.RoleAdmin)
	assert.NoError(t, err)
	assert.Empty(t, threads)
}

func TestServiceThreadsRequiresAdminRole(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Threads(context.Background(), models.RoleUser)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestServiceConversationAdminRequiresTarget(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Conversation(context.Background(), adminID, models.RoleAdmin, "", 0)
	assert.ErrorIs(t, err, chat.ErrMissingTarget)
}

func TestServiceSupportScenario(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	svc := newTestService(store)

	first, err := svc.SendMessage(ctx, "u1", models.RoleUser, "", "Need a quote")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)

	second, err := svc.SendMessage(ctx, adminID, models.RoleAdmin, "u1", "Sure, details?")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)

	third, err := svc.SendMessage(ctx, "u2", models.RoleUser, "", "Hello")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), third.Seq)

	threads, err := svc.Threads(ctx, models.RoleAdmin)
	assert.NoError(t, err)
	if assert.Len(t, threads, 2) {
		assert.Equal(t, "u2", threads[0].Participant)
		assert.Equal(t, "Hello", threads[0].LastText)
		assert.Equal(t, "u1", threads[1].Participant)
		assert.Equal(t, "Sure, details?", threads[1].LastText)
	}

	// u1 reads their own conversation; u2's message must not leak into it
	msgs, err := svc.Conversation(ctx, "u1", models.RoleUser, "ignored", 0)
	assert.NoError(t, err)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "Need a quote", msgs[0].Text)
		assert.Equal(t, "Sure, details?", msgs[1].Text)
	}

	// admin reads the same history by naming the counterpart
	adminView, err := svc.Conversation(ctx, adminID, models.RoleAdmin, "u1", 0)
	assert.NoError(t, err)
	assert.Equal(t, msgs, adminView)
}

func TestServiceConversationOrderedAndScoped(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeStore{})

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, "u1", models.RoleUser, "", "from u1")
		assert.NoError(t, err)
		_, err = svc.SendMessage(ctx, "u2", models.RoleUser, "", "from u2")
		assert.NoError(t, err)
	}

	msgs, err := svc.Conversation(ctx, adminID, models.RoleAdmin, "u1", 0)
	assert.NoError(t, err)
	assert.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, "u1", m.SenderID)
		if i > 0 {
			prev, cur := msgs[i-1], m
			less := prev.CreatedAt < cur.CreatedAt ||
				(prev.CreatedAt == cur.CreatedAt && prev.Seq < cur.Seq)
			assert.True(t, less, "messages must ascend by (createdAt, seq)")
		}
	}
}

func TestServiceSequenceMonotonicUnderConcurrentSends(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeStore{})

	const senders = 50
	seqs := make(chan int64, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := svc.SendMessage(ctx, "u1", models.RoleUser, "", "racing")
			assert.NoError(t, err)
			seqs <- msg.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	var max int64
	for s := range seqs {
		assert.False(t, seen[s], "sequence numbers must be unique")
		seen[s] = true
		if s > max {
			max = s
		}
	}
	assert.Len(t, seen, senders)
	assert.Equal(t, int64(senders), max)
}

func TestServiceRebuildIndexMatchesIncremental(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.SendMessage(ctx, "u1", models.RoleUser, "", "one")
	assert.NoError(t, err)
	_, err = svc.SendMessage(ctx, adminID, models.RoleAdmin, "u1", "two")
	assert.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u2", models.RoleUser, "", "three")
	assert.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u3", models.RoleUser, "", "four")
	assert.NoError(t, err)

	incremental, err := svc.Threads(ctx, models.RoleAdmin)
	assert.NoError(t, err)

	// a cold process over the same log must derive the identical inbox
	restarted := newTestService(store)
	assert.NoError(t, restarted.RebuildIndex(ctx))
	rebuilt, err := restarted.Threads(ctx, models.RoleAdmin)
	assert.NoError(t, err)

	assert.Equal(t, incremental, rebuilt)
}
