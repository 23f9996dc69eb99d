package chat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casafind/casafind-chat-api/databases"
	"github.com/casafind/casafind-chat-api/models"
)

// Store is the durable append-only log of support chat messages.
type Store interface {
	// Append assigns the sequence number and timestamp, persists the
	// message as a single document and returns the stored record.
	Append(ctx context.Context, senderID, recipientID, text string) (*models.ChatMessage, error)

	// Conversation returns the history between two participants ascending
	// by (createdAt, seq). A limit > 0 returns only the most recent
	// messages, still in ascending order.
	Conversation(ctx context.Context, participantA, participantB string, limit int64) ([]models.ChatMessage, error)

	// Replay folds fn over the entire log in sequence order.
	Replay(ctx context.Context, fn func(models.ChatMessage) error) error
}

type mongoStore struct {
	db  databases.ChatDatabase
	seq int64
}

// NewStore wraps the chat collection in a Store. The sequence counter is
// seeded from the highest persisted seq so numbering stays strictly
// increasing across restarts. Sequence numbers may have gaps when an insert
// fails; ordering is what matters, not density.
func NewStore(ctx context.Context, db databases.ChatDatabase) (Store, error) {
	s := &mongoStore{db: db}

	last, err := db.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.M{"seq": -1}))
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: seeding sequence counter: %v", ErrStorageUnavailable, err)
		}
		return s, nil
	}
	atomic.StoreInt64(&s.seq, last.Seq)
	return s, nil
}

func (s *mongoStore) Append(ctx context.Context, senderID, recipientID, text string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:          primitive.NewObjectID(),
		Seq:         atomic.AddInt64(&s.seq, 1),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now().UTC()),
	}

	if _, err := s.db.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return msg, nil
}

func (s *mongoStore) Conversation(ctx context.Context, participantA, participantB string, limit int64) ([]models.ChatMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderID": participantA, "recipientID": participantB},
		bson.M{"senderID": participantB, "recipientID": participantA},
	}}

	asc := bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}
	opts := options.Find().SetSort(asc)
	if limit > 0 {
		// fetch the tail newest-first, then restore ascending order below
		opts = options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}).
			SetLimit(limit)
	}

	msgs, err := s.db.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if limit > 0 {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

func (s *mongoStore) Replay(ctx context.Context, fn func(models.ChatMessage) error) error {
	msgs, err := s.db.Find(ctx, bson.D{}, options.Find().SetSort(bson.M{"seq": 1}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	for _, msg := range msgs {
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}
