package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casafind/casafind-chat-api/models"
)

const (
	// sessionBuffer is how many undelivered pushes a session may hold
	// before publishes to it start hitting the publish timeout.
	sessionBuffer = 32

	// publishTimeout bounds how long one stalled session can hold up the
	// fan-out loop.
	publishTimeout = 250 * time.Millisecond
)

// Session is a single live subscription to the chat push channel. Consumers
// read from Messages until Done is closed.
type Session struct {
	ID       string
	Identity string
	Role     string

	msgs chan models.ChatMessage
	done chan struct{}
	once sync.Once
}

// Messages is the stream of pushed chat messages for this session.
func (s *Session) Messages() <-chan models.ChatMessage {
	return s.msgs
}

// Done is closed when the session has been unsubscribed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans freshly stored messages out to live sessions. It is best-effort
// by design: nothing is buffered for sessions that are not connected, and a
// reconnecting client recovers state from the durable log instead.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[*Session]struct{})}
}

// Subscribe registers a live session for the given identity and role.
func (h *Hub) Subscribe(identity, role string) *Session {
	s := &Session{
		ID:       uuid.New().String(),
		Identity: identity,
		Role:     role,
		msgs:     make(chan models.ChatMessage, sessionBuffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	return s
}

// Unsubscribe removes a session from the registry. Safe to call more than
// once; publishes racing with removal are silently dropped.
func (h *Hub) Unsubscribe(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	s.close()
}

// Publish delivers msg to every live session of its non-admin participant
// and to every connected admin console. Delivery is at-most-once: a full or
// unread session is skipped after publishTimeout rather than holding up the
// rest of the fan-out.
func (h *Hub) Publish(msg models.ChatMessage, adminID string) {
	participant := msg.RecipientID
	if msg.RecipientID == adminID {
		participant = msg.SenderID
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		if s.Role == models.RoleAdmin || s.Identity == participant {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		timer := time.NewTimer(publishTimeout)
		select {
		case s.msgs <- msg:
		case <-s.done:
		case <-timer.C:
			zap.S().Warnw("dropping chat push to stalled session",
				"session", s.ID,
				"identity", s.Identity,
			)
		}
		timer.Stop()
	}
}
