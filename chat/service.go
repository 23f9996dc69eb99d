package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/casafind/casafind-chat-api/models"
)

// maxTextRunes bounds the message body, counted in code points.
const maxTextRunes = 5000

// AdminDirectory looks up the single configured support admin identity.
// An empty identity with a nil error means no admin is configured.
type AdminDirectory interface {
	FindAdmin(ctx context.Context) (string, error)
}

// Service orchestrates validation, persistence, thread index maintenance and
// live push. It is the only entry point the transport layer calls.
type Service struct {
	store  Store
	index  *ThreadIndex
	hub    *Hub
	admins AdminDirectory
}

// NewService wires the chat service together.
func NewService(store Store, index *ThreadIndex, hub *Hub, admins AdminDirectory) *Service {
	return &Service{store: store, index: index, hub: hub, admins: admins}
}

// SendMessage validates and stores one message, then updates the thread
// index and pushes to live sessions. Non-admin senders are always routed to
// the support admin; any target they supply is ignored. Admin senders must
// name a target user.
//
// Once the append succeeds the message is durable and is returned as
// success; the index and the push are best-effort from that point and are
// reconciled by the scheduled rebuild.
func (s *Service) SendMessage(ctx context.Context, actorID, actorRole, targetUserID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return nil, ErrTextTooLong
	}

	adminID, err := s.adminID(ctx)
	if err != nil {
		return nil, err
	}

	senderID, recipientID := actorID, adminID
	if actorRole == models.RoleAdmin {
		if targetUserID == "" {
			return nil, ErrMissingTarget
		}
		senderID, recipientID = adminID, targetUserID
	}

	msg, err := s.store.Append(ctx, senderID, recipientID, text)
	if err != nil {
		return nil, err
	}

	s.index.Apply(*msg, adminID)
	s.hub.Publish(*msg, adminID)
	return msg, nil
}

// Threads returns the admin inbox: one summary per user that has ever
// exchanged a message with support, newest activity first.
func (s *Service) Threads(ctx context.Context, callerRole string) ([]models.Thread, error) {
	if callerRole != models.RoleAdmin {
		return nil, ErrUnauthorized
	}
	if _, err := s.adminID(ctx); err != nil {
		return nil, err
	}
	return s.index.Threads(), nil
}

// Conversation returns the message history between the support admin and
// one user, ascending. Non-admin callers always read their own conversation;
// admin callers must name the counterpart user.
func (s *Service) Conversation(ctx context.Context, callerID, callerRole, counterpartUserID string, limit int64) ([]models.ChatMessage, error) {
	adminID, err := s.adminID(ctx)
	if err != nil {
		return nil, err
	}

	counterpart := callerID
	if callerRole == models.RoleAdmin {
		if counterpartUserID == "" {
			return nil, ErrMissingTarget
		}
		counterpart = counterpartUserID
	}

	return s.store.Conversation(ctx, adminID, counterpart, limit)
}

// RebuildIndex recomputes the thread index from the full message log. Used
// at startup and by the reconciliation job.
func (s *Service) RebuildIndex(ctx context.Context) error {
	adminID, err := s.adminID(ctx)
	if err != nil {
		return err
	}
	return s.index.Rebuild(ctx, s.store, adminID)
}

func (s *Service) adminID(ctx context.Context) (string, error) {
	id, err := s.admins.FindAdmin(ctx)
	if err != nil {
		return "", fmt.Errorf("admin lookup: %w", err)
	}
	if id == "" {
		return "", ErrAdminNotConfigured
	}
	return id, nil
}
