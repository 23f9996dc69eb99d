package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/casafind/casafind-chat-api/api"
	"github.com/casafind/casafind-chat-api/chat"
	"github.com/casafind/casafind-chat-api/config"
	"github.com/casafind/casafind-chat-api/models"
)

// Chat exported for testing purposes
type Chat struct {
	Service   *chat.Service
	Hub       *chat.Hub
	JWTSecret string
}

type sendMessageRequest struct {
	Text         string `json:"text"`
	TargetUserID string `json:"targetUserId"`
}

// SendMessageHandler stores a new support chat message and pushes it to live sessions
func (c Chat) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.IdentityFromRequest(r)
	if !ok {
		config.ErrorStatus("failed to resolve caller identity", http.StatusUnauthorized, w, errors.New("no identity on request"))
		return
	}

	var body sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := c.Service.SendMessage(ctx, caller.ID, caller.Role, body.TargetUserID, body.Text)
	if err != nil {
		chatErrorStatus(w, err)
		return
	}

	b, err := json.Marshal(msg)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ThreadsHandler returns the admin inbox, one thread per user, newest first
func (c Chat) ThreadsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.IdentityFromRequest(r)
	if !ok {
		config.ErrorStatus("failed to resolve caller identity", http.StatusUnauthorized, w, errors.New("no identity on request"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	threads, err := c.Service.Threads(ctx, caller.Role)
	if err != nil {
		chatErrorStatus(w, err)
		return
	}

	if len(threads) == 0 {
		threads = []models.Thread{}
	}
	b, err := json.Marshal(threads)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ConversationHandler returns the message history between the support admin and one user
func (c Chat) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.IdentityFromRequest(r)
	if !ok {
		config.ErrorStatus("failed to resolve caller identity", http.StatusUnauthorized, w, errors.New("no identity on request"))
		return
	}

	userID := r.URL.Query().Get("userId")
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msgs, err := c.Service.Conversation(ctx, caller.ID, caller.Role, userID, limit)
	if err != nil {
		chatErrorStatus(w, err)
		return
	}

	b, err := json.Marshal(msgs)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// WSTicketHandler mints a short-lived ticket for the chat websocket handshake
func (c Chat) WSTicketHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.IdentityFromRequest(r)
	if !ok {
		config.ErrorStatus("failed to resolve caller identity", http.StatusUnauthorized, w, errors.New("no identity on request"))
		return
	}

	ticket, err := api.NewWSTicket(c.JWTSecret, caller.ID, caller.Role)
	if err != nil {
		config.ErrorStatus("failed to mint websocket ticket", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]string{"ticket": ticket})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// chatErrorStatus maps the chat service error taxonomy onto HTTP statuses
func chatErrorStatus(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyText):
		config.ErrorStatus("message text is required", http.StatusBadRequest, w, err)
	case errors.Is(err, chat.ErrTextTooLong):
		config.ErrorStatus("message text is too long", http.StatusBadRequest, w, err)
	case errors.Is(err, chat.ErrMissingTarget):
		config.ErrorStatus("target user is required", http.StatusBadRequest, w, err)
	case errors.Is(err, chat.ErrUnauthorized):
		config.ErrorStatus("caller is not allowed", http.StatusForbidden, w, err)
	case errors.Is(err, chat.ErrAdminNotConfigured):
		config.ErrorStatus("support admin is not configured", http.StatusInternalServerError, w, err)
	default:
		config.ErrorStatus("chat operation failed", http.StatusInternalServerError, w, err)
	}
}
