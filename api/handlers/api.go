package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/casafind/casafind-chat-api/api"
	"github.com/casafind/casafind-chat-api/api/scheduler"
	"github.com/casafind/casafind-chat-api/chat"
	"github.com/casafind/casafind-chat-api/config"
	"github.com/casafind/casafind-chat-api/databases"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Chat      *chat.Service
	Hub       *chat.Hub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// Initialize connects to the database, wires the chat service and builds the router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("casafind-chat-api has connected to the database")

	if err := databases.EnsureAdmin(a.dbHelper); err != nil {
		zap.S().With(err).Error("failed to bootstrap the support admin")
		return err
	}

	userDB := databases.NewUserDatabase(a.dbHelper)
	chatDB := databases.NewChatDatabase(a.dbHelper)

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	store, err := chat.NewStore(ctx, chatDB)
	if err != nil {
		zap.S().With(err).Error("failed to open the chat message store")
		return err
	}

	a.Hub = chat.NewHub()
	a.Chat = chat.NewService(store, chat.NewThreadIndex(), a.Hub, userDB)

	// warm the admin inbox from the durable log; a deployment without a
	// support admin simply has no threads yet
	if err := a.Chat.RebuildIndex(ctx); err != nil && !errors.Is(err, chat.ErrAdminNotConfigured) {
		zap.S().Warnw("initial thread index rebuild failed", "error", err)
	}

	a.Scheduler = scheduler.New(a.Chat)
	a.Scheduler.Start()

	a.Router = a.New()
	return nil

}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	ch := Chat{Service: a.Chat, Hub: a.Hub, JWTSecret: a.Config.JWTSecret}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// websocket handshake carries a ticket instead of the bearer header
	r.HandleFunc("/ws/chat", ch.ChatSocketHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(15 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/chat/message", api.Middleware(http.HandlerFunc(ch.SendMessageHandler))).Methods("POST")
	apiCreate.Handle("/chat/threads", api.Middleware(http.HandlerFunc(ch.ThreadsHandler))).Methods("GET")
	apiCreate.Handle("/chat/messages", api.Middleware(http.HandlerFunc(ch.ConversationHandler))).Methods("GET")
	apiCreate.Handle("/chat/ws-ticket", api.Middleware(http.HandlerFunc(ch.WSTicketHandler))).Methods("POST")

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, `{"alive": true}`)
}
