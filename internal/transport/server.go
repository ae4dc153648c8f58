// Package transport serves the chat pipeline over WebSocket connections.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Veraticus/the-spice-must-talk/internal/auth"
	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// ChatService is the part of chat.Service the transport uses.
type ChatService interface {
	HandleQuery(ctx context.Context, identity model.Identity, text string, opts ...chat.QueryOption) (*chat.Reply, error)
	Connect(ctx context.Context, identity model.Identity)
	Disconnect(identity model.Identity)
	GetHistory(identity model.Identity) []model.Turn
	ClearHistory(ctx context.Context, identity model.Identity)
	Suggestions(identity model.Identity) []string
}

// TokenResolver maps a bearer token to an identity.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (model.Identity, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts browser origins. Empty allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				s.allowedOrigins[o] = true
			}
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithTLS serves HTTPS and wss:// with the given config.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = cfg
	}
}

// Server upgrades HTTP requests to chat connections.
type Server struct {
	chat           ChatService
	tokens         TokenResolver
	logger         *slog.Logger
	tlsConfig      *tls.Config
	allowedOrigins map[string]bool
	now            func() time.Time
	upgrader       websocket.Upgrader
	writeTimeout   time.Duration
}

// NewServer creates a server. A nil tokens resolver treats every caller as a guest.
func NewServer(svc ChatService, tokens TokenResolver, opts ...Option) *Server {
	s := &Server{
		chat:           svc,
		tokens:         tokens,
		logger:         slog.Default(),
		allowedOrigins: make(map[string]bool),
		now:            time.Now,
		writeTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.allowedOrigins[origin]
}

// Handler returns the HTTP routes: /ws for chat and /health for probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		TLSConfig:         s.tlsConfig,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chat server listening", "addr", addr, "tls", s.tlsConfig != nil)
		if s.tlsConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// tokenFrom reads a bearer token from the query string or the Authorization header.
func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func (s *Server) resolve(ctx context.Context, token string) (model.Identity, error) {
	if s.tokens == nil {
		return auth.NewGuest(), nil
	}
	return s.tokens.Resolve(ctx, token)
}

// ServeHTTP handles one chat connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	identity, err := s.resolve(ctx, tokenFrom(r))
	if err != nil {
		s.logger.Info("token rejected, continuing as guest", "error", err)
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &conn{
		server:   s,
		ws:       ws,
		id:       uuid.NewString(),
		identity: identity,
	}
	defer c.close()

	s.chat.Connect(ctx, identity)
	s.logger.Info("client connected",
		"connection", c.id,
		"identity", identity.ID,
		"authenticated", !identity.IsGuest())

	if err := c.send(EventConnected, Connected{
		ConnectionID:    c.id,
		IsAuthenticated: !identity.IsGuest(),
		Username:        identity.Username,
		Timestamp:       s.now(),
	}); err != nil {
		return
	}

	c.readLoop(ctx)
}

// conn is one client session. Writes are serialized; queries run off the read loop.
type conn struct {
	server   *Server
	ws       *websocket.Conn
	id       string
	identity model.Identity
	inflight sync.WaitGroup
	writeMu  sync.Mutex
	idMu     sync.RWMutex
}

func (c *conn) current() model.Identity {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.identity
}

func (c *conn) send(event string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.writeTimeout))
	if err := c.ws.WriteJSON(Outgoing{Type: event, Data: data}); err != nil {
		c.server.logger.Debug("failed to write event", "connection", c.id, "event", event, "error", err)
		return err
	}
	return nil
}

func (c *conn) sendError(code, message string) {
	_ = c.send(EventError, ErrorPayload{Code: code, Message: message})
}

func (c *conn) close() {
	c.inflight.Wait()
	c.server.chat.Disconnect(c.current())
	_ = c.ws.Close()
	c.server.logger.Info("client disconnected", "connection", c.id)
}

func (c *conn) readLoop(ctx context.Context) {
	defer c.inflight.Wait()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket closed unexpectedly", "connection", c.id, "error", err)
			}
			return
		}

		var in Incoming
		if err := json.Unmarshal(raw, &in); err != nil {
			c.sendError(CodeBadRequest, "Invalid message format")
			continue
		}
		c.dispatch(ctx, in)
	}
}

func (c *conn) dispatch(ctx context.Context, in Incoming) {
	s := c.server

	switch in.Type {
	case EventSendMessage:
		var msg SendMessage
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &msg); err != nil {
				c.sendError(CodeBadRequest, "Invalid message format")
				return
			}
		}
		if strings.TrimSpace(msg.Message) == "" {
			c.sendError(CodeInvalidMessage, "Empty message")
			return
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			c.answer(ctx, msg)
		}()

	case EventClearChat:
		s.chat.ClearHistory(ctx, c.current())
		_ = c.send(EventChatCleared, Cleared{Timestamp: s.now()})

	case EventGetHistory:
		_ = c.send(EventHistory, historyPayload(s.chat.GetHistory(c.current())))

	case EventGetSuggestions:
		_ = c.send(EventSuggestions, Suggestions{Suggestions: s.chat.Suggestions(c.current())})

	case EventAuthenticate:
		c.authenticate(ctx, in.Data)

	default:
		c.sendError(CodeUnknownEvent, fmt.Sprintf("Unknown event %q", in.Type))
	}
}

func (c *conn) answer(ctx context.Context, msg SendMessage) {
	s := c.server
	identity := c.current()

	_ = c.send(EventBotTyping, Typing{IsTyping: true})

	var opts []chat.QueryOption
	if msg.Provider != "" {
		opts = append(opts, chat.WithProvider(msg.Provider))
	}
	reply, err := s.chat.HandleQuery(ctx, identity, msg.Message, opts...)

	_ = c.send(EventBotTyping, Typing{IsTyping: false})

	switch {
	case errors.Is(err, common.ErrEmptyMessage):
		c.sendError(CodeInvalidMessage, "Empty message")
		return
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Error("failed to handle message", "connection", c.id, "error", err)
			c.sendError(CodeMessageError, "Failed to process message")
		}
		return
	}

	_ = c.send(EventBotResponse, BotResponse{
		MessageID: uuid.NewString(),
		Message:   reply.Text,
		Provider:  reply.ProviderID,
		Metadata:  reply.Metadata,
		Timestamp: s.now(),
	})
}

func (c *conn) authenticate(ctx context.Context, data json.RawMessage) {
	s := c.server

	var req Authenticate
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			c.sendError(CodeBadRequest, "Invalid message format")
			return
		}
	}

	if s.tokens == nil || req.Token == "" {
		c.sendError(CodeAuthFailed, "Authentication failed")
		return
	}
	identity, err := s.tokens.Resolve(ctx, req.Token)
	if err != nil || identity.IsGuest() {
		s.logger.Info("authentication rejected", "connection", c.id, "error", err)
		c.sendError(CodeAuthFailed, "Authentication failed")
		return
	}
	if req.UserID != "" && req.UserID != identity.ID {
		c.sendError(CodeAuthFailed, "Authentication failed")
		return
	}

	c.idMu.Lock()
	previous := c.identity
	c.identity = identity
	c.idMu.Unlock()

	s.chat.Disconnect(previous)
	s.chat.Connect(ctx, identity)

	_ = c.send(EventAuthenticated, Authenticated{
		IsAuthenticated: true,
		Username:        identity.Username,
		Timestamp:       s.now(),
	})
}
