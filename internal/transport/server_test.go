package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-spice-must-talk/internal/auth"
	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

const testSecret = "test-secret"

type fakeChat struct {
	history      map[string][]model.Turn
	connected    []string
	disconnected []string
	queries      []string
	cleared      []string
	err          error
	mu           sync.Mutex
}

func newFakeChat() *fakeChat {
	return &fakeChat{history: make(map[string][]model.Turn)}
}

func (f *fakeChat) HandleQuery(_ context.Context, identity model.Identity, text string, _ ...chat.QueryOption) (*chat.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, identity.ID+":"+text)
	if f.err != nil {
		return nil, f.err
	}
	f.history[identity.ID] = append(f.history[identity.ID],
		model.Turn{Role: model.RoleUser, Content: text},
		model.Turn{Role: model.RoleAssistant, Content: "echo: " + text},
	)
	return &chat.Reply{
		Text:       "echo: " + text,
		ProviderID: "groq",
		Metadata:   chat.Metadata{ResponseType: identity.Kind},
	}, nil
}

func (f *fakeChat) Connect(_ context.Context, identity model.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, identity.ID)
}

func (f *fakeChat) Disconnect(identity model.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, identity.ID)
}

func (f *fakeChat) GetHistory(identity model.Identity) []model.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Turn(nil), f.history[identity.ID]...)
}

func (f *fakeChat) ClearHistory(_ context.Context, identity model.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, identity.ID)
	delete(f.history, identity.ID)
}

func (f *fakeChat) Suggestions(identity model.Identity) []string {
	return chat.Suggestions(identity)
}

func (f *fakeChat) disconnectedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.disconnected...)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, svc ChatService) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	srv := NewServer(svc, verifier, WithLogger(common.DiscardLogger()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, verifier
}

func dial(t *testing.T, ts *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func sendFrame(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Incoming{Type: event, Data: raw}))
}

func TestServer_GuestConversation(t *testing.T) {
	svc := newFakeChat()
	ts, _ := newTestServer(t, svc)
	ws := dial(t, ts, "", nil)

	connected := readFrame(t, ws)
	require.Equal(t, EventConnected, connected.Type)
	hello := decode[Connected](t, connected)
	assert.False(t, hello.IsAuthenticated)
	assert.NotEmpty(t, hello.ConnectionID)

	sendFrame(t, ws, EventSendMessage, SendMessage{Message: "What is a budget?"})

	typing := readFrame(t, ws)
	require.Equal(t, EventBotTyping, typing.Type)
	assert.True(t, decode[Typing](t, typing).IsTyping)

	typing = readFrame(t, ws)
	require.Equal(t, EventBotTyping, typing.Type)
	assert.False(t, decode[Typing](t, typing).IsTyping)

	resp := readFrame(t, ws)
	require.Equal(t, EventBotResponse, resp.Type)
	body := decode[BotResponse](t, resp)
	assert.Equal(t, "echo: What is a budget?", body.Message)
	assert.Equal(t, "groq", body.Provider)
	assert.NotEmpty(t, body.MessageID)
	assert.Equal(t, model.IdentityGuest, body.Metadata.ResponseType)
}

func TestServer_TokenSources(t *testing.T) {
	svc := newFakeChat()
	ts, verifier := newTestServer(t, svc)
	token, err := verifier.Issue("u1", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		header http.Header
		name   string
		query  string
		want   bool
	}{
		{name: "query string", query: "?token=" + token, want: true},
		{name: "bearer header", header: http.Header{"Authorization": {"Bearer " + token}}, want: true},
		{name: "invalid token is a guest", query: "?token=bogus", want: false},
		{name: "no token is a guest", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := dial(t, ts, tt.query, tt.header)
			hello := decode[Connected](t, readFrame(t, ws))
			assert.Equal(t, tt.want, hello.IsAuthenticated)
			if tt.want {
				assert.Equal(t, "alice", hello.Username)
			}
		})
	}
}

func TestServer_Events(t *testing.T) {
	svc := newFakeChat()
	ts, verifier := newTestServer(t, svc)
	token, err := verifier.Issue("u1", "alice", time.Hour)
	require.NoError(t, err)

	ws := dial(t, ts, "?token="+token, nil)
	require.Equal(t, EventConnected, readFrame(t, ws).Type)

	t.Run("empty message", func(t *testing.T) {
		sendFrame(t, ws, EventSendMessage, SendMessage{Message: "   "})
		f := readFrame(t, ws)
		require.Equal(t, EventError, f.Type)
		assert.Equal(t, ErrorPayload{Code: CodeInvalidMessage, Message: "Empty message"}, decode[ErrorPayload](t, f))
	})

	t.Run("history", func(t *testing.T) {
		sendFrame(t, ws, EventSendMessage, SendMessage{Message: "Show my goals"})
		for range 3 {
			readFrame(t, ws)
		}

		sendFrame(t, ws, EventGetHistory, nil)
		f := readFrame(t, ws)
		require.Equal(t, EventHistory, f.Type)
		history := decode[History](t, f)
		require.Len(t, history.Messages, 2)
		assert.Equal(t, model.RoleUser, history.Messages[0].Role)
		assert.Equal(t, "Show my goals", history.Messages[0].Content)
	})

	t.Run("clear chat", func(t *testing.T) {
		sendFrame(t, ws, EventClearChat, nil)
		require.Equal(t, EventChatCleared, readFrame(t, ws).Type)

		sendFrame(t, ws, EventGetHistory, nil)
		assert.Empty(t, decode[History](t, readFrame(t, ws)).Messages)
	})

	t.Run("suggestions", func(t *testing.T) {
		sendFrame(t, ws, EventGetSuggestions, nil)
		f := readFrame(t, ws)
		require.Equal(t, EventSuggestions, f.Type)
		assert.Contains(t, decode[Suggestions](t, f).Suggestions, "Analyze my spending patterns")
	})

	t.Run("unknown event", func(t *testing.T) {
		sendFrame(t, ws, "dance", nil)
		f := readFrame(t, ws)
		require.Equal(t, EventError, f.Type)
		assert.Equal(t, CodeUnknownEvent, decode[ErrorPayload](t, f).Code)
	})

	t.Run("malformed frame", func(t *testing.T) {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
		f := readFrame(t, ws)
		require.Equal(t, EventError, f.Type)
		assert.Equal(t, CodeBadRequest, decode[ErrorPayload](t, f).Code)
	})
}

func TestServer_MessageError(t *testing.T) {
	svc := newFakeChat()
	svc.err = context.DeadlineExceeded
	ts, _ := newTestServer(t, svc)
	ws := dial(t, ts, "", nil)
	readFrame(t, ws)

	sendFrame(t, ws, EventSendMessage, SendMessage{Message: "What is a budget?"})
	readFrame(t, ws)
	readFrame(t, ws)

	f := readFrame(t, ws)
	require.Equal(t, EventError, f.Type)
	assert.Equal(t, ErrorPayload{Code: CodeMessageError, Message: "Failed to process message"}, decode[ErrorPayload](t, f))
}

func TestServer_Authenticate(t *testing.T) {
	svc := newFakeChat()
	ts, verifier := newTestServer(t, svc)
	ws := dial(t, ts, "", nil)
	hello := decode[Connected](t, readFrame(t, ws))
	require.False(t, hello.IsAuthenticated)

	t.Run("bad token", func(t *testing.T) {
		sendFrame(t, ws, EventAuthenticate, Authenticate{Token: "bogus"})
		f := readFrame(t, ws)
		require.Equal(t, EventError, f.Type)
		assert.Equal(t, CodeAuthFailed, decode[ErrorPayload](t, f).Code)
	})

	t.Run("mismatched user id", func(t *testing.T) {
		token, err := verifier.Issue("u1", "alice", time.Hour)
		require.NoError(t, err)
		sendFrame(t, ws, EventAuthenticate, Authenticate{Token: token, UserID: "u2"})
		assert.Equal(t, EventError, readFrame(t, ws).Type)
	})

	t.Run("good token", func(t *testing.T) {
		token, err := verifier.Issue("u1", "alice", time.Hour)
		require.NoError(t, err)
		sendFrame(t, ws, EventAuthenticate, Authenticate{Token: token, UserID: "u1"})

		f := readFrame(t, ws)
		require.Equal(t, EventAuthenticated, f.Type)
		got := decode[Authenticated](t, f)
		assert.True(t, got.IsAuthenticated)
		assert.Equal(t, "alice", got.Username)

		sendFrame(t, ws, EventSendMessage, SendMessage{Message: "Show my goals"})
		for range 2 {
			readFrame(t, ws)
		}
		resp := decode[BotResponse](t, readFrame(t, ws))
		assert.Equal(t, model.IdentityAuthenticated, resp.Metadata.ResponseType)
	})
}

func TestServer_DisconnectReleasesIdentity(t *testing.T) {
	svc := newFakeChat()
	ts, _ := newTestServer(t, svc)
	ws := dial(t, ts, "", nil)
	readFrame(t, ws)
	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool {
		return len(svc.disconnectedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(svc.disconnectedIDs()[0], "guest-"))
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, newFakeChat())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_AllowedOrigins(t *testing.T) {
	srv := NewServer(newFakeChat(), nil, WithAllowedOrigins([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, srv.checkOrigin(req), "non-browser clients have no origin")

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, srv.checkOrigin(req))
}

func TestTokenFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", tokenFrom(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", tokenFrom(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, tokenFrom(req))
}
