package transport

import (
	"encoding/json"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Event names.
const (
	EventConnected      = "connected"
	EventSendMessage    = "send_message"
	EventBotTyping      = "bot_typing"
	EventBotResponse    = "bot_response"
	EventClearChat      = "clear_chat"
	EventChatCleared    = "chat_cleared"
	EventGetHistory     = "get_history"
	EventHistory        = "history"
	EventGetSuggestions = "get_suggestions"
	EventSuggestions    = "suggestions"
	EventAuthenticate   = "authenticate"
	EventAuthenticated  = "authenticated"
	EventError          = "error"
)

// Error codes sent with EventError.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeMessageError   = "MESSAGE_ERROR"
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeAuthFailed     = "AUTH_FAILED"
)

// Incoming is a client frame.
type Incoming struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outgoing is a server frame.
type Outgoing struct {
	Data any    `json:"data,omitempty"`
	Type string `json:"type"`
}

// SendMessage is the payload of EventSendMessage.
type SendMessage struct {
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// Authenticate is the payload of EventAuthenticate.
type Authenticate struct {
	Token  string `json:"token"`
	UserID string `json:"userId,omitempty"`
}

// Connected is sent once after the upgrade.
type Connected struct {
	Timestamp       time.Time `json:"timestamp"`
	ConnectionID    string    `json:"connectionId"`
	Username        string    `json:"username,omitempty"`
	IsAuthenticated bool      `json:"isAuthenticated"`
}

// Typing toggles the typing indicator.
type Typing struct {
	IsTyping bool `json:"isTyping"`
}

// BotResponse carries one reply.
type BotResponse struct {
	Timestamp time.Time     `json:"timestamp"`
	MessageID string        `json:"messageId"`
	Message   string        `json:"message"`
	Provider  string        `json:"provider"`
	Metadata  chat.Metadata `json:"metadata"`
}

// Authenticated reports the outcome of EventAuthenticate.
type Authenticated struct {
	Timestamp       time.Time `json:"timestamp"`
	Username        string    `json:"username,omitempty"`
	IsAuthenticated bool      `json:"isAuthenticated"`
}

// Cleared confirms EventClearChat.
type Cleared struct {
	Timestamp time.Time `json:"timestamp"`
}

// HistoryMessage is one turn in EventHistory.
type HistoryMessage struct {
	Timestamp time.Time  `json:"timestamp"`
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
}

// History carries the conversation so far.
type History struct {
	Messages []HistoryMessage `json:"messages"`
}

// Suggestions carries starter questions.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
}

// ErrorPayload is the payload of EventError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func historyPayload(turns []model.Turn) History {
	msgs := make([]HistoryMessage, len(turns))
	for i, t := range turns {
		msgs[i] = HistoryMessage{Role: t.Role, Content: t.Content, Timestamp: t.CreatedAt}
	}
	return History{Messages: msgs}
}
