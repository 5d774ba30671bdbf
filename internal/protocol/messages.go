// Package protocol defines the WebSocket chat message types.
// All messages are JSON-encoded and wrapped in an Envelope for uniform routing.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/domain"
)

// Subprotocol is negotiated on the WebSocket upgrade.
const Subprotocol = "hundreds-chat-v1"

// MessageType identifies the kind of message in the chat protocol.
type MessageType string

const (
	// Client → Server
	MsgAsk  MessageType = "chat.ask"
	MsgPing MessageType = "chat.ping"

	// Server → Client
	MsgSession MessageType = "chat.session"
	MsgReply   MessageType = "chat.reply"
	MsgPong    MessageType = "chat.pong"

	// Bidirectional
	MsgError MessageType = "error"
)

// Error codes carried in ErrorPayload.
const (
	CodeBadMessage  = "bad_message"
	CodeRateLimited = "rate_limited"
	CodeUnknownType = "unknown_type"
)

// Envelope is the top-level wrapper for every WebSocket message.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"` // Message ID; replies echo the ask's ID in ReplyTo.
	ReplyTo   string          `json:"reply_to,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope creates an Envelope with a fresh ID and current timestamp.
func NewEnvelope(msgType MessageType, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Envelope{
		Type:      msgType,
		ID:        uuid.New().String(),
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the Payload into the given target.
func (e *Envelope) Decode(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// AskPayload is sent with MsgAsk.
type AskPayload struct {
	Text string `json:"text"`
}

// SessionPayload is sent with MsgSession once per connection, before any
// reply. Messages holds the opening transcript (the greeting).
type SessionPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// ReplyPayload is sent with MsgReply for every accepted ask.
type ReplyPayload struct {
	Text   string           `json:"text"`
	Kind   string           `json:"kind"`
	Player string           `json:"player,omitempty"`
	Format domain.FormatKey `json:"format,omitempty"`
}

// ErrorPayload is sent with MsgError for protocol-level errors.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
