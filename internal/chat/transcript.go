package chat

import (
	"github.com/jkaninda/hundreds/internal/domain"
)

// DefaultGreeting seeds every new transcript.
const DefaultGreeting = "Hi! I’m your cricket hundreds assistant. Ask me about any player’s centuries in Tests, ODIs or T20Is."

// Transcript is the ordered message history of one session.
// It is not safe for concurrent use; Session serializes access.
type Transcript struct {
	messages []domain.ChatMessage
}

// NewTranscript creates a transcript seeded with one bot greeting.
// An empty greeting yields an empty transcript.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{}
	if greeting != "" {
		t.Append(domain.RoleBot, greeting)
	}
	return t
}

// Append adds a message at the end.
func (t *Transcript) Append(role domain.Role, text string) {
	t.messages = append(t.messages, domain.ChatMessage{Role: role, Text: text})
}

// Messages returns a copy of every message, oldest first.
func (t *Transcript) Messages() []domain.ChatMessage {
	return t.Tail(0)
}

// Tail returns a copy of the last n messages, or all of them when n <= 0.
func (t *Transcript) Tail(n int) []domain.ChatMessage {
	msgs := t.messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}
