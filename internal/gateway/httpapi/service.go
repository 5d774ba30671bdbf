package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/answer"
	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/domain"
)

var (
	// ErrEmptyMessage is returned for blank or whitespace-only messages.
	ErrEmptyMessage = errors.New("message is required")
	// ErrInvalidSessionID is returned when a session ID is not a UUID.
	ErrInvalidSessionID = errors.New("invalid session ID")
	// ErrPlayerNotFound is returned when a name is not in the dataset.
	ErrPlayerNotFound = errors.New("player not found")
)

// QueryRequest is the JSON body for POST /v1/query and /v1/query/stream.
type QueryRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"` // Empty = new session.
}

// QueryResponse is the JSON response for POST /v1/query.
type QueryResponse struct {
	Reply         string           `json:"reply"`
	Kind          chat.Kind        `json:"kind"`
	Player        string           `json:"player,omitempty"`
	Format        domain.FormatKey `json:"format,omitempty"`
	SessionID     string           `json:"session_id"`
	CorrelationID string           `json:"correlation_id"`
}

// SessionResponse is the JSON response for GET /v1/sessions/{id}.
type SessionResponse struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	LastSeen  time.Time            `json:"last_seen"`
	Messages  []domain.ChatMessage `json:"messages"`
}

// PlayerResponse is one dataset row.
type PlayerResponse struct {
	Name  string `json:"name"`
	Tests int    `json:"tests"`
	ODIs  int    `json:"odis"`
	T20Is int    `json:"t20is"`
	Total int    `json:"total"`
	Card  string `json:"card,omitempty"`
}

// Service holds the transport-independent logic behind the HTTP routes.
type Service struct {
	bot         chat.TurnHandler
	dataset     *domain.Dataset
	answers     *answer.Formatter
	sessions    *chat.SessionStore
	maxMessages int
}

// NewService creates a Service. maxMessages caps the transcript returned by
// Session; 0 returns everything.
func NewService(bot chat.TurnHandler, ds *domain.Dataset, answers *answer.Formatter, sessions *chat.SessionStore, maxMessages int) *Service {
	return &Service{
		bot:         bot,
		dataset:     ds,
		answers:     answers,
		sessions:    sessions,
		maxMessages: maxMessages,
	}
}

// Query runs one turn. An empty session ID opens a new session.
func (s *Service) Query(ctx context.Context, req QueryRequest, correlationID string) (QueryResponse, error) {
	if err := validateMessage(req); err != nil {
		return QueryResponse{}, err
	}

	var sess *chat.Session
	if req.SessionID == "" {
		sess = s.sessions.Create()
	} else {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return QueryResponse{}, ErrInvalidSessionID
		}
		if sess, err = s.sessions.Get(id); err != nil {
			return QueryResponse{}, err
		}
	}

	reply, ok := sess.Turn(ctx, s.bot, req.Message)
	if !ok {
		return QueryResponse{}, ErrEmptyMessage
	}
	return QueryResponse{
		Reply:         reply.Text,
		Kind:          reply.Kind,
		Player:        reply.Player,
		Format:        reply.Format,
		SessionID:     sess.ID.String(),
		CorrelationID: correlationID,
	}, nil
}

// Session returns a read-only view of a session transcript.
func (s *Service) Session(rawID string) (SessionResponse, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return SessionResponse{}, ErrInvalidSessionID
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{
		ID:        sess.ID.String(),
		CreatedAt: sess.CreatedAt,
		LastSeen:  sess.LastSeen(),
		Messages:  sess.Messages(s.maxMessages),
	}, nil
}

// Players lists the dataset in source order.
func (s *Service) Players() []PlayerResponse {
	players := s.dataset.Players()
	out := make([]PlayerResponse, len(players))
	for i, p := range players {
		out[i] = playerResponse(p)
	}
	return out
}

// Player looks a player up by exact (normalized) name and includes the card.
func (s *Service) Player(name string) (PlayerResponse, error) {
	p, ok := s.dataset.Lookup(name)
	if !ok {
		return PlayerResponse{}, ErrPlayerNotFound
	}
	resp := playerResponse(p)
	resp.Card = s.answers.Card(p)
	return resp, nil
}

func validateMessage(req QueryRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

func playerResponse(p domain.PlayerRecord) PlayerResponse {
	return PlayerResponse{
		Name:  p.Name,
		Tests: p.Tests,
		ODIs:  p.ODIs,
		T20Is: p.T20Is,
		Total: p.Total(),
	}
}
