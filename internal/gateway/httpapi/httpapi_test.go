package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/answer"
	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/format"
	"github.com/jkaninda/hundreds/internal/nlp"
	"github.com/jkaninda/hundreds/internal/resolver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(maxMessages int) (*Service, *chat.SessionStore) {
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Virat Kohli", 27, 46, 1),
		domain.NewPlayerRecord("Rohit Sharma", 12, 32, 5),
	})
	answers := answer.New(answer.DefaultExamples, format.Default().Vocabulary())
	bot := chat.NewBot(chat.Components{
		Dataset:  ds,
		Resolver: resolver.New(nlp.NewProseTokenizer()),
		Answers:  answers,
	}, discardLogger())
	sessions := chat.NewSessionStore(chat.DefaultGreeting)
	return NewService(bot, ds, answers, sessions, maxMessages), sessions
}

func TestService_QueryOpensSession(t *testing.T) {
	svc, sessions := newTestService(0)

	resp, err := svc.Query(context.Background(), QueryRequest{Message: "Sachin Tendulkar total hundreds"}, "abc123")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "🏅 **Sachin Tendulkar** has scored **100** hundreds **across all formats** (Tests: 51, ODIs: 49, T20Is: 0)."
	if resp.Reply != want {
		t.Errorf("Reply = %q\nwant    %q", resp.Reply, want)
	}
	if resp.Kind != chat.KindStat || resp.Format != domain.FormatTotal || resp.CorrelationID != "abc123" {
		t.Errorf("resp = %+v", resp)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("SessionID %q is not a UUID", resp.SessionID)
	}
	if sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", sessions.Len())
	}
}

func TestService_QueryContinuesSession(t *testing.T) {
	svc, sessions := newTestService(0)
	ctx := context.Background()

	first, err := svc.Query(ctx, QueryRequest{Message: "hello"}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	second, err := svc.Query(ctx, QueryRequest{Message: "Rohit Sharma T20I", SessionID: first.SessionID}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session changed: %s -> %s", first.SessionID, second.SessionID)
	}
	if sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", sessions.Len())
	}

	view, err := svc.Session(first.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	// Greeting + two turns.
	if len(view.Messages) != 5 {
		t.Fatalf("messages = %d, want 5", len(view.Messages))
	}
	if view.Messages[3].Role != domain.RoleUser || view.Messages[3].Text != "Rohit Sharma T20I" {
		t.Errorf("messages[3] = %+v", view.Messages[3])
	}
}

func TestService_QueryErrors(t *testing.T) {
	svc, sessions := newTestService(0)
	ctx := context.Background()

	tests := []struct {
		name string
		req  QueryRequest
		want error
	}{
		{"blank", QueryRequest{Message: "   \t"}, ErrEmptyMessage},
		{"bad session id", QueryRequest{Message: "hi", SessionID: "nope"}, ErrInvalidSessionID},
		{"unknown session", QueryRequest{Message: "hi", SessionID: uuid.NewString()}, chat.ErrSessionNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Query(ctx, tc.req, ""); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if sessions.Len() != 0 {
		t.Errorf("failed queries opened %d sessions", sessions.Len())
	}
}

func TestService_SessionLimit(t *testing.T) {
	svc, _ := newTestService(2)
	resp, err := svc.Query(context.Background(), QueryRequest{Message: "thanks"}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	view, err := svc.Session(resp.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(view.Messages) != 2 || view.Messages[0].Text != "thanks" {
		t.Errorf("messages = %+v", view.Messages)
	}
}

func TestService_Players(t *testing.T) {
	svc, _ := newTestService(0)

	all := svc.Players()
	if len(all) != 3 || all[1].Name != "Virat Kohli" || all[1].Total != 74 {
		t.Fatalf("Players() = %+v", all)
	}

	p, err := svc.Player("virat   KOHLI")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.Card != "📊 **Virat Kohli** — Tests **27**, ODIs **46**, T20Is **1**." {
		t.Errorf("Card = %q", p.Card)
	}

	if _, err := svc.Player("Don Bradman"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("err = %v, want ErrPlayerNotFound", err)
	}
}

func TestLookupAPIKey(t *testing.T) {
	keys := map[string]string{"k-one": "alice", "k-two": "bob"}
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer k-one", "alice", true},
		{"Bearer k-two", "bob", true},
		{"Bearer k-three", "", false},
		{"k-one", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := lookupAPIKey(keys, tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("lookupAPIKey(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/query", strings.NewReader("{}"))
	r.RemoteAddr = "203.0.113.7:51234"

	if got := clientKey("alice", r); got != "alice" {
		t.Errorf("clientKey = %q, want alice", got)
	}
	if got := clientKey("", r); got != "203.0.113.7" {
		t.Errorf("clientKey = %q, want remote host", got)
	}
}
