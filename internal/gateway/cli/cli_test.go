package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/nlp"
	"github.com/jkaninda/hundreds/internal/resolver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot() *chat.Bot {
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Virat Kohli", 27, 46, 1),
	})
	return chat.NewBot(chat.Components{
		Dataset:  ds,
		Resolver: resolver.New(nlp.NewProseTokenizer()),
	}, discardLogger())
}

func TestGateway_Session(t *testing.T) {
	in := strings.NewReader("hello\n\n   \nHow many ODI hundreds does Virat Kohli have?\nexit\nnever read\n")
	var out bytes.Buffer

	g := NewGateway(newTestBot(), chat.DefaultGreeting, Options{In: in, Out: &out, Prompt: "> "}, discardLogger())
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		chat.DefaultGreeting,
		Hint,
		"👋 Hello!",
		"🏆 **Virat Kohli** has scored **46** hundreds in **ODIs**.",
		"Goodbye.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	// Greeting + two accepted turns; blank lines are ignored.
	if n := g.Transcript().Len(); n != 5 {
		t.Errorf("transcript length = %d, want 5", n)
	}
}

func TestGateway_EOF(t *testing.T) {
	var out bytes.Buffer
	g := NewGateway(newTestBot(), "", Options{In: strings.NewReader("Sachin"), Out: &out}, discardLogger())
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(out.String(), DefaultPrompt) {
		t.Errorf("expected default prompt in output: %q", out.String())
	}
	// "Sachin" alone is one name word, below the token-overlap minimum.
	if !strings.Contains(out.String(), "❌") {
		t.Errorf("expected guidance message: %q", out.String())
	}
}

func TestGateway_StopBeforeInput(t *testing.T) {
	var out bytes.Buffer
	g := NewGateway(newTestBot(), "", Options{In: strings.NewReader("hello\n"), Out: &out}, discardLogger())
	_ = g.Stop(context.Background())
	_ = g.Stop(context.Background()) // idempotent

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(out.String(), "Shutting down.") {
		t.Errorf("expected shutdown message: %q", out.String())
	}
	if g.Transcript().Len() != 0 {
		t.Errorf("no turn should run after Stop")
	}
}
