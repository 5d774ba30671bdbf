package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

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

func newTestGateway() *Gateway {
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Virat Kohli", 27, 46, 1),
	})
	answers := answer.New(answer.DefaultExamples, format.Default().Vocabulary())
	bot := chat.NewBot(chat.Components{
		Dataset:  ds,
		Resolver: resolver.New(nlp.NewProseTokenizer()),
		Answers:  answers,
	}, discardLogger())
	return NewGateway(bot, ds, answers, "hundreds", "test", discardLogger())
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func TestHandleAsk(t *testing.T) {
	g := newTestGateway()

	res, err := g.handleAsk(context.Background(), callRequest(ToolAsk, map[string]any{
		"question": "How many ODI hundreds does Virat Kohli have?",
	}))
	if err != nil {
		t.Fatalf("handleAsk: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "🏆 **Virat Kohli** has scored **46** hundreds in **ODIs**." {
		t.Errorf("reply = %q", got)
	}
	if g.transcript.Len() != 2 {
		t.Errorf("transcript length = %d, want 2", g.transcript.Len())
	}
}

func TestHandleAsk_Errors(t *testing.T) {
	g := newTestGateway()
	for name, args := range map[string]map[string]any{
		"missing": {},
		"blank":   {"question": "   "},
	} {
		res, err := g.handleAsk(context.Background(), callRequest(ToolAsk, args))
		if err != nil {
			t.Fatalf("%s: handleAsk: %v", name, err)
		}
		if !res.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
	if g.transcript.Len() != 0 {
		t.Errorf("failed asks changed the transcript")
	}
}

func TestHandleListPlayers(t *testing.T) {
	g := newTestGateway()
	res, err := g.handleListPlayers(context.Background(), callRequest(ToolListPlayers, nil))
	if err != nil {
		t.Fatalf("handleListPlayers: %v", err)
	}
	lines := strings.Split(resultText(t, res), "\n")
	if len(lines) != 2 || lines[0] != "Sachin Tendulkar: Tests 51, ODIs 49, T20Is 0, total 100" {
		t.Errorf("lines = %q", lines)
	}
}

func TestHandleGetPlayer(t *testing.T) {
	g := newTestGateway()

	res, err := g.handleGetPlayer(context.Background(), callRequest(ToolGetPlayer, map[string]any{"name": "sachin tendulkar"}))
	if err != nil {
		t.Fatalf("handleGetPlayer: %v", err)
	}
	if got := resultText(t, res); got != "📊 **Sachin Tendulkar** — Tests **51**, ODIs **49**, T20Is **0**." {
		t.Errorf("card = %q", got)
	}

	res, _ = g.handleGetPlayer(context.Background(), callRequest(ToolGetPlayer, map[string]any{"name": "Don Bradman"}))
	if !res.IsError {
		t.Error("expected tool error for unknown player")
	}
}
