// Package mcpserver exposes the bot as a Model Context Protocol server over stdio,
// so assistants can ask cricket hundreds questions as a tool call.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/hundreds/internal/answer"
	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/domain"
)

// Tool names.
const (
	ToolAsk         = "ask_hundreds"
	ToolListPlayers = "list_players"
	ToolGetPlayer   = "get_player"
)

// Gateway is an MCP stdio server. A stdio server has exactly one client,
// so it keeps a single transcript.
type Gateway struct {
	bot     chat.TurnHandler
	dataset *domain.Dataset
	answers *answer.Formatter
	logger  *slog.Logger
	srv     *server.MCPServer

	mu         sync.Mutex
	transcript *chat.Transcript

	in  io.Reader
	out io.Writer
}

// NewGateway creates the MCP server and registers its tools.
func NewGateway(bot chat.TurnHandler, ds *domain.Dataset, answers *answer.Formatter, name, version string, logger *slog.Logger) *Gateway {
	g := &Gateway{
		bot:        bot,
		dataset:    ds,
		answers:    answers,
		logger:     logger,
		transcript: chat.NewTranscript(""),
		in:         os.Stdin,
		out:        os.Stdout,
	}

	g.srv = server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	g.srv.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Ask how many international hundreds (centuries) a cricket player has scored in Tests, ODIs, T20Is or in total."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Free-text question, e.g. \"How many ODI hundreds does Virat Kohli have?\""),
		),
	), g.handleAsk)

	g.srv.AddTool(mcp.NewTool(ToolListPlayers,
		mcp.WithDescription("List every player the bot knows, with hundreds per format."),
	), g.handleListPlayers)

	g.srv.AddTool(mcp.NewTool(ToolGetPlayer,
		mcp.WithDescription("Get one player's hundreds in every format by exact name."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Player name, case-insensitive, e.g. \"Sachin Tendulkar\""),
		),
	), g.handleGetPlayer)

	return g
}

// Name identifies the gateway in logs.
func (g *Gateway) Name() string { return "mcp" }

// Start serves MCP on stdin/stdout until ctx is canceled or input ends.
func (g *Gateway) Start(ctx context.Context) error {
	g.logger.Info("mcp gateway starting", slog.Int("players", g.dataset.Len()))
	stdio := server.NewStdioServer(g.srv)
	if err := stdio.Listen(ctx, g.in, g.out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}

// Stop is a no-op; cancel the Start context to stop serving.
func (g *Gateway) Stop(_ context.Context) error {
	return nil
}

func (g *Gateway) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	g.mu.Lock()
	reply, ok := g.bot.HandleTurn(ctx, g.transcript, question)
	g.mu.Unlock()
	if !ok {
		return mcp.NewToolResultError("question is empty"), nil
	}

	g.logger.Debug("mcp ask", slog.String("kind", string(reply.Kind)))
	return mcp.NewToolResultText(reply.Text), nil
}

func (g *Gateway) handleListPlayers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, p := range g.dataset.Players() {
		fmt.Fprintf(&b, "%s: Tests %d, ODIs %d, T20Is %d, total %d\n", p.Name, p.Tests, p.ODIs, p.T20Is, p.Total())
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (g *Gateway) handleGetPlayer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok := g.dataset.Lookup(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("player %q not found", name)), nil
	}
	return mcp.NewToolResultText(g.answers.Card(p)), nil
}
