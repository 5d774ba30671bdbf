// Package cli implements the interactive terminal gateway.
package cli

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jkaninda/hundreds/internal/chat"
)

// Hint is printed under the greeting.
const Hint = "Press Enter to send • I currently know *hundreds* only"

// DefaultPrompt is shown before each input line.
const DefaultPrompt = "you> "

// Options configure a Gateway. Zero values use stdin, stdout and
// DefaultPrompt.
type Options struct {
	In     io.Reader
	Out    io.Writer
	Prompt string
}

// Gateway is a line-oriented REPL over one in-process transcript.
type Gateway struct {
	bot        chat.TurnHandler
	transcript *chat.Transcript
	in         io.Reader
	out        io.Writer
	prompt     string
	logger     *slog.Logger
	done       chan struct{} // closed by Stop to signal shutdown
}

// NewGateway creates a CLI gateway. The transcript opens with greeting.
func NewGateway(bot chat.TurnHandler, greeting string, opts Options, logger *slog.Logger) *Gateway {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &Gateway{
		bot:        bot,
		transcript: chat.NewTranscript(greeting),
		in:         opts.In,
		out:        opts.Out,
		prompt:     opts.Prompt,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Name identifies the gateway in logs.
func (g *Gateway) Name() string { return "cli" }

// Start runs the REPL. Blocks until ctx is cancelled, Stop is called,
// input ends, or the user types "exit".
func (g *Gateway) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(g.in)

	for _, m := range g.transcript.Messages() {
		fmt.Fprintln(g.out, m.Text)
	}
	fmt.Fprintln(g.out, Hint)
	fmt.Fprintln(g.out)

	for {
		fmt.Fprint(g.out, g.prompt)

		// Check for context cancellation or Stop signal between prompts.
		select {
		case <-ctx.Done():
			fmt.Fprintln(g.out, "\nShutting down.")
			return nil
		case <-g.done:
			fmt.Fprintln(g.out, "\nShutting down.")
			return nil
		default:
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			fmt.Fprintln(g.out, "Goodbye.")
			return nil
		}

		correlationID := newCorrelationID()
		reply, ok := g.bot.HandleTurn(ctx, g.transcript, line)
		if !ok {
			continue
		}

		g.logger.DebugContext(ctx, "cli turn",
			slog.String("correlation_id", correlationID),
			slog.String("kind", string(reply.Kind)),
		)

		fmt.Fprintln(g.out)
		fmt.Fprintln(g.out, reply.Text)
		fmt.Fprintln(g.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// Stop signals the REPL to shut down.
func (g *Gateway) Stop(_ context.Context) error {
	select {
	case <-g.done:
		// Already closed.
	default:
		close(g.done)
	}
	return nil
}

// Transcript returns the session history so far.
func (g *Gateway) Transcript() *chat.Transcript {
	return g.transcript
}

// newCorrelationID generates a short random hex ID for request tracing.
func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}
