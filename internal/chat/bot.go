// Package chat sequences a single user turn and keeps per-session transcripts.
//
// A turn is: ignore blank input, record the user message, answer small talk
// directly, otherwise resolve player and format independently and pick the
// matching reply. Every accepted turn appends exactly one bot reply.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jkaninda/hundreds/internal/answer"
	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/format"
	"github.com/jkaninda/hundreds/internal/resolver"
	"github.com/jkaninda/hundreds/internal/smalltalk"
)

// Kind classifies a reply.
type Kind string

const (
	KindSmallTalk  Kind = "small_talk"
	KindStat       Kind = "stat"
	KindCard       Kind = "card"
	KindUnresolved Kind = "unresolved"
)

// Reply is the outcome of one turn.
type Reply struct {
	Text   string           `json:"text"`
	Kind   Kind             `json:"kind"`
	Player string           `json:"player,omitempty"`
	Format domain.FormatKey `json:"format,omitempty"`
	Phase  resolver.Phase   `json:"-"`
}

// TurnHandler handles one user turn against a transcript. The bool is false
// when the input was blank and nothing happened.
type TurnHandler interface {
	HandleTurn(ctx context.Context, tr *Transcript, text string) (Reply, bool)
}

// Components are the collaborators a Bot sequences.
type Components struct {
	Dataset   *domain.Dataset
	SmallTalk *smalltalk.Matcher
	Resolver  *resolver.Resolver
	Formats   *format.Detector
	Answers   *answer.Formatter
}

// Bot is the turn orchestrator. It holds only read-only state and may be
// shared by any number of sessions.
type Bot struct {
	c      Components
	logger *slog.Logger
}

// NewBot creates a Bot. Nil matcher, detector and formatter fall back to the
// built-in tables.
func NewBot(c Components, logger *slog.Logger) *Bot {
	if c.SmallTalk == nil {
		c.SmallTalk = smalltalk.Default()
	}
	if c.Formats == nil {
		c.Formats = format.Default()
	}
	if c.Answers == nil {
		c.Answers = answer.New(answer.DefaultExamples, c.Formats.Vocabulary())
	}
	return &Bot{c: c, logger: logger}
}

// Dataset returns the dataset the bot answers from.
func (b *Bot) Dataset() *domain.Dataset {
	return b.c.Dataset
}

// Answers returns the reply formatter.
func (b *Bot) Answers() *answer.Formatter {
	return b.c.Answers
}

// HandleTurn runs one turn and appends its messages to tr.
func (b *Bot) HandleTurn(ctx context.Context, tr *Transcript, text string) (Reply, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, false
	}
	tr.Append(domain.RoleUser, text)

	reply := b.Reply(text)
	tr.Append(domain.RoleBot, reply.Text)

	b.logger.DebugContext(ctx, "turn handled",
		slog.String("kind", string(reply.Kind)),
		slog.String("player", reply.Player),
		slog.String("format", string(reply.Format)),
		slog.String("phase", string(reply.Phase)),
	)
	return reply, true
}

// Reply computes the answer for trimmed, non-empty text without touching
// any transcript.
func (b *Bot) Reply(text string) Reply {
	if msg, ok := b.c.SmallTalk.Match(text); ok {
		return Reply{Text: msg, Kind: KindSmallTalk}
	}

	player, match, found := b.c.Resolver.Resolve(text, b.c.Dataset)
	key, hasFormat := b.c.Formats.Detect(text)

	switch {
	case found && hasFormat:
		return Reply{Text: b.c.Answers.Answer(player, key), Kind: KindStat, Player: player.Name, Format: key, Phase: match.Phase}
	case found:
		return Reply{Text: b.c.Answers.Card(player), Kind: KindCard, Player: player.Name, Phase: match.Phase}
	default:
		return Reply{Text: b.c.Answers.Unresolved(), Kind: KindUnresolved}
	}
}

var _ TurnHandler = (*Bot)(nil)
