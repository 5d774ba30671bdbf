// Package answer renders bot replies for resolved and unresolved questions.
// Replies use Markdown emphasis; counts are plain integers.
package answer

import (
	"fmt"
	"strings"

	"github.com/jkaninda/hundreds/internal/domain"
)

// DefaultExamples are the player names suggested when a question cannot be resolved.
var DefaultExamples = []string{"Virat Kohli", "Sachin Tendulkar"}

// Formatter builds reply text.
type Formatter struct {
	examples   []string
	vocabulary []string
}

// New creates a formatter. examples are suggested player names and
// vocabulary the recognized format words, both shown in the guidance message.
func New(examples, vocabulary []string) *Formatter {
	return &Formatter{examples: examples, vocabulary: vocabulary}
}

// Answer states p's hundreds in one format, or the total with a breakdown.
func (f *Formatter) Answer(p domain.PlayerRecord, key domain.FormatKey) string {
	if key == domain.FormatTotal {
		return fmt.Sprintf("🏅 **%s** has scored **%d** hundreds **across all formats** (Tests: %d, ODIs: %d, T20Is: %d).",
			p.Name, p.Total(), p.Tests, p.ODIs, p.T20Is)
	}
	return fmt.Sprintf("🏆 **%s** has scored **%d** hundreds in **%s**.", p.Name, p.Count(key), key.Label())
}

// Card summarises all three formats for p.
func (f *Formatter) Card(p domain.PlayerRecord) string {
	return fmt.Sprintf("📊 **%s** — Tests **%d**, ODIs **%d**, T20Is **%d**.", p.Name, p.Tests, p.ODIs, p.T20Is)
}

// Unresolved is the guidance shown when no player could be identified.
func (f *Formatter) Unresolved() string {
	var b strings.Builder
	b.WriteString("❌ I couldn’t find the player in my database or understand the format.\n\n")
	b.WriteString("• Try including a player name (e.g., ")
	b.WriteString(joinBold(f.examples, ", "))
	b.WriteString(")\n")
	b.WriteString("• Mention a format: ")
	b.WriteString(listBold(f.vocabulary))
	return b.String()
}

func joinBold(items []string, sep string) string {
	bold := make([]string, len(items))
	for i, s := range items {
		bold[i] = "**" + s + "**"
	}
	return strings.Join(bold, sep)
}

// listBold renders "**a**, **b**, or **c**".
func listBold(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return "**" + items[0] + "**"
	}
	return joinBold(items[:len(items)-1], ", ") + ", or **" + items[len(items)-1] + "**"
}
