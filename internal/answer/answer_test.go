package answer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/format"
)

func newFormatter() *Formatter {
	return New(DefaultExamples, format.Default().Vocabulary())
}

func TestFormatter_Answer(t *testing.T) {
	f := newFormatter()
	kohli := domain.NewPlayerRecord("Virat Kohli", 27, 46, 1)

	tests := []struct {
		key  domain.FormatKey
		want string
	}{
		{domain.FormatTests, "🏆 **Virat Kohli** has scored **27** hundreds in **Tests**."},
		{domain.FormatODIs, "🏆 **Virat Kohli** has scored **46** hundreds in **ODIs**."},
		{domain.FormatT20Is, "🏆 **Virat Kohli** has scored **1** hundreds in **T20Is**."},
		{domain.FormatTotal, "🏅 **Virat Kohli** has scored **74** hundreds **across all formats** (Tests: 27, ODIs: 46, T20Is: 1)."},
	}
	for _, tc := range tests {
		if got := f.Answer(kohli, tc.key); got != tc.want {
			t.Errorf("Answer(%s) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestFormatter_TotalIsExactSum(t *testing.T) {
	f := newFormatter()
	for _, p := range []domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Suryakumar Yadav", 0, 0, 4),
		domain.NewPlayerRecord("Nobody", 0, 0, 0),
	} {
		got := f.Answer(p, domain.FormatTotal)
		sum := fmt.Sprintf("**%d** hundreds", p.Tests+p.ODIs+p.T20Is)
		breakdown := fmt.Sprintf("(Tests: %d, ODIs: %d, T20Is: %d)", p.Tests, p.ODIs, p.T20Is)
		if !strings.Contains(got, sum) || !strings.Contains(got, breakdown) {
			t.Errorf("Answer(%s, total) = %q", p.Name, got)
		}
	}
}

func TestFormatter_Card(t *testing.T) {
	got := newFormatter().Card(domain.NewPlayerRecord("Virat Kohli", 27, 46, 1))
	want := "📊 **Virat Kohli** — Tests **27**, ODIs **46**, T20Is **1**."
	if got != want {
		t.Errorf("Card() = %q, want %q", got, want)
	}
}

func TestFormatter_Unresolved(t *testing.T) {
	got := newFormatter().Unresolved()
	want := "❌ I couldn’t find the player in my database or understand the format.\n\n" +
		"• Try including a player name (e.g., **Virat Kohli**, **Sachin Tendulkar**)\n" +
		"• Mention a format: **Tests**, **ODIs**, **T20Is**, or **total**"
	if got != want {
		t.Errorf("Unresolved() =\n%s\nwant\n%s", got, want)
	}
}

func TestListBold(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"Tests"}, "**Tests**"},
		{[]string{"Tests", "ODIs"}, "**Tests**, or **ODIs**"},
	}
	for _, tc := range tests {
		if got := listBold(tc.in); got != tc.want {
			t.Errorf("listBold(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
