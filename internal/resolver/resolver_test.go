package resolver

import (
	"strings"
	"testing"
	"unicode"

	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/nlp"
)

// splitTokenizer splits on anything that is not a letter or digit.
type splitTokenizer struct{}

func (splitTokenizer) Tokenize(text string) []nlp.Token {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]nlp.Token, len(fields))
	for i, f := range fields {
		tokens[i] = nlp.Token{Text: f, Alpha: nlp.IsAlpha(f)}
	}
	return tokens
}

func testDataset() *domain.Dataset {
	return domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Virat Kohli", 27, 46, 1),
		domain.NewPlayerRecord("AB de Villiers", 22, 25, 0),
		domain.NewPlayerRecord("Rohit Sharma", 12, 32, 5),
	})
}

func TestResolve(t *testing.T) {
	r := New(splitTokenizer{})
	ds := testDataset()

	tests := []struct {
		name      string
		input     string
		want      string // empty means unresolved
		wantPhase Phase
		wantHits  int
	}{
		{"containment", "How many ODI hundreds does Virat Kohli have?", "Virat Kohli", PhaseContainment, 0},
		{"containment extra spacing", "virat   KOHLI   tests", "Virat Kohli", PhaseContainment, 0},
		{"containment short words", "ab de villiers odis", "AB de Villiers", PhaseContainment, 0},
		{"overlap reordered", "Kohli Virat hundreds", "Virat Kohli", PhaseTokenOverlap, 2},
		{"overlap trailing punctuation", "Virat Kohli?", "Virat Kohli", PhaseTokenOverlap, 2},
		{"single first name", "Sachin Test centuries?", "", "", 0},
		{"single surname", "Tell me about Kohli", "", "", 0},
		{"short name words ignored", "villiers, de ab", "", "", 0},
		{"no player", "who has the most hundreds?", "", "", 0},
		{"empty", "", "", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, m, ok := r.Resolve(tc.input, ds)
			if tc.want == "" {
				if ok {
					t.Errorf("Resolve(%q) = %q, want unresolved", tc.input, p.Name)
				}
				return
			}
			if !ok {
				t.Fatalf("Resolve(%q) unresolved, want %q", tc.input, tc.want)
			}
			if p.Name != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.input, p.Name, tc.want)
			}
			if m.Phase != tc.wantPhase || m.Hits != tc.wantHits {
				t.Errorf("Match = %+v, want phase %q hits %d", m, tc.wantPhase, tc.wantHits)
			}
		})
	}
}

func TestResolve_ContainmentFollowsDatasetOrder(t *testing.T) {
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Smith", 1, 0, 0),
		domain.NewPlayerRecord("Steve Smith", 34, 12, 0),
	})
	p, m, ok := New(splitTokenizer{}).Resolve("steve smith tests", ds)
	if !ok || p.Name != "Smith" || m.Phase != PhaseContainment {
		t.Errorf("Resolve = (%q, %+v, %v), want earlier-listed Smith by containment", p.Name, m, ok)
	}
}

func TestResolve_OverlapPrefersMoreHits(t *testing.T) {
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Alpha Beta", 1, 1, 1),
		domain.NewPlayerRecord("Beta Alpha Gamma", 2, 2, 2),
	})
	r := New(splitTokenizer{})

	p, m, ok := r.Resolve("gamma beta alpha!", ds)
	if !ok || p.Name != "Beta Alpha Gamma" || m.Hits != 3 {
		t.Errorf("Resolve = (%q, %+v, %v), want Beta Alpha Gamma with 3 hits", p.Name, m, ok)
	}

	p, m, ok = r.Resolve("beta, alpha", ds)
	if !ok || p.Name != "Alpha Beta" || m.Hits != 2 {
		t.Errorf("Resolve = (%q, %+v, %v), want first record on tie", p.Name, m, ok)
	}
}

func TestResolve_EveryPlayerByFullName(t *testing.T) {
	ds := testDataset()
	r := New(splitTokenizer{})
	for _, want := range ds.Players() {
		p, _, ok := r.Resolve("how many total hundreds for "+want.Name+" please", ds)
		if !ok || p.Name != want.Name {
			t.Errorf("Resolve(%q) = (%q, %v)", want.Name, p.Name, ok)
		}
	}
}

func TestResolve_ProseTokenizer(t *testing.T) {
	p, m, ok := New(nlp.NewProseTokenizer()).Resolve("Sharma Rohit, T20I tons?", testDataset())
	if !ok || p.Name != "Rohit Sharma" || m.Phase != PhaseTokenOverlap {
		t.Errorf("Resolve = (%q, %+v, %v), want Rohit Sharma by token overlap", p.Name, m, ok)
	}
}
