// Package resolver finds which player a free-text question is about.
//
// Resolution runs in two phases. Containment looks for a player's full
// normalized name inside the normalized text and returns the first record
// in dataset order. Only when that fails, token overlap counts how many of
// each player's name words occur among the alphabetic words of the text
// (longer than two characters) and returns the record with the strictly
// greatest count, provided it reaches MinTokenHits.
package resolver

import (
	"strings"

	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/nlp"
)

// MinTokenHits is the number of name words that must corroborate a
// token-overlap match.
const MinTokenHits = 2

// minTokenLen excludes short words such as "de" or "of" from overlap.
const minTokenLen = 3

// Phase names the step that produced a match.
type Phase string

const (
	PhaseContainment  Phase = "containment"
	PhaseTokenOverlap Phase = "token_overlap"
)

// Match describes how a player was found.
type Match struct {
	Phase Phase
	Hits  int // name words matched; zero for containment
}

// Resolver is immutable and safe for concurrent use.
type Resolver struct {
	tokenizer nlp.Tokenizer
}

// New creates a resolver using tokenizer for the overlap phase.
func New(tokenizer nlp.Tokenizer) *Resolver {
	return &Resolver{tokenizer: tokenizer}
}

// Resolve returns the best matching player in ds, if any.
func (r *Resolver) Resolve(text string, ds *domain.Dataset) (domain.PlayerRecord, Match, bool) {
	if p, ok := contains(text, ds); ok {
		return p, Match{Phase: PhaseContainment}, true
	}
	return r.overlap(text, ds)
}

func contains(text string, ds *domain.Dataset) (domain.PlayerRecord, bool) {
	padded := " " + domain.NormalizeName(text) + " "
	for i := 0; i < ds.Len(); i++ {
		p := ds.At(i)
		if p.NormalizedName == "" {
			continue
		}
		if strings.Contains(padded, " "+p.NormalizedName+" ") {
			return p, true
		}
	}
	return domain.PlayerRecord{}, false
}

func (r *Resolver) overlap(text string, ds *domain.Dataset) (domain.PlayerRecord, Match, bool) {
	words := r.words(text)
	if len(words) == 0 {
		return domain.PlayerRecord{}, Match{}, false
	}

	var (
		best     domain.PlayerRecord
		bestHits int
		found    bool
	)
	for i := 0; i < ds.Len(); i++ {
		p := ds.At(i)
		hits := 0
		for _, w := range strings.Fields(p.NormalizedName) {
			if _, ok := words[w]; ok {
				hits++
			}
		}
		// Strictly greater: the first record reaching a count keeps it.
		if hits > bestHits && hits >= MinTokenHits {
			best, bestHits, found = p, hits, true
		}
	}
	if !found {
		return domain.PlayerRecord{}, Match{}, false
	}
	return best, Match{Phase: PhaseTokenOverlap, Hits: bestHits}, true
}

// words returns the lowercased alphabetic tokens of text long enough to count.
func (r *Resolver) words(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range r.tokenizer.Tokenize(text) {
		if !tok.Alpha || len([]rune(tok.Text)) < minTokenLen {
			continue
		}
		set[strings.ToLower(tok.Text)] = struct{}{}
	}
	return set
}
