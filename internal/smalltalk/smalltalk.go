// Package smalltalk answers greetings, thanks and farewells before any
// cricket lookup happens.
package smalltalk

import (
	"regexp"
)

// Entry maps a phrase to its canned reply.
type Entry struct {
	Phrase string
	Reply  string
}

// DefaultEntries is the built-in phrase table. Order is match priority.
var DefaultEntries = []Entry{
	{"hello", "👋 Hello! Ask me about cricket hundreds — Tests, ODIs or T20Is."},
	{"hi", "👋 Hi! I can tell you how many centuries a player has in each format."},
	{"hey", "👋 Hey there! Try: *How many ODI hundreds does Kohli have?*"},
	{"thanks", "😊 You’re welcome! Ask me another cricket question."},
	{"thank you", "😊 Happy to help!"},
	{"bye", "👋 Goodbye! Come back anytime for more cricket stats."},
	{"goodbye", "👋 See you! Keep smashing questions like centuries."},
}

type rule struct {
	re    *regexp.Regexp
	reply string
}

// Matcher checks text against an ordered phrase table.
// It is immutable and safe for concurrent use.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles entries into whole-word, case-insensitive patterns.
// Multi-word phrases match only as a unit.
func NewMatcher(entries []Entry) (*Matcher, error) {
	m := &Matcher{rules: make([]rule, 0, len(entries))}
	for _, e := range entries {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(e.Phrase) + `\b`)
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, rule{re: re, reply: e.Reply})
	}
	return m, nil
}

// Default returns a matcher over DefaultEntries.
func Default() *Matcher {
	m, err := NewMatcher(DefaultEntries)
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns the reply of the first phrase, in table order, found in text.
func (m *Matcher) Match(text string) (string, bool) {
	for _, r := range m.rules {
		if r.re.MatchString(text) {
			return r.reply, true
		}
	}
	return "", false
}
