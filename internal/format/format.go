// Package format detects which match format a question is about.
package format

import (
	"strings"

	"github.com/jkaninda/hundreds/internal/domain"
)

// Entry lists the surface keywords that select a format.
type Entry struct {
	Key      domain.FormatKey
	Keywords []string
}

// DefaultEntries is the built-in keyword table. Order is match priority.
var DefaultEntries = []Entry{
	{domain.FormatTests, []string{"test", "tests"}},
	{domain.FormatODIs, []string{"odi", "odis", "one day", "one-day"}},
	{domain.FormatT20Is, []string{"t20", "t20i", "t20is"}},
	{domain.FormatTotal, []string{"total", "overall", "all formats", "allformat", "all-format"}},
}

// Detector maps text to a format key by plain substring search, so plural
// and suffixed forms ("T20Is", "ODIs") hit their stem. Safe for concurrent use.
type Detector struct {
	entries []Entry
}

// NewDetector builds a detector over entries. Keywords are lowercased.
func NewDetector(entries []Entry) *Detector {
	d := &Detector{entries: make([]Entry, len(entries))}
	for i, e := range entries {
		kw := make([]string, len(e.Keywords))
		for j, k := range e.Keywords {
			kw[j] = strings.ToLower(k)
		}
		d.entries[i] = Entry{Key: e.Key, Keywords: kw}
	}
	return d
}

// Default returns a detector over DefaultEntries.
func Default() *Detector {
	return NewDetector(DefaultEntries)
}

// Detect returns the first key in table order with a keyword in text.
func (d *Detector) Detect(text string) (domain.FormatKey, bool) {
	t := strings.ToLower(text)
	for _, e := range d.entries {
		for _, k := range e.Keywords {
			if strings.Contains(t, k) {
				return e.Key, true
			}
		}
	}
	return "", false
}

// Vocabulary returns the display labels of the recognized formats, in table
// order. Total is listed by its keyword rather than its label.
func (d *Detector) Vocabulary() []string {
	out := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		if e.Key == domain.FormatTotal {
			out = append(out, "total")
			continue
		}
		out = append(out, e.Key.Label())
	}
	return out
}
