// Package domain defines the entity types shared across the bot: player
// records, the loaded dataset, match formats and chat messages.
package domain

import (
	"strings"
)

// PlayerRecord holds one player's century counts per format.
// Records are immutable once the dataset has been loaded.
type PlayerRecord struct {
	Name           string `json:"name"`            // Canonical display form, e.g. "Virat Kohli".
	NormalizedName string `json:"normalized_name"` // Lowercased, whitespace-collapsed Name.
	Tests          int    `json:"tests"`
	ODIs           int    `json:"odis"`
	T20Is          int    `json:"t20is"`
}

// NewPlayerRecord builds a record and derives its normalized name.
func NewPlayerRecord(name string, tests, odis, t20is int) PlayerRecord {
	return PlayerRecord{
		Name:           strings.TrimSpace(name),
		NormalizedName: NormalizeName(name),
		Tests:          tests,
		ODIs:           odis,
		T20Is:          t20is,
	}
}

// Total is the sum across all three formats. It is never stored.
func (p PlayerRecord) Total() int {
	return p.Tests + p.ODIs + p.T20Is
}

// Count returns the century count for a single format key.
// Total yields the derived sum.
func (p PlayerRecord) Count(key FormatKey) int {
	switch key {
	case FormatTests:
		return p.Tests
	case FormatODIs:
		return p.ODIs
	case FormatT20Is:
		return p.T20Is
	default:
		return p.Total()
	}
}

// NormalizeName lowercases s, collapses every whitespace run to a single
// space and trims the ends.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Dataset is the ordered, read-only collection of player records.
// Order is the source order and determines match priority.
type Dataset struct {
	players []PlayerRecord
	byName  map[string]int
}

// NewDataset wraps records in a Dataset. The slice is copied.
func NewDataset(records []PlayerRecord) *Dataset {
	ds := &Dataset{
		players: make([]PlayerRecord, len(records)),
		byName:  make(map[string]int, len(records)),
	}
	copy(ds.players, records)
	for i, p := range ds.players {
		// First occurrence wins when the source repeats a name.
		if _, ok := ds.byName[p.NormalizedName]; !ok {
			ds.byName[p.NormalizedName] = i
		}
	}
	return ds
}

// Len returns the number of players.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.players)
}

// At returns the record at index i in dataset order.
func (d *Dataset) At(i int) PlayerRecord {
	return d.players[i]
}

// Players returns a copy of all records in dataset order.
func (d *Dataset) Players() []PlayerRecord {
	if d == nil {
		return nil
	}
	out := make([]PlayerRecord, len(d.players))
	copy(out, d.players)
	return out
}

// Lookup finds a player by name. The name is normalized before lookup.
func (d *Dataset) Lookup(name string) (PlayerRecord, bool) {
	if d == nil {
		return PlayerRecord{}, false
	}
	i, ok := d.byName[NormalizeName(name)]
	if !ok {
		return PlayerRecord{}, false
	}
	return d.players[i], true
}

// FormatKey identifies a match format or the all-formats aggregate.
type FormatKey string

const (
	FormatTests FormatKey = "tests"
	FormatODIs  FormatKey = "odis"
	FormatT20Is FormatKey = "t20is"
	FormatTotal FormatKey = "total"
)

// Label returns the display form used in replies.
func (k FormatKey) Label() string {
	switch k {
	case FormatTests:
		return "Tests"
	case FormatODIs:
		return "ODIs"
	case FormatT20Is:
		return "T20Is"
	case FormatTotal:
		return "all formats"
	default:
		return string(k)
	}
}

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatMessage is a single transcript entry.
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
