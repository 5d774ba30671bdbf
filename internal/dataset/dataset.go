// Package dataset turns a tabular player source into an immutable
// domain.Dataset. Sources are CSV files or a players table in SQLite or
// PostgreSQL; validation is identical for all of them.
package dataset

import (
	"context"
	"strconv"
	"strings"

	"github.com/jkaninda/hundreds/internal/domain"
)

// Required column headers. Matching is case-insensitive and ignores
// surrounding whitespace.
const (
	ColumnPlayer = "Player"
	ColumnTests  = "Tests"
	ColumnODIs   = "ODIs"
	ColumnT20Is  = "T20Is"
)

var requiredColumns = []string{ColumnPlayer, ColumnTests, ColumnODIs, ColumnT20Is}

// Table is the raw content of a source: a header and string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Source produces a raw table.
type Source interface {
	// Name identifies the source in errors and logs.
	Name() string
	Read(ctx context.Context) (Table, error)
}

// Load reads src and validates every row. Any failure is a *LoadError.
func Load(ctx context.Context, src Source) (*domain.Dataset, error) {
	table, err := src.Read(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Reason: "reading source", Err: err}
	}
	records, err := parse(src.Name(), table)
	if err != nil {
		return nil, err
	}
	return domain.NewDataset(records), nil
}

func parse(name string, table Table) ([]domain.PlayerRecord, error) {
	idx := make(map[string]int, len(requiredColumns))
	for i, h := range table.Columns {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, want := range requiredColumns {
			if _, seen := idx[want]; !seen && strings.EqualFold(h, want) {
				idx[want] = i
			}
		}
	}
	for _, want := range requiredColumns {
		if _, ok := idx[want]; !ok {
			return nil, &LoadError{Source: name, Column: want, Reason: "missing required column"}
		}
	}

	records := make([]domain.PlayerRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		rowNum := i + 1
		cell := func(col string) (string, error) {
			j := idx[col]
			if j >= len(row) {
				return "", &LoadError{Source: name, Row: rowNum, Column: col, Reason: "missing value"}
			}
			return strings.TrimSpace(row[j]), nil
		}

		player, err := cell(ColumnPlayer)
		if err != nil {
			return nil, err
		}
		if player == "" {
			return nil, &LoadError{Source: name, Row: rowNum, Column: ColumnPlayer, Reason: "empty player name"}
		}

		var counts [3]int
		for k, col := range requiredColumns[1:] {
			raw, err := cell(col)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, &LoadError{Source: name, Row: rowNum, Column: col, Reason: "non-numeric count " + strconv.Quote(raw)}
			}
			if n < 0 {
				return nil, &LoadError{Source: name, Row: rowNum, Column: col, Reason: "negative count " + raw}
			}
			counts[k] = n
		}

		records = append(records, domain.NewPlayerRecord(player, counts[0], counts[1], counts[2]))
	}
	return records, nil
}
