package dataset

import (
	"context"

	"github.com/jkaninda/hundreds/internal/storage"
)

// StoreSource reads the players table of a SQLite or PostgreSQL store.
type StoreSource struct {
	Store *storage.Store
}

func (s StoreSource) Name() string {
	return s.Store.Driver() + ":" + s.Store.Table()
}

func (s StoreSource) Read(ctx context.Context) (Table, error) {
	columns, rows, err := s.Store.ScanTable(ctx)
	if err != nil {
		return Table{}, err
	}
	return Table{Columns: columns, Rows: rows}, nil
}
