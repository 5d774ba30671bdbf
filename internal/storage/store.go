// Package storage persists the player table behind GORM.
// Two backends are provided: SQLite (default, zero-config) and PostgreSQL.
// Both share the model and the Store implementation below; the driver
// subpackages only differ in how the connection is opened.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jkaninda/hundreds/internal/domain"
)

// DefaultTable is the table the player rows live in.
const DefaultTable = "players"

// DriverSQLite is the SQLite driver name.
const DriverSQLite = "sqlite"

// DriverPostgres is the PostgreSQL driver name.
const DriverPostgres = "postgres"

// PlayerModel maps to the "players" table.
type PlayerModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"column:player;not null;uniqueIndex"`
	Tests     int    `gorm:"column:tests;not null;default:0"`
	ODIs      int    `gorm:"column:odis;not null;default:0"`
	T20Is     int    `gorm:"column:t20is;not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PlayerModel) TableName() string { return DefaultTable }

// Store reads and writes player rows.
type Store struct {
	db     *gorm.DB
	driver string
	table  string
	logger *slog.Logger
}

// New wraps an open GORM connection. An empty table selects DefaultTable.
func New(db *gorm.DB, driver, table string, slogger *slog.Logger) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, driver: driver, table: table, logger: slogger}
}

// Driver returns the storage driver name ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.driver
}

// Table returns the player table name.
func (s *Store) Table() string {
	return s.table
}

// GormDB returns the underlying GORM DB.
func (s *Store) GormDB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the player table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&PlayerModel{}); err != nil {
		return fmt.Errorf("migrating %s: %w", s.table, err)
	}
	return nil
}

// ListPlayers returns every row ordered by primary key, which is the
// insertion order and therefore the dataset order.
func (s *Store) ListPlayers(ctx context.Context) ([]PlayerModel, error) {
	var rows []PlayerModel
	if err := s.db.WithContext(ctx).Table(s.table).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing players from %s: %w", s.table, err)
	}
	return rows, nil
}

// ScanTable reads the raw player table as strings, header first. Rows are
// ordered by the id column when the table has one so the order matches
// insertion order. Columns are not validated here.
func (s *Store) ScanTable(ctx context.Context) ([]string, [][]string, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(s.table) {
		return nil, nil, fmt.Errorf("table %s does not exist", s.table)
	}

	q := db.Table(s.table)
	if db.Migrator().HasColumn(s.table, "id") {
		q = q.Order("id")
	}
	rows, err := q.Rows()
	if err != nil {
		return nil, nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading columns of %s: %w", s.table, err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scanning %s: %w", s.table, err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = stringify(v)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating %s: %w", s.table, err)
	}
	return columns, out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// ReplacePlayers atomically swaps the table contents for records,
// preserving their order. Returns the number of rows written.
func (s *Store) ReplacePlayers(ctx context.Context, records []domain.PlayerRecord) (int, error) {
	rows := make([]PlayerModel, len(records))
	for i, r := range records {
		rows[i] = PlayerModel{Name: r.Name, Tests: r.Tests, ODIs: r.ODIs, T20Is: r.T20Is}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Table(s.table).
			Delete(&PlayerModel{}).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", s.table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Table(s.table).CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("inserting players: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("players replaced",
		slog.String("driver", s.driver),
		slog.String("table", s.table),
		slog.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// Ping checks the database connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewGormLogger routes GORM's warnings and slow-query reports through slog.
func NewGormLogger(slogger *slog.Logger) logger.Interface {
	return logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
