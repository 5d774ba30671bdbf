package dataset

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jkaninda/hundreds/internal/domain"
)

// Cache loads its source at most once for the life of the process.
// A failed load is cached as well; the process is expected to exit on it.
type Cache struct {
	src    Source
	logger *slog.Logger

	once   sync.Once
	ds     *domain.Dataset
	err    error
	loaded atomic.Bool
}

// NewCache creates a cache over src.
func NewCache(src Source, logger *slog.Logger) *Cache {
	return &Cache{src: src, logger: logger}
}

// Get returns the dataset, loading it on the first call. Later calls return
// the same pointer without touching the source.
func (c *Cache) Get(ctx context.Context) (*domain.Dataset, error) {
	c.once.Do(func() {
		start := time.Now()
		c.ds, c.err = Load(ctx, c.src)
		if c.err != nil {
			c.logger.Error("dataset load failed", slog.String("source", c.src.Name()), slog.String("error", c.err.Error()))
			return
		}
		c.loaded.Store(true)
		c.logger.Info("dataset loaded",
			slog.String("source", c.src.Name()),
			slog.Int("players", c.ds.Len()),
			slog.Duration("duration", time.Since(start)),
		)
	})
	return c.ds, c.err
}

// Loaded reports whether a successful load has happened. It never triggers
// a load itself.
func (c *Cache) Loaded() bool {
	return c.loaded.Load()
}
