// Package scheduler runs periodic housekeeping on a cron schedule: evicting
// idle chat sessions and stale rate-limit buckets from memory.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Evicter drops entries idle for longer than idleFor and reports how many.
type Evicter interface {
	Evict(idleFor time.Duration) int
	Len() int
}

// Target is a named Evicter swept on every run.
type Target struct {
	Name    string
	Evicter Evicter
}

// Sweeper evicts idle entries from its targets on a cron schedule.
type Sweeper struct {
	targets  []Target
	schedule cron.Schedule
	spec     string
	idleFor  time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 1m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// New creates a Sweeper. metrics may be nil. Targets with a nil Evicter
// are skipped.
func New(spec string, idleFor time.Duration, metrics *Metrics, logger *slog.Logger, targets ...Target) (*Sweeper, error) {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	s := &Sweeper{
		schedule: sched,
		spec:     spec,
		idleFor:  idleFor,
		metrics:  metrics,
		logger:   logger,
	}
	for _, t := range targets {
		if t.Evicter != nil {
			s.targets = append(s.targets, t)
		}
	}
	return s, nil
}

// Start runs the sweeper in the background until ctx is done or the
// returned cancel function is called.
func (s *Sweeper) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() { s.Sweep(ctx) }))
	c.Start()

	s.logger.InfoContext(ctx, "sweeper started",
		slog.String("schedule", s.spec),
		slog.String("idle_for", s.idleFor.String()),
		slog.Int("targets", len(s.targets)),
	)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.logger.Info("sweeper stopped")
	}()

	return cancel
}

// Sweep runs one eviction pass over every target and returns the total
// number of entries dropped.
func (s *Sweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	total := 0
	for _, t := range s.targets {
		n := t.Evicter.Evict(s.idleFor)
		total += n

		if n > 0 {
			s.logger.InfoContext(ctx, "idle entries evicted",
				slog.String("target", t.Name),
				slog.Int("evicted", n),
				slog.Int("remaining", t.Evicter.Len()),
			)
		}
		if s.metrics != nil {
			s.metrics.Evicted.WithLabelValues(t.Name).Add(float64(n))
		}
	}

	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	return total
}
