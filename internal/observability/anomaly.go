package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jkaninda/hundreds/internal/config"
)

const (
	defaultAnomalyWindow = 300 * time.Second
	minAnomalySamples    = 5
)

// AnomalyDetector watches the share of unresolved questions per gateway over
// a sliding window and warns when it crosses the configured threshold. A high
// rate usually means the dataset is missing players people ask about.
type AnomalyDetector struct {
	mu         sync.Mutex
	unresolved map[string]*slidingWindow
	answered   map[string]*slidingWindow
	alerting   map[string]bool // Gateways currently above the threshold.
	threshold  float64
	window     time.Duration
	logger     *slog.Logger
	now        func() time.Time
	onAlert    func(Alert)
}

// Alert describes a gateway whose unresolved rate rose above the threshold.
type Alert struct {
	Gateway   string
	Rate      float64
	Threshold float64
	Samples   int
	Window    time.Duration
	At        time.Time
}

type slidingWindow struct {
	entries []time.Time
	window  time.Duration
}

// NewAnomalyDetector creates an anomaly detector from config.
func NewAnomalyDetector(cfg *config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	window := defaultAnomalyWindow
	if cfg.WindowSeconds > 0 {
		window = time.Duration(cfg.WindowSeconds) * time.Second
	}
	return &AnomalyDetector{
		unresolved: make(map[string]*slidingWindow),
		answered:   make(map[string]*slidingWindow),
		alerting:   make(map[string]bool),
		threshold:  cfg.UnresolvedRateThreshold,
		window:     window,
		logger:     logger,
		now:        time.Now,
	}
}

// OnAlert registers fn to run once each time a gateway crosses the
// threshold. It fires again only after the rate has dropped back below.
// fn runs on the recording goroutine and must not block.
func (a *AnomalyDetector) OnAlert(fn func(Alert)) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAlert = fn
}

// RecordUnresolved records a question that could not be answered.
// Returns true when the unresolved rate is above the threshold afterwards.
func (a *AnomalyDetector) RecordUnresolved(gateway string) bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	a.windowFor(a.unresolved, gateway).add(a.now())
	above := a.checkRate(gateway)

	var alert *Alert
	if above && !a.alerting[gateway] && a.onAlert != nil {
		rate, total := a.rate(gateway)
		alert = &Alert{Gateway: gateway, Rate: rate, Threshold: a.threshold, Samples: total, Window: a.window, At: a.now()}
	}
	a.alerting[gateway] = above
	fn := a.onAlert
	a.mu.Unlock()

	if alert != nil {
		fn(*alert)
	}
	return above
}

// RecordAnswered records a question that produced a stat or a card.
func (a *AnomalyDetector) RecordAnswered(gateway string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.windowFor(a.answered, gateway).add(a.now())
	if a.alerting[gateway] {
		if rate, _ := a.rate(gateway); rate <= a.threshold {
			a.alerting[gateway] = false
		}
	}
}

// UnresolvedRate returns the current unresolved share for gateway and the
// number of samples it is based on.
func (a *AnomalyDetector) UnresolvedRate(gateway string) (float64, int) {
	if a == nil {
		return 0, 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate(gateway)
}

// Must be called with a.mu held.
func (a *AnomalyDetector) rate(gateway string) (float64, int) {
	now := a.now()
	misses := a.windowFor(a.unresolved, gateway).count(now)
	total := misses + a.windowFor(a.answered, gateway).count(now)
	if total == 0 {
		return 0, 0
	}
	return float64(misses) / float64(total), total
}

// Must be called with a.mu held.
func (a *AnomalyDetector) checkRate(gateway string) bool {
	if a.threshold <= 0 {
		return false
	}
	rate, total := a.rate(gateway)
	if total < minAnomalySamples || rate <= a.threshold {
		return false
	}
	if a.logger != nil {
		a.logger.Warn("anomaly detected: high unresolved rate",
			slog.String("gateway", gateway),
			slog.Float64("unresolved_rate", rate),
			slog.Float64("threshold", a.threshold),
			slog.Int("samples", total),
		)
	}
	return true
}

func (a *AnomalyDetector) windowFor(m map[string]*slidingWindow, key string) *slidingWindow {
	w, ok := m[key]
	if !ok {
		w = &slidingWindow{window: a.window}
		m[key] = w
	}
	return w
}

// add appends a sample and prunes expired entries.
func (w *slidingWindow) add(at time.Time) {
	w.entries = append(w.entries, at)
	w.prune(at)
}

// count returns the number of samples within the window.
func (w *slidingWindow) count(now time.Time) int {
	w.prune(now)
	return len(w.entries)
}

// prune removes entries older than the window duration.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.entries) && w.entries[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}
