package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/hundreds/internal/answer"
	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/config"
	"github.com/jkaninda/hundreds/internal/dataset"
	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/format"
	"github.com/jkaninda/hundreds/internal/logging"
	"github.com/jkaninda/hundreds/internal/nlp"
	"github.com/jkaninda/hundreds/internal/notification"
	"github.com/jkaninda/hundreds/internal/observability"
	"github.com/jkaninda/hundreds/internal/resolver"
	"github.com/jkaninda/hundreds/internal/smalltalk"
	"github.com/jkaninda/hundreds/internal/storage"
	pgstore "github.com/jkaninda/hundreds/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/hundreds/internal/storage/sqlite"
)

// configPath is the --config flag shared by every command.
var configPath string

// SharedComponents holds everything a command needs to answer turns.
// Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *storage.Store // nil for the CSV source.
	Cache    *dataset.Cache
	Dataset  *domain.Dataset
	Answers  *answer.Formatter
	Bot      *chat.Bot
	Sessions *chat.SessionStore
	Obs      *observability.Observability

	greeting string
	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// loadConfig reads the --config file. Without the flag a missing default
// file falls back to the built-in configuration.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadOrDefault(config.DefaultConfigPath())
}

// initShared loads the dataset and builds the bot. A dataset that cannot be
// loaded is fatal for every command.
func initShared(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{Config: cfg, Logger: logger}

	src, err := openSource(cfg.Dataset, sc)
	if err != nil {
		sc.Cleanup()
		return nil, err
	}

	sc.Cache = dataset.NewCache(src, logger)
	ds, err := sc.Cache.Get(ctx)
	if err != nil {
		sc.Cleanup()
		return nil, err
	}
	sc.Dataset = ds

	formats := format.Default()
	examples := cfg.Bot.ExamplePlayers
	if len(examples) == 0 {
		examples = answer.DefaultExamples
	}
	sc.Answers = answer.New(examples, formats.Vocabulary())

	sc.Bot = chat.NewBot(chat.Components{
		Dataset:   ds,
		SmallTalk: smalltalk.Default(),
		Resolver:  resolver.New(nlp.NewProseTokenizer()),
		Formats:   formats,
		Answers:   sc.Answers,
	}, logger)

	sc.greeting = cfg.Bot.Greeting
	if sc.greeting == "" {
		sc.greeting = chat.DefaultGreeting
	}
	sc.Sessions = chat.NewSessionStore(sc.greeting)

	obs, err := observability.New(cfg.Observability, version, logger)
	if err != nil {
		sc.Cleanup()
		return nil, err
	}
	if obs != nil {
		sc.Obs = obs
		sc.addCleanup(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		})
		if m := obs.Metrics; m != nil {
			m.DatasetPlayers.Set(float64(ds.Len()))
			m.ObserveSessions(sc.Sessions.Len)
		}
		sc.registerHealthChecks()
		sc.wireAlerts()
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
			slog.Bool("anomaly", obs.Anomaly != nil),
		)
	}

	return sc, nil
}

// openSource picks the dataset source from config. SQL sources open the
// store and register its Close as a cleanup.
func openSource(cfg config.DatasetConfig, sc *SharedComponents) (dataset.Source, error) {
	switch cfg.SourceName() {
	case config.SourceCSV:
		return dataset.CSVSource{Path: cfg.FilePath()}, nil
	case config.SourceSQLite, config.SourcePostgres:
		store, err := openStore(cfg.SourceName(), cfg.FilePath(), cfg.DSN, cfg, sc.Logger)
		if err != nil {
			return nil, err
		}
		sc.Store = store
		sc.addCleanup(func() { _ = store.Close() })
		return dataset.StoreSource{Store: store}, nil
	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
	}
}

// openStore opens a player store for driver. path is used by SQLite, dsn by
// PostgreSQL; table and pool settings come from cfg.
func openStore(driver, path, dsn string, cfg config.DatasetConfig, logger *slog.Logger) (*storage.Store, error) {
	switch driver {
	case config.SourceSQLite:
		return sqlitestore.Open(sqlitestore.Config{
			Path:        path,
			JournalMode: cfg.JournalMode,
			Table:       cfg.Table,
		}, logger)
	case config.SourcePostgres:
		return pgstore.Open(pgstore.Config{
			DSN:             dsn,
			Table:           cfg.Table,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func (sc *SharedComponents) registerHealthChecks() {
	health := sc.Obs.Health
	if health == nil {
		return
	}
	health.AddDetailedCheck("dataset", func(_ context.Context) (string, error) {
		if !sc.Cache.Loaded() {
			return "", fmt.Errorf("dataset not loaded")
		}
		if sc.Dataset.Len() == 0 {
			return "", fmt.Errorf("dataset is empty")
		}
		return fmt.Sprintf("%d players", sc.Dataset.Len()), nil
	})
	if sc.Store != nil && sc.Config.Observability.Health != nil && sc.Config.Observability.Health.IncludeDB {
		health.AddCheck("database", sc.Store.Ping)
	}
}

// wireAlerts sends anomaly alerts to the configured notification channels.
func (sc *SharedComponents) wireAlerts() {
	detector := sc.Obs.AnomalyOrNil()
	if detector == nil || len(sc.Config.Observability.Anomaly.Notify) == 0 {
		return
	}

	var channels []notification.Channel
	for _, ch := range sc.Config.Observability.Anomaly.Notify {
		channels = append(channels, notification.Channel{
			Name: ch.Name,
			Type: ch.Type,
			Config: map[string]string{
				"url":           ch.URL,
				"channel_id":    ch.ChannelID,
				"chat_id":       ch.ChatID,
				"allow_private": fmt.Sprint(ch.AllowPrivate),
			},
		})
	}

	dispatcher := notification.NewDispatcher(channels, sc.Logger)
	dispatcher.RegisterSender(notification.NewWebhookSender(version, sc.Logger))
	dispatcher.RegisterSender(notification.NewSlackSender(goutils.Env("SLACK_BOT_TOKEN", ""), sc.Logger))
	dispatcher.RegisterSender(notification.NewTelegramSender(goutils.Env("TELEGRAM_BOT_TOKEN", ""), sc.Logger))
	sc.addCleanup(dispatcher.Wait)

	detector.OnAlert(func(a observability.Alert) {
		dispatcher.NotifyAsync(alertMessage(a))
	})
	sc.Logger.Debug("anomaly alerts wired", slog.Int("channels", dispatcher.Channels()))
}

func alertMessage(a observability.Alert) *notification.Message {
	return &notification.Message{
		Subject: fmt.Sprintf("hundreds: %.0f%% of %s questions unanswered", a.Rate*100, a.Gateway),
		Body: fmt.Sprintf("%d of the last %d questions on the %s gateway (window %s) matched no player. Threshold is %.0f%%.",
			int(a.Rate*float64(a.Samples)+0.5), a.Samples, a.Gateway, a.Window, a.Threshold*100),
		Metadata: map[string]string{
			"gateway":   a.Gateway,
			"rate":      fmt.Sprintf("%.3f", a.Rate),
			"threshold": fmt.Sprintf("%.3f", a.Threshold),
			"samples":   fmt.Sprint(a.Samples),
			"at":        a.At.UTC().Format(time.RFC3339),
		},
	}
}

// tracer returns the OTel tracer or nil when tracing is disabled, so
// middleware can skip span creation entirely.
func (sc *SharedComponents) tracer() trace.Tracer {
	if ts := sc.Obs.TracerOrNil(); ts != nil {
		return ts.Tracer()
	}
	return nil
}

// turnHandler wraps the bot with per-gateway metrics, tracing and anomaly
// detection. Every gateway gets its own label.
func (sc *SharedComponents) turnHandler(gateway string) chat.TurnHandler {
	return observability.NewInstrumentedBot(sc.Bot, gateway, sc.Obs.MetricsOrNil(), sc.tracer(), sc.Obs.AnomalyOrNil())
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging)
}
