// Package config handles loading and validating hundreds configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Dataset source names.
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// DefaultDatasetPath is the CSV read when nothing else is configured.
const DefaultDatasetPath = "cricket_data.csv"

// Config is the root configuration for hundreds.
type Config struct {
	Dataset       DatasetConfig        `json:"dataset" yaml:"dataset"`
	Bot           BotConfig            `json:"bot" yaml:"bot"`
	Logging       LoggingConfig        `json:"logging" yaml:"logging"`
	Gateways      GatewaysConfig       `json:"gateways" yaml:"gateways"`
	Sessions      *SessionsConfig      `json:"sessions,omitempty" yaml:"sessions,omitempty"`           // nil = defaults
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// DatasetConfig selects where player records are read from.
type DatasetConfig struct {
	Source           string `json:"source" yaml:"source"`                           // "csv" (default), "sqlite" or "postgres".
	Path             string `json:"path" yaml:"path"`                               // CSV file or SQLite database. Override: HUNDREDS_DATASET_PATH.
	Table            string `json:"table" yaml:"table"`                             // SQL table. Default: "players".
	DSN              string `json:"dsn" yaml:"dsn"`                                 // PostgreSQL DSN. Override: HUNDREDS_DATASET_DSN.
	JournalMode      string `json:"journal_mode" yaml:"journal_mode"`               // SQLite journal mode. Default: "wal".
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 10
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 2
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// SourceName returns the configured source, defaulting to "csv".
func (d *DatasetConfig) SourceName() string {
	if d != nil && d.Source != "" {
		return strings.ToLower(d.Source)
	}
	return SourceCSV
}

// FilePath returns the CSV or SQLite path. CSV defaults to DefaultDatasetPath.
func (d *DatasetConfig) FilePath() string {
	if d != nil && d.Path != "" {
		return d.Path
	}
	if d.SourceName() == SourceCSV {
		return DefaultDatasetPath
	}
	return ""
}

// ConnMaxLifetime returns the pool connection lifetime. Zero lets the driver decide.
func (d *DatasetConfig) ConnMaxLifetime() time.Duration {
	if d != nil && d.ConnMaxLifetimeS > 0 {
		return time.Duration(d.ConnMaxLifetimeS) * time.Second
	}
	return 0
}

// BotConfig customizes what the bot says outside of answers.
type BotConfig struct {
	Greeting       string   `json:"greeting" yaml:"greeting"`               // Seed message of every transcript. Empty = built-in greeting.
	ExamplePlayers []string `json:"example_players" yaml:"example_players"` // Names suggested in the guidance message.
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info (default), warn, error. Override: HUNDREDS_LOG_LEVEL.
	Format string `json:"format" yaml:"format"` // "json" (default) or "text".
}

// SlogLevel parses Level. Unknown values fall back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	lvl, _ := parseLevel(l.Level)
	return lvl
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// GatewaysConfig defines which gateways are enabled and their settings.
// Nil pointers mean the gateway is not configured. If no gateway is
// configured at all, the CLI gateway is enabled.
type GatewaysConfig struct {
	CLI       *CLIGatewayConfig       `json:"cli,omitempty" yaml:"cli,omitempty"`
	HTTP      *HTTPGatewayConfig      `json:"http,omitempty" yaml:"http,omitempty"`
	WebSocket *WebSocketGatewayConfig `json:"websocket,omitempty" yaml:"websocket,omitempty"`
	MCP       *MCPGatewayConfig       `json:"mcp,omitempty" yaml:"mcp,omitempty"`
	Telegram  *TelegramGatewayConfig  `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

// CLIGatewayConfig configures the interactive CLI gateway.
type CLIGatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Prompt  string `json:"prompt" yaml:"prompt"` // Default: "you> ".
}

// PromptText returns the input prompt with a default of "you> ".
func (c *CLIGatewayConfig) PromptText() string {
	if c != nil && c.Prompt != "" {
		return c.Prompt
	}
	return "you> "
}

// HTTPGatewayConfig configures the HTTP API gateway.
type HTTPGatewayConfig struct {
	Enabled             bool              `json:"enabled" yaml:"enabled"`
	EnableDocs          bool              `json:"enable_docs" yaml:"enable_docs"`
	ListenAddr          string            `json:"listen_addr" yaml:"listen_addr"`
	MaxRequestSizeBytes int64             `json:"max_request_size_bytes" yaml:"max_request_size_bytes"`
	APIKeys             map[string]string `json:"api_keys" yaml:"api_keys"` // API key → client ID. Empty = no authentication. Override: HUNDREDS_API_KEYS.
	RateLimit           RateLimitConfig   `json:"rate_limit" yaml:"rate_limit"`
	SSE                 bool              `json:"sse" yaml:"sse"` // Enable SSE streaming endpoint.
}

// Addr returns the listen address with a default of ":8080".
func (h *HTTPGatewayConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// MaxRequestSize returns the request body limit with a default of 1 MB.
func (h *HTTPGatewayConfig) MaxRequestSize() int64 {
	if h != nil && h.MaxRequestSizeBytes > 0 {
		return h.MaxRequestSizeBytes
	}
	return 1 << 20
}

// WebSocketGatewayConfig configures the WebSocket chat endpoint.
type WebSocketGatewayConfig struct {
	Enabled             bool            `json:"enabled" yaml:"enabled"`
	ListenAddr          string          `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"` // Standalone listen address (when HTTP gateway is disabled). Default: ":8081".
	Path                string          `json:"path" yaml:"path"`                                   // Default: "/ws/chat".
	AllowedOrigins      []string        `json:"allowed_origins" yaml:"allowed_origins"`             // Origin patterns accepted cross-origin.
	PingIntervalSeconds int             `json:"ping_interval_seconds" yaml:"ping_interval_seconds"` // Default: 30.
	RateLimit           RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// WSPath returns the WebSocket path with a default of "/ws/chat".
func (w *WebSocketGatewayConfig) WSPath() string {
	if w != nil && w.Path != "" {
		return w.Path
	}
	return "/ws/chat"
}

// Addr returns the standalone listen address with a default of ":8081".
func (w *WebSocketGatewayConfig) Addr() string {
	if w != nil && w.ListenAddr != "" {
		return w.ListenAddr
	}
	return ":8081"
}

// PingInterval returns the keepalive interval with a default of 30s.
func (w *WebSocketGatewayConfig) PingInterval() time.Duration {
	if w != nil && w.PingIntervalSeconds > 0 {
		return time.Duration(w.PingIntervalSeconds) * time.Second
	}
	return 30 * time.Second
}

// MCPGatewayConfig configures the MCP stdio server.
type MCPGatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Name    string `json:"name" yaml:"name"` // Server name announced to clients. Default: "hundreds".
}

// ServerName returns the announced server name.
func (m *MCPGatewayConfig) ServerName() string {
	if m != nil && m.Name != "" {
		return m.Name
	}
	return "hundreds"
}

// TelegramGatewayConfig configures the Telegram bot gateway.
// The bot token is only read from TELEGRAM_BOT_TOKEN, never from the file.
type TelegramGatewayConfig struct {
	Enabled            bool            `json:"enabled" yaml:"enabled"`
	WebhookURL         string          `json:"webhook_url" yaml:"webhook_url"`                   // If set, use webhook mode. If empty, use long polling.
	ListenAddr         string          `json:"listen_addr" yaml:"listen_addr"`                   // Webhook listen address. Default: ":8443".
	AllowedUsers       []int64         `json:"allowed_users" yaml:"allowed_users"`               // Telegram user IDs. Empty = everyone.
	PollTimeoutSeconds int             `json:"poll_timeout_seconds" yaml:"poll_timeout_seconds"` // Default: 30.
	RateLimit          RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	BotToken string `json:"-" yaml:"-"`
}

// WebhookAddr returns the webhook listen address.
func (t *TelegramGatewayConfig) WebhookAddr() string {
	if t != nil && t.ListenAddr != "" {
		return t.ListenAddr
	}
	return ":8443"
}

// PollTimeout returns the long-poll timeout.
func (t *TelegramGatewayConfig) PollTimeout() time.Duration {
	if t != nil && t.PollTimeoutSeconds > 0 {
		return time.Duration(t.PollTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// RateLimitConfig configures per-client rate limiting for a gateway.
// Zero RequestsPerMinute disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `json:"burst_size" yaml:"burst_size"`
}

// SessionsConfig controls in-memory chat sessions.
type SessionsConfig struct {
	IdleTTLSeconds        int    `json:"idle_ttl_seconds" yaml:"idle_ttl_seconds"`               // Default: 1800 (30 min)
	SweepSchedule         string `json:"sweep_schedule" yaml:"sweep_schedule"`                   // Cron expression. Default: "@every 5m".
	MaxTranscriptMessages int    `json:"max_transcript_messages" yaml:"max_transcript_messages"` // Messages returned by the transcript endpoint. Default: 100.
}

// IdleTTL returns how long a session may stay idle before eviction.
func (s *SessionsConfig) IdleTTL() time.Duration {
	if s != nil && s.IdleTTLSeconds > 0 {
		return time.Duration(s.IdleTTLSeconds) * time.Second
	}
	return 30 * time.Minute
}

// Schedule returns the sweep cron expression.
func (s *SessionsConfig) Schedule() string {
	if s != nil && s.SweepSchedule != "" {
		return s.SweepSchedule
	}
	return "@every 5m"
}

// MaxMessages returns the transcript view limit.
func (s *SessionsConfig) MaxMessages() int {
	if s != nil && s.MaxTranscriptMessages > 0 {
		return s.MaxTranscriptMessages
	}
	return 100
}

// ObservabilityConfig configures metrics, tracing, health checks, and anomaly detection.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Health  *HealthConfig  `json:"health,omitempty" yaml:"health,omitempty"`
	Anomaly *AnomalyConfig `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the exposition path.
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "hundreds"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// HealthConfig configures dependency health checks for readiness probes.
type HealthConfig struct {
	IncludeDB bool `json:"include_db" yaml:"include_db"` // Ping the dataset database on /readyz.
}

// AnomalyConfig configures threshold-based anomaly detection.
type AnomalyConfig struct {
	Enabled                 bool    `json:"enabled" yaml:"enabled"`
	UnresolvedRateThreshold float64 `json:"unresolved_rate_threshold" yaml:"unresolved_rate_threshold"` // e.g. 0.5 = half the questions unanswered
	WindowSeconds           int     `json:"window_seconds" yaml:"window_seconds"`                       // Sliding window. Default: 300

	Notify []NotificationChannelConfig `json:"notify,omitempty" yaml:"notify,omitempty"` // Where anomaly alerts are sent.
}

// NotificationChannelConfig is one alert destination.
// Tokens are read from SLACK_BOT_TOKEN and TELEGRAM_BOT_TOKEN.
type NotificationChannelConfig struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`                   // "webhook", "slack" or "telegram".
	URL          string `json:"url" yaml:"url"`                     // webhook
	ChannelID    string `json:"channel_id" yaml:"channel_id"`       // slack
	ChatID       string `json:"chat_id" yaml:"chat_id"`             // telegram
	AllowPrivate bool   `json:"allow_private" yaml:"allow_private"` // webhook: permit private and loopback hosts.
}

// DefaultConfigPath returns the config file used when no path is given.
// It may not exist.
func DefaultConfigPath() string {
	return goutils.Env("HUNDREDS_CONFIG", "hundreds.yaml")
}

// Default returns a working configuration: the CSV dataset next to the
// binary and the CLI gateway.
func Default() *Config {
	cfg := &Config{
		Dataset: DatasetConfig{Source: SourceCSV, Path: DefaultDatasetPath},
		Gateways: GatewaysConfig{
			CLI: &CLIGatewayConfig{Enabled: true},
		},
	}
	cfg.applyEnv()
	return cfg
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return Load(resolved)
}

// applyEnv overlays environment variables on the loaded values.
func (c *Config) applyEnv() {
	c.Dataset.Path = goutils.Env("HUNDREDS_DATASET_PATH", c.Dataset.Path)
	c.Dataset.DSN = goutils.Env("HUNDREDS_DATASET_DSN", c.Dataset.DSN)
	c.Logging.Level = goutils.Env("HUNDREDS_LOG_LEVEL", c.Logging.Level)

	if c.Gateways.Telegram != nil {
		c.Gateways.Telegram.BotToken = goutils.Env("TELEGRAM_BOT_TOKEN", "")
	}

	if keys := goutils.Env("HUNDREDS_API_KEYS", ""); keys != "" {
		if c.Gateways.HTTP == nil {
			c.Gateways.HTTP = &HTTPGatewayConfig{}
		}
		c.Gateways.HTTP.APIKeys = ParseAPIKeys(keys)
	}
}

// ParseAPIKeys parses "key1:client1,key2:client2". A key without a client
// maps to itself.
func ParseAPIKeys(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, client, found := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		client = strings.TrimSpace(client)
		if !found || client == "" {
			client = key
		}
		if key != "" {
			out[key] = client
		}
	}
	return out
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// NoGatewayConfigured reports whether the gateways section is empty.
func (c *Config) NoGatewayConfigured() bool {
	g := c.Gateways
	return g.CLI == nil && g.HTTP == nil && g.WebSocket == nil && g.MCP == nil && g.Telegram == nil
}

func (c *Config) validate() error {
	switch c.Dataset.SourceName() {
	case SourceCSV, SourceSQLite:
		if c.Dataset.FilePath() == "" {
			return fmt.Errorf("dataset.path is required for %s source (set HUNDREDS_DATASET_PATH env var)", c.Dataset.SourceName())
		}
	case SourcePostgres:
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset.dsn is required for postgres source (set HUNDREDS_DATASET_DSN env var)")
		}
	default:
		return fmt.Errorf("dataset.source %q is not supported (use csv, sqlite or postgres)", c.Dataset.Source)
	}

	if _, ok := parseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("logging.level %q is not supported (use debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not supported (use json or text)", c.Logging.Format)
	}

	if c.Sessions != nil {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Sessions.Schedule()); err != nil {
			return fmt.Errorf("sessions.sweep_schedule %q: %w", c.Sessions.SweepSchedule, err)
		}
	}

	for name, rl := range map[string]*RateLimitConfig{
		"http":      rateLimitOf(c.Gateways.HTTP),
		"websocket": rateLimitOfWS(c.Gateways.WebSocket),
		"telegram":  rateLimitOfTelegram(c.Gateways.Telegram),
	} {
		if rl != nil && (rl.RequestsPerMinute < 0 || rl.BurstSize < 0) {
			return fmt.Errorf("gateways.%s.rate_limit must not be negative", name)
		}
	}

	// MCP speaks over stdio, which the interactive CLI also owns.
	if c.Gateways.CLI != nil && c.Gateways.CLI.Enabled && c.Gateways.MCP != nil && c.Gateways.MCP.Enabled {
		return fmt.Errorf("gateways.cli and gateways.mcp cannot both be enabled")
	}

	if tg := c.Gateways.Telegram; tg != nil && tg.Enabled && tg.BotToken == "" {
		return fmt.Errorf("gateways.telegram is enabled but TELEGRAM_BOT_TOKEN is not set")
	}

	if c.Observability != nil && c.Observability.Anomaly != nil {
		if t := c.Observability.Anomaly.UnresolvedRateThreshold; t < 0 || t > 1 {
			return fmt.Errorf("observability.anomaly.unresolved_rate_threshold must be between 0 and 1")
		}
		for i, ch := range c.Observability.Anomaly.Notify {
			if err := ch.validate(); err != nil {
				return fmt.Errorf("observability.anomaly.notify[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func rateLimitOf(h *HTTPGatewayConfig) *RateLimitConfig {
	if h == nil {
		return nil
	}
	return &h.RateLimit
}

func rateLimitOfWS(w *WebSocketGatewayConfig) *RateLimitConfig {
	if w == nil {
		return nil
	}
	return &w.RateLimit
}

func rateLimitOfTelegram(t *TelegramGatewayConfig) *RateLimitConfig {
	if t == nil {
		return nil
	}
	return &t.RateLimit
}

func (n NotificationChannelConfig) validate() error {
	switch n.Type {
	case "webhook":
		if n.URL == "" {
			return fmt.Errorf("webhook channel %q requires url", n.Name)
		}
	case "slack":
		if n.ChannelID == "" {
			return fmt.Errorf("slack channel %q requires channel_id", n.Name)
		}
	case "telegram":
		if n.ChatID == "" {
			return fmt.Errorf("telegram channel %q requires chat_id", n.Name)
		}
	default:
		return fmt.Errorf("channel %q has unsupported type %q (use webhook, slack or telegram)", n.Name, n.Type)
	}
	return nil
}
