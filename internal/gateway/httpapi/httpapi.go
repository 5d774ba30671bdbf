// Package httpapi implements the HTTP API gateway.
//
// Security:
//   - Optional API key authentication (constant-time comparison)
//   - Request body size limits (default 1 MB)
//   - Per-client rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/observability"
	"github.com/jkaninda/hundreds/internal/ratelimit"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKeys        map[string]string // API key → client name. Empty = no authentication.
	MaxRequestSize int64             // Maximum request body in bytes. 0 = 1 MB default.
	Version        string            // Reported in the OpenAPI document.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	service *Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	// Streaming support.
	sseEnabled bool

	// Extra handlers mounted on the HTTP mux (e.g., the WebSocket chat endpoint).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway. rl may be nil.
func NewGateway(cfg Config, svc *Service, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	maxSize := cfg.MaxRequestSize
	if maxSize <= 0 {
		maxSize = defaultMaxRequestSize
	}
	return &Gateway{
		config:  cfg,
		service: svc,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(maxSize)),
	}
}

// WithOpenAPIDocs serves the generated OpenAPI document and UI.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	version := g.config.Version
	if version == "" {
		version = "dev"
	}
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "hundreds",
			Version: version,
		},
	)
	return g
}

// WithSSE enables the SSE streaming endpoint.
func (g *Gateway) WithSSE(enabled bool) *Gateway {
	g.sseEnabled = enabled
	return g
}

// WithHandler mounts an additional handler on the HTTP mux at the given pattern.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

// Name identifies the gateway in logs.
func (g *Gateway) Name() string { return "http" }

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	maxSize := g.config.MaxRequestSize
	if maxSize <= 0 {
		maxSize = defaultMaxRequestSize
	}
	g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	})

	// /v1 group: metrics and tracing first, then authentication.
	g.group = g.okapi.Group("/v1",
		observability.MetricsMiddleware(g.config.Metrics, g.config.Tracer),
		g.authenticate,
	)

	g.group.Post("/query", g.handleQuery,
		okapi.DocSummary("Ask a cricket hundreds question"),
		okapi.DocTags("Query"),
		okapi.DocRequestBody(QueryRequest{}),
		okapi.DocResponse(QueryResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	if g.sseEnabled {
		g.group.Post("/query/stream", g.handleQueryStream,
			okapi.DocSummary("Ask a question and receive the reply via SSE"),
			okapi.DocTags("Query"),
			okapi.DocRequestBody(QueryRequest{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
	}
	g.group.Get("/sessions/{id}", g.handleSession,
		okapi.DocSummary("Get a session transcript"),
		okapi.DocTags("Sessions"),
		okapi.DocPathParam("id", "string", "Session ID (UUID)"),
		okapi.DocResponse(SessionResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/players", g.handlePlayers,
		okapi.DocSummary("List every player in the dataset"),
		okapi.DocTags("Players"),
		okapi.DocResponse([]PlayerResponse{}),
	)
	g.group.Get("/players/{name}", g.handlePlayer,
		okapi.DocSummary("Get one player's centuries"),
		okapi.DocTags("Players"),
		okapi.DocPathParam("name", "string", "Player name, case-insensitive"),
		okapi.DocResponse(PlayerResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting",
		slog.String("addr", g.config.ListenAddr),
		slog.Bool("auth", len(g.config.APIKeys) > 0),
	)

	err := g.okapi.StartServer(g.server)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

func (g *Gateway) handleQuery(c *okapi.Context) error {
	if err := g.allow(c); err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	correlationID := newCorrelationID()
	resp, err := g.service.Query(c.Context(), req, correlationID)
	if err != nil {
		return abortWith(c, err)
	}

	g.logger.Info("http query",
		slog.String("client", c.GetString("userID")),
		slog.String("correlation_id", correlationID),
		slog.String("session_id", resp.SessionID),
		slog.String("kind", string(resp.Kind)),
	)
	return c.OK(resp)
}

func (g *Gateway) handleSession(c *okapi.Context) error {
	resp, err := g.service.Session(c.Param("id"))
	if err != nil {
		return abortWith(c, err)
	}
	return c.OK(resp)
}

func (g *Gateway) handlePlayers(c *okapi.Context) error {
	return c.OK(g.service.Players())
}

func (g *Gateway) handlePlayer(c *okapi.Context) error {
	name := c.Param("name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	resp, err := g.service.Player(name)
	if err != nil {
		return abortWith(c, err)
	}
	return c.OK(resp)
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	if g.config.HealthChecker != nil {
		return c.OK(g.config.HealthChecker.CheckHealth())
	}
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication and rate limiting ---

// authenticate resolves the Bearer API key to a client name. With no keys
// configured every request is let through anonymously.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		if len(g.config.APIKeys) == 0 {
			return next(c)
		}
		client, ok := lookupAPIKey(g.config.APIKeys, c.Header("Authorization"))
		if !ok {
			return c.AbortUnauthorized("missing or invalid API key")
		}
		c.Set("userID", client)
		return next(c)
	}
}

// allow applies the rate limit to the authenticated client, or to the
// remote address for anonymous requests.
func (g *Gateway) allow(c *okapi.Context) error {
	key := clientKey(c.GetString("userID"), c.Request())
	if err := g.limiter.Allow(key); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}
	return nil
}

// lookupAPIKey checks a "Bearer <key>" header against keys. Every key is
// compared so timing does not reveal which one matched.
func lookupAPIKey(keys map[string]string, authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	apiKey := strings.TrimPrefix(authHeader, "Bearer ")

	client := ""
	for key, name := range keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			client = name
		}
	}
	return client, client != ""
}

func clientKey(client string, r *http.Request) string {
	if client != "" {
		return client
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- Helpers ---

// abortWith maps service errors to HTTP responses.
func abortWith(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidSessionID):
		return c.AbortBadRequest(err.Error())
	case errors.Is(err, chat.ErrSessionNotFound), errors.Is(err, ErrPlayerNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": err.Error()})
	default:
		return c.AbortInternalServerError("processing failed")
	}
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
