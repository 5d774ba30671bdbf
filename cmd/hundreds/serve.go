package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/hundreds/internal/config"
	"github.com/jkaninda/hundreds/internal/gateway"
	"github.com/jkaninda/hundreds/internal/gateway/cli"
	"github.com/jkaninda/hundreds/internal/gateway/httpapi"
	"github.com/jkaninda/hundreds/internal/gateway/mcpserver"
	"github.com/jkaninda/hundreds/internal/gateway/telegram"
	"github.com/jkaninda/hundreds/internal/gateway/ws"
	"github.com/jkaninda/hundreds/internal/ratelimit"
	"github.com/jkaninda/hundreds/internal/scheduler"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configured gateways (CLI, HTTP, WebSocket, Telegram, MCP)",
	RunE:  runServe,
}

func init() {
	// Registered on both root and serve so that
	// `hundreds --port :8080` and `hundreds serve --port :8080` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen port (e.g. :8080)")
	}
}

// runServe loads the dataset once and runs every enabled gateway until a
// signal arrives or one of them exits.
func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		if cfg.Gateways.HTTP == nil {
			cfg.Gateways.HTTP = &config.HTTPGatewayConfig{}
		}
		cfg.Gateways.HTTP.Enabled = true
		cfg.Gateways.HTTP.ListenAddr = servePort
	}

	logger := newLogger(cfg)
	logger.Info("starting hundreds", slog.String("version", version), slog.String("dataset", cfg.Dataset.SourceName()))

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := initShared(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	gateways, sweep := buildGateways(cfg, sc)

	// Sessions and rate-limit buckets share one idle sweeper.
	var sweeperMetrics *scheduler.Metrics
	if m := sc.Obs.MetricsOrNil(); m != nil {
		sweeperMetrics = scheduler.NewMetrics(m.Registry)
	}
	sweeper, err := scheduler.New(cfg.Sessions.Schedule(), cfg.Sessions.IdleTTL(), sweeperMetrics, logger, sweep...)
	if err != nil {
		return err
	}
	cancelSweeper := sweeper.Start(ctx)
	defer cancelSweeper()

	// Start all gateways in goroutines.
	errs := make(chan error, len(gateways))
	for _, gw := range gateways {
		go func(g gateway.Gateway) {
			if err := g.Start(ctx); err != nil {
				errs <- fmt.Errorf("%s gateway: %w", gateway.NameOf(g), err)
				return
			}
			errs <- nil
		}(gw)
	}

	// Wait for signal or first gateway exit.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := len(gateways) - 1; i >= 0; i-- {
		if err := gateways[i].Stop(shutdownCtx); err != nil {
			logger.Error("stopping gateway",
				slog.String("gateway", gateway.NameOf(gateways[i])),
				slog.String("error", err.Error()),
			)
		}
	}

	logger.Info("hundreds stopped")
	return nil
}

// buildGateways creates every enabled gateway plus the sweeper targets they
// own. Falls back to the CLI when nothing is configured.
func buildGateways(cfg *config.Config, sc *SharedComponents) ([]gateway.Gateway, []scheduler.Target) {
	logger := sc.Logger
	gw := cfg.Gateways
	var gateways []gateway.Gateway
	targets := []scheduler.Target{{Name: "sessions", Evicter: sc.Sessions}}

	if cfg.NoGatewayConfigured() {
		logger.Info("no gateways configured, defaulting to CLI")
		gw.CLI = &config.CLIGatewayConfig{Enabled: true}
	}

	// WebSocket chat. Mounted on the HTTP gateway unless it has its own address
	// or HTTP is disabled.
	var wsServer *ws.Server
	if gw.WebSocket != nil && gw.WebSocket.Enabled {
		wsLimiter := ratelimit.NewLimiter(rateLimitConfig(gw.WebSocket.RateLimit))
		targets = append(targets, scheduler.Target{Name: "ws_ratelimit", Evicter: wsLimiter})
		wsServer = ws.NewServer(sc.turnHandler("websocket"), sc.Sessions, gw.WebSocket, wsLimiter, logger).
			WithObservability(sc.Obs.MetricsOrNil(), sc.tracer())
		logger.Debug("websocket server initialized", slog.String("path", wsServer.Path()))
	}
	httpEnabled := gw.HTTP != nil && gw.HTTP.Enabled
	wsStandalone := wsServer != nil && (!httpEnabled || gw.WebSocket.ListenAddr != "")

	if httpEnabled {
		httpLimiter := ratelimit.NewLimiter(rateLimitConfig(gw.HTTP.RateLimit))
		targets = append(targets, scheduler.Target{Name: "http_ratelimit", Evicter: httpLimiter})

		svc := httpapi.NewService(sc.turnHandler("http"), sc.Dataset, sc.Answers, sc.Sessions, cfg.Sessions.MaxMessages())
		httpCfg := httpapi.Config{
			ListenAddr:     gw.HTTP.Addr(),
			EnableDocs:     gw.HTTP.EnableDocs,
			APIKeys:        gw.HTTP.APIKeys,
			MaxRequestSize: gw.HTTP.MaxRequestSize(),
			Version:        version,
			Metrics:        sc.Obs.MetricsOrNil(),
			Tracer:         sc.tracer(),
		}
		if sc.Obs != nil {
			httpCfg.HealthChecker = sc.Obs.Health
		}
		if m := sc.Obs.MetricsOrNil(); m != nil {
			httpCfg.MetricsRegistry = m.Registry
			if cfg.Observability != nil {
				httpCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
			}
		}

		httpGW := httpapi.NewGateway(httpCfg, svc, httpLimiter, logger).WithSSE(gw.HTTP.SSE)
		if gw.HTTP.EnableDocs {
			httpGW = httpGW.WithOpenAPIDocs()
		}
		if wsServer != nil && !wsStandalone {
			httpGW = httpGW.WithHandler(wsServer.Path(), wsServer.Handler())
		}
		gateways = append(gateways, httpGW)
		logger.Info("HTTP gateway enabled", slog.String("addr", gw.HTTP.Addr()))
	}

	if wsStandalone {
		gateways = append(gateways, wsServer)
		logger.Info("WebSocket gateway enabled", slog.String("addr", gw.WebSocket.Addr()))
	}

	if tg := gw.Telegram; tg != nil && tg.Enabled {
		tgLimiter := ratelimit.NewLimiter(rateLimitConfig(tg.RateLimit))
		tgGW := telegram.NewGateway(telegram.Config{
			BotToken:     tg.BotToken,
			WebhookURL:   tg.WebhookURL,
			ListenAddr:   tg.WebhookAddr(),
			AllowedUsers: tg.AllowedUsers,
			PollTimeout:  tg.PollTimeout(),
		}, sc.turnHandler("telegram"), sc.Sessions, sc.greeting, tgLimiter, logger)
		targets = append(targets,
			scheduler.Target{Name: "telegram_ratelimit", Evicter: tgLimiter},
			scheduler.Target{Name: "telegram_chats", Evicter: tgGW},
		)
		gateways = append(gateways, tgGW)
		logger.Info("Telegram gateway enabled", slog.Bool("webhook", tg.WebhookURL != ""))
	}

	// CLI and MCP both own stdio; MCP wins when both are enabled.
	mcpEnabled := gw.MCP != nil && gw.MCP.Enabled
	if mcpEnabled {
		gateways = append(gateways, mcpserver.NewGateway(sc.turnHandler("mcp"), sc.Dataset, sc.Answers, gw.MCP.ServerName(), version, logger))
		logger.Info("MCP gateway enabled", slog.String("name", gw.MCP.ServerName()))
	}
	if gw.CLI != nil && gw.CLI.Enabled {
		if mcpEnabled {
			logger.Warn("CLI gateway disabled: stdio is used by the MCP gateway")
		} else {
			gateways = append(gateways, newCLIGateway(gw.CLI, sc))
		}
	}

	if len(gateways) == 0 {
		logger.Info("every gateway is disabled, defaulting to CLI")
		gateways = append(gateways, newCLIGateway(gw.CLI, sc))
	}

	return gateways, targets
}

func newCLIGateway(cfg *config.CLIGatewayConfig, sc *SharedComponents) gateway.Gateway {
	return cli.NewGateway(sc.turnHandler("cli"), sc.greeting, cli.Options{
		In:     os.Stdin,
		Out:    os.Stdout,
		Prompt: cfg.PromptText(),
	}, sc.Logger)
}

func rateLimitConfig(rl config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: rl.RequestsPerMinute,
		BurstSize:         rl.BurstSize,
	}
}
