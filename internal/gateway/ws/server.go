// Package ws implements the WebSocket chat gateway. Each connection owns one
// chat session for its lifetime; the session is dropped on disconnect.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/config"
	"github.com/jkaninda/hundreds/internal/observability"
	"github.com/jkaninda/hundreds/internal/protocol"
	"github.com/jkaninda/hundreds/internal/ratelimit"
)

const maxMessageSize = 16 << 10 // 16 KB per chat message

// Server serves the chat protocol over WebSocket.
type Server struct {
	bot      chat.TurnHandler
	sessions *chat.SessionStore
	cfg      *config.WebSocketGatewayConfig
	limiter  *ratelimit.Limiter
	logger   *slog.Logger

	metrics *observability.MetricsCollector
	tracer  trace.Tracer

	server *http.Server // standalone mode only
}

// NewServer creates a WebSocket chat server. limiter may be nil.
func NewServer(bot chat.TurnHandler, sessions *chat.SessionStore, cfg *config.WebSocketGatewayConfig, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	return &Server{
		bot:      bot,
		sessions: sessions,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logger,
	}
}

// WithObservability attaches HTTP metrics and tracing. Either may be nil.
func (s *Server) WithObservability(metrics *observability.MetricsCollector, tracer trace.Tracer) *Server {
	s.metrics = metrics
	s.tracer = tracer
	return s
}

// Path returns the endpoint path.
func (s *Server) Path() string {
	return s.cfg.WSPath()
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (s *Server) Handler() http.Handler {
	return observability.HTTPMetricsMiddleware(s.metrics, s.tracer, http.HandlerFunc(s.handleUpgrade))
}

// Name identifies the gateway in logs.
func (s *Server) Name() string { return "websocket" }

// Start serves the chat endpoint on its own listener. Use Handler instead
// to mount it on the HTTP gateway.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.Path(), s.Handler())

	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("websocket gateway starting",
		slog.String("addr", s.server.Addr),
		slog.String("path", s.Path()),
	)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the standalone listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("websocket gateway stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var origins []string
	if s.cfg != nil {
		origins = s.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{protocol.Subprotocol},
		OriginPatterns: origins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s.handleConnection(r.Context(), conn, remoteHost(r))
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn, client string) {
	sess := s.sessions.Create()
	log := s.logger.With(slog.String("session_id", sess.ID.String()), slog.String("client", client))

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.WSConnections.Dec()
		}
		s.sessions.Delete(sess.ID)
		conn.Close(websocket.StatusNormalClosure, "connection closed")
	}()

	log.Info("chat connection opened")

	hello, _ := protocol.NewEnvelope(protocol.MsgSession, protocol.SessionPayload{Messages: sess.Messages(0)})
	hello.SessionID = sess.ID.String()
	if err := s.writeEnvelope(ctx, conn, hello); err != nil {
		log.Warn("sending session failed", slog.String("error", err.Error()))
		return
	}

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx, conn, log)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				log.Info("chat connection closed")
			} else {
				log.Warn("chat connection error", slog.String("error", err.Error()))
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.writeError(ctx, conn, sess, "", protocol.CodeBadMessage, "invalid JSON envelope")
			continue
		}

		s.handleMessage(ctx, conn, sess, client, &env)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, sess *chat.Session, client string, env *protocol.Envelope) {
	switch env.Type {
	case protocol.MsgPing:
		pong, _ := protocol.NewEnvelope(protocol.MsgPong, nil)
		pong.ReplyTo = env.ID
		pong.SessionID = sess.ID.String()
		_ = s.writeEnvelope(ctx, conn, pong)

	case protocol.MsgAsk:
		var ask protocol.AskPayload
		if err := env.Decode(&ask); err != nil {
			s.writeError(ctx, conn, sess, env.ID, protocol.CodeBadMessage, "invalid ask payload")
			return
		}
		if strings.TrimSpace(ask.Text) == "" {
			// Blank input is a no-op, same as the other gateways.
			return
		}
		if err := s.limiter.Allow(client); err != nil {
			s.writeError(ctx, conn, sess, env.ID, protocol.CodeRateLimited, err.Error())
			return
		}

		reply, ok := sess.Turn(ctx, s.bot, ask.Text)
		if !ok {
			return
		}
		out, _ := protocol.NewEnvelope(protocol.MsgReply, protocol.ReplyPayload{
			Text:   reply.Text,
			Kind:   string(reply.Kind),
			Player: reply.Player,
			Format: reply.Format,
		})
		out.ReplyTo = env.ID
		out.SessionID = sess.ID.String()
		if err := s.writeEnvelope(ctx, conn, out); err != nil {
			s.logger.Debug("sending reply failed", slog.String("error", err.Error()))
		}

	default:
		s.writeError(ctx, conn, sess, env.ID, protocol.CodeUnknownType, "unknown message type "+string(env.Type))
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, log *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				log.Debug("keepalive ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, sess *chat.Session, replyTo, code, msg string) {
	env, _ := protocol.NewEnvelope(protocol.MsgError, protocol.ErrorPayload{Code: code, Message: msg})
	env.ReplyTo = replyTo
	env.SessionID = sess.ID.String()
	_ = s.writeEnvelope(ctx, conn, env)
}

func (s *Server) writeEnvelope(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
