package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/config"
	"github.com/jkaninda/hundreds/internal/domain"
	"github.com/jkaninda/hundreds/internal/nlp"
	"github.com/jkaninda/hundreds/internal/observability"
	"github.com/jkaninda/hundreds/internal/protocol"
	"github.com/jkaninda/hundreds/internal/ratelimit"
	"github.com/jkaninda/hundreds/internal/resolver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) (*httptest.Server, *chat.SessionStore, *observability.MetricsCollector) {
	t.Helper()
	ds := domain.NewDataset([]domain.PlayerRecord{
		domain.NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		domain.NewPlayerRecord("Virat Kohli", 27, 46, 1),
	})
	bot := chat.NewBot(chat.Components{
		Dataset:  ds,
		Resolver: resolver.New(nlp.NewProseTokenizer()),
	}, discardLogger())
	sessions := chat.NewSessionStore(chat.DefaultGreeting)
	metrics := observability.NewMetricsCollector()

	s := NewServer(bot, sessions, &config.WebSocketGatewayConfig{Enabled: true}, limiter, discardLogger()).
		WithObservability(metrics, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, sessions, metrics
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{protocol.Subprotocol},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return env
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ protocol.MessageType, payload any) string {
	t.Helper()
	env, err := protocol.NewEnvelope(typ, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, _ := json.Marshal(env)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return env.ID
}

func TestServer_Conversation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, sessions, _ := newTestServer(t, nil)
	conn := dial(t, ctx, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello := readEnvelope(t, ctx, conn)
	if hello.Type != protocol.MsgSession || hello.SessionID == "" {
		t.Fatalf("first message = %+v", hello)
	}
	var sp protocol.SessionPayload
	if err := hello.Decode(&sp); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(sp.Messages) != 1 || sp.Messages[0].Text != chat.DefaultGreeting {
		t.Errorf("session messages = %+v", sp.Messages)
	}

	// Blank asks produce no reply; the next reply must answer the real question.
	send(t, ctx, conn, protocol.MsgAsk, protocol.AskPayload{Text: "   "})
	id := send(t, ctx, conn, protocol.MsgAsk, protocol.AskPayload{Text: "How many Test hundreds does Virat Kohli have?"})

	reply := readEnvelope(t, ctx, conn)
	if reply.Type != protocol.MsgReply || reply.ReplyTo != id || reply.SessionID != hello.SessionID {
		t.Fatalf("reply envelope = %+v", reply)
	}
	var rp protocol.ReplyPayload
	if err := reply.Decode(&rp); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rp.Text != "🏆 **Virat Kohli** has scored **27** hundreds in **Tests**." || rp.Kind != string(chat.KindStat) {
		t.Errorf("reply = %+v", rp)
	}

	if sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", sessions.Len())
	}
}

func TestServer_PingAndUnknown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, _, _ := newTestServer(t, nil)
	conn := dial(t, ctx, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEnvelope(t, ctx, conn) // session

	id := send(t, ctx, conn, protocol.MsgPing, nil)
	if pong := readEnvelope(t, ctx, conn); pong.Type != protocol.MsgPong || pong.ReplyTo != id {
		t.Errorf("pong = %+v", pong)
	}

	send(t, ctx, conn, "chat.bogus", nil)
	errEnv := readEnvelope(t, ctx, conn)
	var ep protocol.ErrorPayload
	_ = errEnv.Decode(&ep)
	if errEnv.Type != protocol.MsgError || ep.Code != protocol.CodeUnknownType {
		t.Errorf("error = %+v / %+v", errEnv, ep)
	}
}

func TestServer_RateLimited(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, _, _ := newTestServer(t, ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1}))
	conn := dial(t, ctx, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEnvelope(t, ctx, conn) // session

	send(t, ctx, conn, protocol.MsgAsk, protocol.AskPayload{Text: "hello"})
	if env := readEnvelope(t, ctx, conn); env.Type != protocol.MsgReply {
		t.Fatalf("first ask = %+v", env)
	}

	send(t, ctx, conn, protocol.MsgAsk, protocol.AskPayload{Text: "hello again"})
	env := readEnvelope(t, ctx, conn)
	var ep protocol.ErrorPayload
	_ = env.Decode(&ep)
	if env.Type != protocol.MsgError || ep.Code != protocol.CodeRateLimited {
		t.Errorf("second ask = %+v / %+v", env, ep)
	}
}

func TestServer_SessionDroppedOnClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, sessions, metrics := newTestServer(t, nil)
	conn := dial(t, ctx, srv)
	readEnvelope(t, ctx, conn) // session
	if sessions.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", sessions.Len())
	}

	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(5 * time.Second)
	for sessions.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not dropped after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if n := metricsGauge(t, metrics); n != 0 {
		t.Errorf("ws connections gauge = %v, want 0", n)
	}
}

func metricsGauge(t *testing.T, m *observability.MetricsCollector) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "hundreds_ws_connections" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return -1
}
