// Package telegram serves the bot in Telegram chats using long polling
// or webhook mode.
//
// Every Telegram chat gets its own session from the shared store. /start
// resets it. Replies are Markdown and are converted to Telegram HTML.
// The bot token comes from TELEGRAM_BOT_TOKEN and is never logged.
package telegram

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/chat"
	"github.com/jkaninda/hundreds/internal/ratelimit"
)

const (
	defaultAPIBase     = "https://api.telegram.org"
	defaultPollTimeout = 30 * time.Second
	maxUpdateSize      = 256 << 10 // 256 KB
	maxMessageLen      = 4000      // Telegram allows 4096; keep a margin for HTML tags.
)

// Config configures the Telegram gateway.
type Config struct {
	BotToken     string
	WebhookURL   string        // If set, use webhook mode. If empty, use long polling.
	ListenAddr   string        // For webhook mode.
	AllowedUsers []int64       // Telegram user IDs allowed to chat. Empty = everyone.
	PollTimeout  time.Duration // 0 = 30s.
	APIBase      string        // Default: https://api.telegram.org.
}

func (c Config) pollTimeout() time.Duration {
	if c.PollTimeout > 0 {
		return c.PollTimeout
	}
	return defaultPollTimeout
}

func (c Config) apiBase() string {
	if c.APIBase != "" {
		return strings.TrimRight(c.APIBase, "/")
	}
	return defaultAPIBase
}

// Gateway is the Telegram gateway.
type Gateway struct {
	config     Config
	bot        chat.TurnHandler
	sessions   *chat.SessionStore
	greeting   string
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	httpClient *http.Client
	allowed    map[int64]bool

	mu     sync.Mutex
	chats  map[int64]uuid.UUID // Telegram chat → session.
	server *http.Server        // nil in polling mode
	cancel context.CancelFunc
}

// NewGateway creates a Telegram gateway. A nil limiter disables rate limiting.
func NewGateway(cfg Config, bot chat.TurnHandler, sessions *chat.SessionStore, greeting string, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	allowed := make(map[int64]bool, len(cfg.AllowedUsers))
	for _, uid := range cfg.AllowedUsers {
		allowed[uid] = true
	}
	return &Gateway{
		config:   cfg,
		bot:      bot,
		sessions: sessions,
		greeting: greeting,
		limiter:  rl,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: cfg.pollTimeout() + 10*time.Second,
		},
		allowed: allowed,
		chats:   make(map[int64]uuid.UUID),
	}
}

// Name identifies the gateway in logs.
func (g *Gateway) Name() string { return "telegram" }

// Start launches the gateway in webhook or long-polling mode and blocks.
func (g *Gateway) Start(ctx context.Context) error {
	if g.config.BotToken == "" {
		return fmt.Errorf("telegram bot token is not set (TELEGRAM_BOT_TOKEN)")
	}

	g.mu.Lock()
	ctx, g.cancel = context.WithCancel(ctx)
	g.mu.Unlock()

	if g.config.WebhookURL != "" {
		return g.startWebhook(ctx)
	}
	return g.startPolling(ctx)
}

// Stop gracefully shuts down the gateway.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	cancel, server := g.cancel, g.server
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if server != nil {
		g.logger.Info("telegram gateway stopping webhook server")
		return server.Shutdown(ctx)
	}
	g.logger.Info("telegram gateway stopping poller")
	return nil
}

// Evict forgets chats whose session has been evicted from the store, so
// the next message in that chat opens a fresh one.
func (g *Gateway) Evict(_ time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for chatID, id := range g.chats {
		if _, err := g.sessions.Get(id); err != nil {
			delete(g.chats, chatID)
			n++
		}
	}
	return n
}

// Len returns the number of chats with a live mapping.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.chats)
}

// --- Long Polling ---

func (g *Gateway) startPolling(ctx context.Context) error {
	g.logger.Info("telegram gateway starting long polling",
		slog.Duration("timeout", g.config.pollTimeout()),
	)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := g.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			g.logger.Error("telegram getUpdates failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			g.processUpdate(ctx, &u)
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
	}
}

func (g *Gateway) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	body, err := json.Marshal(map[string]any{
		"offset":          offset,
		"timeout":         int(g.config.pollTimeout().Seconds()),
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL("getUpdates"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool     `json:"ok"`
		Result []Update `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUpdateSize)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}
	return result.Result, nil
}

// --- Webhook ---

func (g *Gateway) startWebhook(ctx context.Context) error {
	// The path is derived from the token so only Telegram knows where to POST.
	secretPath := "/" + g.webhookSecret()

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+secretPath, g.handleWebhook)

	server := &http.Server{
		Addr:              g.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	g.mu.Lock()
	g.server = server
	g.mu.Unlock()

	g.callAPI(ctx, "setWebhook", map[string]any{
		"url":             strings.TrimRight(g.config.WebhookURL, "/") + secretPath,
		"allowed_updates": []string{"message"},
	})

	g.logger.Info("telegram gateway starting webhook",
		slog.String("addr", g.config.ListenAddr),
	)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var update Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&update); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	g.processUpdate(r.Context(), &update)
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) webhookSecret() string {
	h := sha256.Sum256([]byte(g.config.BotToken))
	return hex.EncodeToString(h[:16])
}

// --- Update Processing ---

func (g *Gateway) processUpdate(ctx context.Context, update *Update) {
	if update.Message != nil {
		g.handleMessage(ctx, update.Message)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if len(g.allowed) > 0 && !g.allowed[userID] {
		g.logger.Warn("telegram user not in allowlist", slog.Int64("telegram_user_id", userID))
		g.sendText(ctx, chatID, "Sorry, this bot is private.")
		return
	}

	if err := g.limiter.Allow(fmt.Sprintf("telegram:%d", chatID)); err != nil {
		g.sendText(ctx, chatID, "Too many questions. Please wait a moment before asking again.")
		return
	}

	correlationID := newCorrelationID()
	text := msg.Text

	if command, _, _ := strings.Cut(text, " "); command == "/start" || strings.HasPrefix(command, "/start@") {
		g.resetSession(chatID)
		g.sendMarkdown(ctx, chatID, g.greeting)
		return
	}

	sess := g.session(chatID)
	reply, ok := sess.Turn(ctx, g.bot, text)

	g.logger.Info("telegram message",
		slog.Int64("chat_id", chatID),
		slog.String("session_id", sess.ID.String()),
		slog.String("correlation_id", correlationID),
		slog.String("kind", string(reply.Kind)),
	)
	if ok {
		g.sendMarkdown(ctx, chatID, reply.Text)
	}
}

// session returns the chat's live session, opening one when the chat is new
// or its session was evicted.
func (g *Gateway) session(chatID int64) *chat.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.chats[chatID]; ok {
		if sess, err := g.sessions.Get(id); err == nil {
			return sess
		}
	}
	sess := g.sessions.Create()
	g.chats[chatID] = sess.ID
	return sess
}

func (g *Gateway) resetSession(chatID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.chats[chatID]; ok {
		g.sessions.Delete(id)
		delete(g.chats, chatID)
	}
}

// --- Sending ---

func (g *Gateway) sendMarkdown(ctx context.Context, chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		g.callAPI(ctx, "sendMessage", map[string]any{
			"chat_id":    chatID,
			"text":       markdownToTelegramHTML(chunk),
			"parse_mode": "HTML",
		})
	}
}

func (g *Gateway) sendText(ctx context.Context, chatID int64, text string) {
	g.callAPI(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

func (g *Gateway) callAPI(ctx context.Context, method string, params map[string]any) {
	body, err := json.Marshal(params)
	if err != nil {
		g.logger.Error("telegram marshal error", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL(method), bytes.NewReader(body))
	if err != nil {
		g.logger.Error("telegram request error", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("telegram api error",
			slog.String("method", method),
			slog.String("error", redact(err.Error(), g.config.BotToken)),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		g.logger.Error("telegram api non-200",
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
	}
}

func (g *Gateway) apiURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", g.config.apiBase(), g.config.BotToken, method)
}

// --- Types ---

// Update represents a Telegram Bot API update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// --- Helpers ---

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// redact hides the bot token, which net/http errors include in the URL.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// markdownToTelegramHTML converts the Markdown used in replies (**bold**
// and *italic*) to Telegram HTML. Everything else is escaped.
func markdownToTelegramHTML(text string) string {
	var out strings.Builder
	out.Grow(len(text) + 16)
	i := 0

	for i < len(text) {
		// Bold: **...**
		if strings.HasPrefix(text[i:], "**") {
			if end := strings.Index(text[i+2:], "**"); end > 0 {
				out.WriteString("<b>")
				out.WriteString(escapeHTML(text[i+2 : i+2+end]))
				out.WriteString("</b>")
				i += 2 + end + 2
				continue
			}
		}

		// Italic: *...* where neither star is part of a pair.
		if text[i] == '*' && !strings.HasPrefix(text[i:], "**") {
			if end := strings.IndexByte(text[i+1:], '*'); end > 0 {
				closeIdx := i + 1 + end
				if closeIdx+1 >= len(text) || text[closeIdx+1] != '*' {
					out.WriteString("<i>")
					out.WriteString(escapeHTML(text[i+1 : closeIdx]))
					out.WriteString("</i>")
					i = closeIdx + 1
					continue
				}
			}
		}

		switch text[i] {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		default:
			out.WriteByte(text[i])
		}
		i++
	}
	return out.String()
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring
// line then word boundaries.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > maxLen {
		candidate := text[:maxLen]
		splitAt := strings.LastIndex(candidate, "\n")
		if splitAt <= 0 {
			splitAt = strings.LastIndex(candidate, " ")
		}
		if splitAt <= 0 {
			splitAt = maxLen
		}
		chunks = append(chunks, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], "\n ")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
