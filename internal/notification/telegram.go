package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender sends notifications with the Telegram Bot API.
// It uses the same bot token as the Telegram gateway.
type TelegramSender struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramSender creates a Telegram notification sender.
func NewTelegramSender(botToken string, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{
		botToken:   botToken,
		apiBase:    telegramAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (s *TelegramSender) Type() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, ch Channel, msg *Message) error {
	if s.botToken == "" {
		return fmt.Errorf("telegram channel %q: TELEGRAM_BOT_TOKEN is not set", ch.Name)
	}
	chatID := ch.Config["chat_id"]
	if chatID == "" {
		return fmt.Errorf("telegram channel %q missing chat_id in config", ch.Name)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(msg.Subject), text)
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %s", strings.ReplaceAll(err.Error(), s.botToken, "<token>"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// escapeMarkdown escapes the characters Telegram Markdown v1 treats as markup.
func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`").Replace(s)
}
