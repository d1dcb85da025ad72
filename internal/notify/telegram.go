// Package notify delivers best-effort operator notifications about visitors.
// Failures are logged by callers and never affect the redirect outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends a formatted text message to the operator channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TelegramClient implements Notifier against the Telegram bot API.
type TelegramClient struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
	chatID     string
}

// TelegramOption customizes a TelegramClient.
type TelegramOption func(*TelegramClient)

// WithAPIBase overrides the API endpoint, mainly for tests.
func WithAPIBase(apiBase string) TelegramOption {
	return func(c *TelegramClient) {
		c.apiBase = apiBase
	}
}

// NewTelegramClient creates a notifier for the given bot and chat.
func NewTelegramClient(botToken, chatID string, timeout time.Duration, opts ...TelegramOption) *TelegramClient {
	c := &TelegramClient{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    defaultAPIBase,
		botToken:   botToken,
		chatID:     chatID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts the message to the configured chat.
func (c *TelegramClient) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    c.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send notification: unexpected status %d", resp.StatusCode)
	}

	return nil
}
