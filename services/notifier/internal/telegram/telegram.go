package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Client sends messages through the Telegram bot API.
type Client struct {
	token  string
	chatID string
	http   *http.Client
}

// NewClient builds a client. Configured reports false when credentials are
// absent, in which case callers should log instead of sending.
func NewClient(token, chatID string, httpClient *http.Client) *Client {
	return &Client{token: token, chatID: chatID, http: httpClient}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.token != "" && c.chatID != ""
}

// Send delivers one message. The outcome is always returned to the caller;
// delivery failures are never swallowed.
func (c *Client) Send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.token)
	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram answered %s", resp.Status)
	}
	return nil
}
