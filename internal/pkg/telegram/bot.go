package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

type Bot struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
}

func NewBot(token, chatID string) *Bot {
	return &Bot{
		token:   token,
		chatID:  chatID,
		baseURL: defaultAPIURL + "/bot" + token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIURL points the bot at another Bot API host.
func (b *Bot) WithAPIURL(apiURL string) *Bot {
	b.baseURL = strings.TrimRight(apiURL, "/") + "/bot" + b.token
	return b
}

func (b *Bot) Enabled() bool {
	return b != nil && b.token != "" && b.chatID != ""
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	if !b.Enabled() {
		return nil
	}
	return b.SendMessage(ctx, b.chatID, text)
}

func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	endpoint := b.baseURL + "/sendMessage"

	params := url.Values{}
	params.Add("chat_id", chatID)
	params.Add("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	return nil
}
