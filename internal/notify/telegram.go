package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramChannel sends notifications via the Telegram Bot API.
type TelegramChannel struct {
	cfg    config.TelegramNotifyConfig
	client *http.Client
}

func NewTelegram(cfg config.TelegramNotifyConfig) *TelegramChannel {
	return &TelegramChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (t *TelegramChannel) Name() string       { return "telegram" }
func (t *TelegramChannel) IsConfigured() bool { return t.cfg.BotToken != "" && t.cfg.ChatID != "" }

func (t *TelegramChannel) Send(ctx context.Context, evt Event) error {
	text := evt.Title + "\n\n" + evt.Body
	if evt.URL != "" {
		text += "\n" + evt.URL
	}
	// Telegram max message length is 4096 chars.
	if len(text) > 4096 {
		text = text[:4093] + "..."
	}
	b, err := json.Marshal(map[string]any{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	base := strings.TrimRight(t.cfg.APIBase, "/")
	if base == "" {
		base = defaultTelegramAPI
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.cfg.BotToken)
	return postJSON(ctx, t.client, url, b, nil, "telegram API")
}
