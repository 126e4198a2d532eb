package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

// SlackChannel sends notifications to a Slack incoming webhook URL.
type SlackChannel struct {
	cfg    config.SlackNotifyConfig
	client *http.Client
}

func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.WebhookURL != "" }

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	attachment := map[string]any{
		"color":  eventColor(evt.Type),
		"title":  evt.Title,
		"text":   evt.Body,
		"footer": "reconctl · " + evt.JobID,
		"ts":     time.Now().Unix(),
	}
	if evt.URL != "" {
		attachment["title_link"] = evt.URL
	}
	payload := map[string]any{
		"text":        evt.Title,
		"attachments": []map[string]any{attachment},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return postJSON(ctx, s.client, s.cfg.WebhookURL, b, nil, "slack webhook")
}

func eventColor(eventType string) string {
	switch eventType {
	case EventScanCompleted:
		return "#2EB67D"
	case EventScanFailed:
		return "#E01E5A"
	case EventPollDegraded:
		return "#ECB22E"
	default:
		return "#888888"
	}
}

// postJSON posts body and treats any non-2xx status as an error.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string, what string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req) // #nosec G107 -- URL is user-configured
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d", what, resp.StatusCode)
	}
	return nil
}
