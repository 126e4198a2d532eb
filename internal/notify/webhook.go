package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when a secret is set.
const SignatureHeader = "X-Reconctl-Signature"

// WebhookChannel sends notifications to a generic HTTP endpoint with optional
// HMAC-SHA256 signing.
type WebhookChannel struct {
	cfg    config.WebhookNotifyConfig
	client *http.Client
}

func NewWebhook(cfg config.WebhookNotifyConfig) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *WebhookChannel) Name() string       { return "webhook" }
func (w *WebhookChannel) IsConfigured() bool { return w.cfg.URL != "" }

func (w *WebhookChannel) Send(ctx context.Context, evt Event) error {
	payload := map[string]any{
		"type":     evt.Type,
		"title":    evt.Title,
		"body":     evt.Body,
		"job_id":   evt.JobID,
		"domain":   evt.Domain,
		"status":   evt.Status,
		"url":      evt.URL,
		"metadata": evt.Metadata,
		"ts":       time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var headers map[string]string
	if w.cfg.Secret != "" {
		headers = map[string]string{SignatureHeader: "sha256=" + Sign(w.cfg.Secret, b)}
	}
	return postJSON(ctx, w.client, w.cfg.URL, b, headers, "webhook")
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

