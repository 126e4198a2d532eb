package config

import "time"

// Config is the root configuration structure for reconctl.
// Serialised to ~/.reconctl/config.json.
type Config struct {
	API       APIConfig        `mapstructure:"api"       json:"api"`
	Poll      PollConfig       `mapstructure:"poll"      json:"poll"`
	Database  DatabaseConfig   `mapstructure:"database"  json:"database"`
	Notify    NotifyConfig     `mapstructure:"notify"    json:"notify"`
	Schedules []ScheduleConfig `mapstructure:"schedules" json:"schedules"`
}

// APIConfig points reconctl at the recon service.
type APIConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8000.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Timeout bounds every request that is not a status poll.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// RateLimit caps outgoing requests per second across all sessions. 0 disables.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" json:"rate_burst"`
}

// PollConfig controls status polling sessions.
type PollConfig struct {
	// Interval is measured from the completion of one fetch to the start of the next.
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	// FetchTimeout bounds a single status fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout"`
	// MaxFailures is the consecutive failure count that stops a session.
	MaxFailures int `mapstructure:"max_failures" json:"max_failures"`
	// Backoff stretches the interval exponentially while fetches keep failing.
	Backoff     bool          `mapstructure:"backoff"      json:"backoff"`
	MaxInterval time.Duration `mapstructure:"max_interval" json:"max_interval"`
}

// DatabaseConfig controls the local result cache.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// NotifyConfig selects which scan events are sent and where.
type NotifyConfig struct {
	// Events filters event types; empty means the defaults.
	Events  []string            `mapstructure:"events"  json:"events"`
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
}

// SlackNotifyConfig holds a Slack incoming webhook.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// TelegramNotifyConfig sends messages through a Telegram bot.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
	// APIBase overrides https://api.telegram.org, e.g. for a local Bot API server.
	APIBase string `mapstructure:"api_base" json:"api_base,omitempty"`
}

// WebhookNotifyConfig posts events to a generic endpoint, optionally signed.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"`
}

// ScheduleConfig submits a recurring scan.
type ScheduleConfig struct {
	Name      string   `mapstructure:"name"       json:"name"`
	Expr      string   `mapstructure:"expr"       json:"expr"` // robfig/cron expression, e.g. "@every 6h"
	Domain    string   `mapstructure:"domain"     json:"domain"`
	ScanTypes []string `mapstructure:"scan_types" json:"scan_types"`
}
