package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage reconctl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redact(cfg)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

// redact masks credentials before the config is printed.
func redact(cfg *config.Config) {
	if cfg.Notify.Telegram.BotToken != "" {
		cfg.Notify.Telegram.BotToken = "tg-***"
	}
	if cfg.Notify.Webhook.Secret != "" {
		cfg.Notify.Webhook.Secret = "***"
	}
	if cfg.Notify.Slack.WebhookURL != "" {
		cfg.Notify.Slack.WebhookURL = "https://hooks.slack.com/***"
	}
	if cfg.Database.DSN != "" {
		cfg.Database.DSN = "***"
	}
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			// Seed the file with defaults so there is something to edit.
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := config.Save(cfg, p); err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configEditCmd, configUICmd)
}
