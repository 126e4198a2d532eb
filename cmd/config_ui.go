package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/notify"
	"github.com/CosmoTheDev/reconctl/internal/scheduler"
)

var (
	configHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#14B8A6"))
	configSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	configSectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1).MarginBottom(1)
	configDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var configUICmd = &cobra.Command{
	Use:   "edit-ui",
	Short: "Interactive configuration editor",
	Long: `Launches an interactive form to configure reconctl.

Sections:
  - Service: base URL, request timeout, rate limit
  - Polling: interval, fetch timeout, failure threshold, backoff
  - Database: SQLite path or MySQL DSN for the local cache
  - Notify: Slack, Telegram and webhook settings
  - Schedules: add a recurring scan
`,
	RunE: runConfigUI,
}

func runConfigUI(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(configHeaderStyle.Render("  reconctl · Configuration Editor"))
	fmt.Println(configDimStyle.Render("  Pick a section • Edit values • Save when done\n"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	selected := "api"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Configuration Section").
				Description("Select a section to edit").
				Options(
					huh.NewOption("Service", "api"),
					huh.NewOption("Polling", "poll"),
					huh.NewOption("Database", "database"),
					huh.NewOption("Notifications", "notify"),
					huh.NewOption("Schedules", "schedules"),
				).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	return runSectionEditor(cfg, selected)
}

func runSectionEditor(cfg *config.Config, section string) error {
	for {
		var updated bool
		var err error
		switch section {
		case "api":
			updated, err = editAPISettings(cfg)
		case "poll":
			updated, err = editPollSettings(cfg)
		case "database":
			updated, err = editDatabaseSettings(cfg)
		case "notify":
			updated, err = editNotifySettings(cfg)
		case "schedules":
			updated, err = addSchedule(cfg)
		default:
			return fmt.Errorf("unknown section: %s", section)
		}
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}

		saveConfirm := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save changes?").
					Description("Choose No to edit the section again").
					Value(&saveConfirm),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
		if saveConfirm {
			configPath, err := config.ConfigPath(cfgFile)
			if err != nil {
				return fmt.Errorf("getting config path: %w", err)
			}
			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Println(configSuccessStyle.Render("  ✓ Configuration saved"))
			return nil
		}
	}
}

func editAPISettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Service"))

	baseURL := cfg.API.BaseURL
	timeoutStr := cfg.API.Timeout.String()
	rateStr := fmt.Sprintf("%g", cfg.API.RateLimit)
	burstStr := fmt.Sprintf("%d", cfg.API.RateBurst)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Placeholder(config.DefaultBaseURL).
				Value(&baseURL),
			huh.NewInput().
				Title("Request Timeout").
				Description("Go duration, e.g. 15s").
				Value(&timeoutStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Rate Limit").
				Description("Requests per second across all polls (0 disables)").
				Value(&rateStr),
			huh.NewInput().
				Title("Rate Burst").
				Value(&burstStr),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	cfg.API.Timeout = parseDurationOrDefault(timeoutStr, cfg.API.Timeout)
	cfg.API.RateLimit = parseFloatOrZero(rateStr)
	cfg.API.RateBurst = parseIntOrDefault(burstStr, cfg.API.RateBurst)
	return true, nil
}

func editPollSettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Polling"))

	intervalStr := cfg.Poll.Interval.String()
	fetchTimeoutStr := cfg.Poll.FetchTimeout.String()
	maxFailuresStr := fmt.Sprintf("%d", cfg.Poll.MaxFailures)
	useBackoff := cfg.Poll.Backoff
	maxIntervalStr := cfg.Poll.MaxInterval.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Interval").
				Description("Delay between the end of one status check and the next").
				Value(&intervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Fetch Timeout").
				Value(&fetchTimeoutStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Max Consecutive Failures").
				Description("Polling stops and reports after this many failed checks in a row").
				Value(&maxFailuresStr),
			huh.NewConfirm().
				Title("Back off while failing?").
				Value(&useBackoff),
			huh.NewInput().
				Title("Max Interval").
				Description("Upper bound for the backoff delay").
				Value(&maxIntervalStr).
				Validate(validateDuration),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Poll.Interval = parseDurationOrDefault(intervalStr, config.DefaultPollInterval)
	cfg.Poll.FetchTimeout = parseDurationOrDefault(fetchTimeoutStr, cfg.Poll.FetchTimeout)
	cfg.Poll.MaxFailures = parseIntOrDefault(maxFailuresStr, config.DefaultMaxFailures)
	cfg.Poll.Backoff = useBackoff
	cfg.Poll.MaxInterval = parseDurationOrDefault(maxIntervalStr, cfg.Poll.MaxInterval)
	return true, nil
}

func editDatabaseSettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Database"))

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	path := cfg.Database.Path
	dsn := cfg.Database.DSN

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Driver").
				Options(
					huh.NewOption("SQLite (local file)", "sqlite"),
					huh.NewOption("MySQL", "mysql"),
				).
				Value(&driver),
			huh.NewInput().
				Title("SQLite Path").
				Placeholder("~/.reconctl/reconctl.db").
				Value(&path),
			huh.NewInput().
				Title("MySQL DSN").
				Placeholder("user:pass@tcp(localhost:3306)/reconctl").
				EchoMode(huh.EchoModePassword).
				Value(&dsn),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Database.Driver = driver
	cfg.Database.Path = strings.TrimSpace(path)
	cfg.Database.DSN = strings.TrimSpace(dsn)
	return true, nil
}

func editNotifySettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Notification Settings"))

	slackURL := cfg.Notify.Slack.WebhookURL
	telegramBotToken := cfg.Notify.Telegram.BotToken
	telegramChatID := cfg.Notify.Telegram.ChatID
	webhookURL := cfg.Notify.Webhook.URL
	webhookSecret := cfg.Notify.Webhook.Secret
	events := cfg.Notify.Events

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Slack Webhook URL").
				Placeholder("https://hooks.slack.com/...").
				Value(&slackURL),
			huh.NewInput().
				Title("Telegram Bot Token").
				EchoMode(huh.EchoModePassword).
				Value(&telegramBotToken),
			huh.NewInput().
				Title("Telegram Chat ID").
				Value(&telegramChatID),
			huh.NewInput().
				Title("Webhook URL").
				Placeholder("https://your-endpoint.com/webhook").
				Value(&webhookURL),
			huh.NewInput().
				Title("Webhook Secret").
				Placeholder("HMAC signing key").
				EchoMode(huh.EchoModePassword).
				Value(&webhookSecret),
			huh.NewMultiSelect[string]().
				Title("Events").
				Description("Nothing selected means completed, failed and lost-track events").
				Options(
					huh.NewOption("Scan submitted", notify.EventScanSubmitted),
					huh.NewOption("Scan completed", notify.EventScanCompleted),
					huh.NewOption("Scan failed", notify.EventScanFailed),
					huh.NewOption("Polling degraded", notify.EventPollDegraded),
				).
				Value(&events),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Notify.Slack.WebhookURL = strings.TrimSpace(slackURL)
	cfg.Notify.Telegram.BotToken = strings.TrimSpace(telegramBotToken)
	cfg.Notify.Telegram.ChatID = strings.TrimSpace(telegramChatID)
	cfg.Notify.Webhook.URL = strings.TrimSpace(webhookURL)
	cfg.Notify.Webhook.Secret = webhookSecret
	cfg.Notify.Events = events
	return true, nil
}

func addSchedule(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Add Schedule"))
	for _, sc := range cfg.Schedules {
		fmt.Println(configDimStyle.Render(fmt.Sprintf("  %s  %s  %s", sc.Name, sc.Expr, sc.Domain)))
	}

	var name, expr, domain, typesStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("nightly").
				Value(&name),
			huh.NewInput().
				Title("Cron Expression").
				Placeholder("0 2 * * *  or  @every 6h").
				Value(&expr).
				Validate(scheduler.Validate),
			huh.NewInput().
				Title("Domain").
				Placeholder("example.com").
				Value(&domain),
			huh.NewInput().
				Title("Scan Types").
				Description("Comma-separated: all, subdomains, ports, osint").
				Value(&typesStr),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return upsertSchedule(cfg, config.ScheduleConfig{
		Name:      strings.TrimSpace(name),
		Expr:      strings.TrimSpace(expr),
		Domain:    strings.TrimSpace(domain),
		ScanTypes: parseCommaList(typesStr),
	}), nil
}

// upsertSchedule replaces a schedule with the same name or appends sc.
// Incomplete entries are ignored.
func upsertSchedule(cfg *config.Config, sc config.ScheduleConfig) bool {
	if sc.Name == "" || sc.Domain == "" || sc.Expr == "" {
		return false
	}
	for i := range cfg.Schedules {
		if cfg.Schedules[i].Name == sc.Name {
			cfg.Schedules[i] = sc
			return true
		}
	}
	cfg.Schedules = append(cfg.Schedules, sc)
	return true
}

func validateDuration(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := time.ParseDuration(strings.TrimSpace(s))
	return err
}

func parseCommaList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	if err != nil {
		return 0
	}
	return f
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return def
	}
	return i
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
