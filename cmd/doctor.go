package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/database"
	"github.com/CosmoTheDev/reconctl/internal/notify"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/internal/scheduler"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify the recon service, local cache and notifications",
	Long: `Checks that the recon service answers its health endpoint, that the local
cache database can be opened and migrated, which notification channels are
configured and that every configured schedule parses.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== reconctl doctor ===")
	fmt.Println()

	fmt.Print("Recon service ............ ")
	client := reconapi.New(cfg.API)
	if h, err := client.Health(ctx); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%s: %s)\n", client.BaseURL(), h.Status)
	}

	fmt.Print("Local cache .............. ")
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			where := cfg.Database.Path
			if db.Driver() == "mysql" {
				where = "dsn"
			}
			fmt.Printf("OK (%s: %s)\n", db.Driver(), where)
		}
		_ = db.Close()
	}

	fmt.Print("Poll settings ............ ")
	fmt.Printf("every %s, timeout %s, give up after %d failures\n",
		cfg.Poll.Interval, cfg.Poll.FetchTimeout, cfg.Poll.MaxFailures)

	fmt.Print("Notifications ............ ")
	d := notify.NewDispatcher(cfg.Notify)
	if !d.IsAnyConfigured() {
		fmt.Println("none configured (optional)")
	} else {
		fmt.Printf("OK (%s)\n", strings.Join(d.Channels(), ", "))
	}

	if len(cfg.Schedules) > 0 {
		fmt.Println()
		fmt.Println("Schedules:")
		for _, sc := range cfg.Schedules {
			fmt.Printf("  %-14s ... ", sc.Name)
			switch next, err := scheduler.NextRun(sc.Expr, time.Now()); {
			case err != nil:
				fmt.Printf("INVALID (%s)\n", err)
				allOK = false
			case strings.TrimSpace(sc.Domain) == "":
				fmt.Println("INVALID (no domain)")
				allOK = false
			default:
				fmt.Printf("OK (%s, next %s)\n", sc.Domain, next.Local().Format(time.DateTime))
			}
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, reconctl is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Run 'reconctl config edit-ui' to fix."))
	}
	return nil
}
