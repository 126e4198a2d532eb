package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/scheduler"
)

var scheduleLogDir string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run recurring scans from the schedules config section",
	Long: `Recurring scans are configured under "schedules" in the config file:

  "schedules": [
    {"name": "nightly", "expr": "0 2 * * *", "domain": "example.com", "scan_types": ["all"]}
  ]

Expressions use standard cron syntax plus descriptors such as "@every 6h"
or "@daily". Finished scans are cached locally and notifications are sent
to the configured channels.`,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler in the foreground until interrupted",
	RunE:  runScheduleRun,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules and their next run",
	RunE:  runScheduleList,
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger <name>",
	Short: "Run one schedule now and wait for the scan to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleTrigger,
}

func init() {
	scheduleRunCmd.Flags().StringVar(&scheduleLogDir, "log-dir", "logs",
		"directory to write scheduler logs for later inspection")
	scheduleCmd.AddCommand(scheduleRunCmd, scheduleListCmd, scheduleTriggerCmd)
}

func newScheduler(rt *runtime) *scheduler.Scheduler {
	return scheduler.New(rt.submitter, rt.manager, func(ctx context.Context, sc config.ScheduleConfig, s *poller.Session) {
		snap := s.Store().Current()
		if s.StopReason() == poller.StopTerminal {
			rt.finish(ctx, snap)
		}
		// Drop the session record; the cached result outlives it.
		rt.manager.Forget(s.JobID())
	})
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFilePath, closeLog, err := setupFileLogger(scheduleLogDir, "schedule")
	if err != nil {
		return fmt.Errorf("initialising scheduler logger: %w", err)
	}
	defer closeLog()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sched := newScheduler(rt)
	n := sched.Start(ctx, rt.cfg.Schedules)
	if n == 0 {
		sched.Stop()
		return fmt.Errorf("no valid schedules configured (see 'reconctl schedule --help')")
	}

	fmt.Printf("reconctl scheduler starting\n")
	fmt.Printf("  Service    : %s\n", rt.client.BaseURL())
	fmt.Printf("  Schedules  : %d\n", n)
	fmt.Printf("  Notify     : %v\n", rt.notifier.Channels())
	fmt.Printf("  Logs       : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	slog.Info("scheduler logger initialised", "file", logFilePath)

	<-ctx.Done()
	fmt.Println("\nShutting down scheduler gracefully...")
	// Running firings are blocked on their sessions; stop those first.
	rt.manager.StopAll()
	sched.Stop()
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Schedules) == 0 {
		fmt.Println("No schedules configured.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEXPR\tDOMAIN\tNEXT RUN")
	for _, sc := range cfg.Schedules {
		next := "-"
		if t, err := scheduler.NextRun(sc.Expr, now); err != nil {
			next = failStyle.Render("invalid: " + err.Error())
		} else {
			next = t.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sc.Name, sc.Expr, sc.Domain, next)
	}
	return w.Flush()
}

func runScheduleTrigger(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sched := newScheduler(rt)
	for _, sc := range rt.cfg.Schedules {
		if sc.Name == args[0] {
			if err := sched.Add(sc); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Triggering %s...\n", args[0])
	jobID, err := sched.TriggerNow(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Scan " + jobID + " finished."))
	return nil
}
