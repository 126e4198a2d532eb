package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/models"
)

var (
	watchOutputFmt string
	watchLogDir    string
	watchLogFile   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a scan until it completes or fails",
	Long: `Polls the status of an existing scan every poll.interval and prints the
result once the scan completes or fails. Status changes are printed as they
arrive. Press Ctrl+C to stop following; the scan keeps running remotely.

Examples:
  reconctl watch 3f2b9c
  reconctl watch 3f2b9c --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFmt, "output", "o", "text", "Output format: text|json|yaml")
	watchCmd.Flags().BoolVar(&watchLogFile, "log-file", false, "Also write logs under --log-dir")
	watchCmd.Flags().StringVar(&watchLogDir, "log-dir", "logs", "Directory for log files when --log-file is set")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if _, err := render.ParseFormat(watchOutputFmt); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchLogFile {
		path, closeLog, err := setupFileLogger(watchLogDir, "watch")
		if err != nil {
			return fmt.Errorf("initialising logger: %w", err)
		}
		defer closeLog()
		slog.Info("watch logger initialised", "file", path)
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return followJob(ctx, rt, args[0], os.Stdout, os.Stderr, watchOutputFmt)
}

// followJob polls jobID until the session stops, printing status changes to
// progress and the final report to out.
func followJob(ctx context.Context, rt *runtime, jobID string, out, progress io.Writer, format string) error {
	st := rt.manager.Store(jobID)

	// Subscribers run under the session lock; only signal here.
	updates := make(chan struct{}, 1)
	unsub := st.Subscribe(func(*models.Scan) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsub()

	cached := rt.seedFromCache(ctx, jobID)
	sess, err := rt.manager.Start(ctx, jobID)
	if err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}

	slog.Debug("Following job", "job_id", jobID, "session", sess.ID(), "cached", cached)
	if cached {
		fmt.Fprintf(progress, "Scan %s loaded from the local cache\n", jobID)
	} else {
		fmt.Fprintf(progress, "Following scan %s (every %s)\n", jobID, rt.cfg.Poll.Interval)
	}
	var lastStatus models.Status
	report := func() {
		snap := st.Current()
		if snap == nil || snap.Status == lastStatus {
			return
		}
		lastStatus = snap.Status
		line := fmt.Sprintf("  %s  %s", snap.Domain, snap.Status)
		if !snap.Terminal() {
			line += "  " + render.InProgress
		}
		fmt.Fprintln(progress, line)
	}

	for running := true; running; {
		select {
		case <-updates:
			report()
		case <-sess.Done():
			report()
			running = false
		}
	}

	reason, err := sess.Wait(context.WithoutCancel(ctx))
	snap := st.Current()
	switch reason {
	case poller.StopTerminal:
		if !cached {
			rt.finish(context.WithoutCancel(ctx), snap)
		}
		if snap.Status == models.StatusFailed {
			fmt.Fprintln(progress, failStyle.Render("Scan failed."))
		} else {
			fmt.Fprintln(progress, successStyle.Render("Scan completed."))
		}
		return render.Encode(out, render.Render(snap), format)
	case poller.StopDegraded:
		return fmt.Errorf("lost track of scan %s: %w", jobID, err)
	default:
		fmt.Fprintln(progress, warnStyle.Render("Stopped following; the scan continues remotely."))
		fmt.Fprintf(progress, "Resume with: reconctl watch %s\n", jobID)
		if snap != nil {
			return render.Encode(out, render.Render(snap), format)
		}
		return nil
	}
}
