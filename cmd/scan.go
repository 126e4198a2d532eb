package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/notify"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/internal/tui"
)

var (
	scanDomain    string
	scanTypes     []string
	scanWatch     bool
	scanOutputFmt string
)

var scanCmd = &cobra.Command{
	Use:   "scan [domain]",
	Short: "Submit a reconnaissance scan for a domain",
	Long: `Submits a scan to the recon service and prints the job id. With --watch
the scan is followed until it completes or fails and the result is printed.
Without a domain an interactive form is shown.

Examples:
  reconctl scan example.com
  reconctl scan --domain example.com --scan-types subdomains,ports
  reconctl scan example.com --watch --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanDomain, "domain", "", "Domain to scan")
	scanCmd.Flags().StringSliceVar(&scanTypes, "scan-types", nil,
		"Comma-separated scan types: all|subdomains|ports|osint (default: service default)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Follow the scan until it finishes")
	scanCmd.Flags().StringVarP(&scanOutputFmt, "output", "o", "text", "Output format when watching: text|json|yaml")
}

func runScan(cmd *cobra.Command, args []string) error {
	if _, err := render.ParseFormat(scanOutputFmt); err != nil {
		return err
	}
	domain := scanDomain
	if domain == "" && len(args) == 1 {
		domain = args[0]
	}
	types := scanTypes
	if strings.TrimSpace(domain) == "" {
		types = []string{"all"}
		if err := tui.NewScanForm(&domain, &types).Run(); err != nil {
			return fmt.Errorf("scan form: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	job, err := submitScan(ctx, rt, domain, types)
	if err != nil {
		return err
	}
	domain = strings.TrimSpace(domain)

	if len(types) == 0 {
		types = reconapi.DefaultScanTypes
	}
	fmt.Fprintf(os.Stderr, "Submitted scan %s for %s (%s)\n", job.ID, domain, strings.Join(types, ", "))
	if !scanWatch {
		fmt.Println(job.ID)
		return nil
	}
	return followJob(ctx, rt, job.ID, os.Stdout, os.Stderr, scanOutputFmt)
}

// submitScan submits domain and announces the new job. The submitter logs it.
func submitScan(ctx context.Context, rt *runtime, domain string, types []string) (*reconapi.JobHandle, error) {
	sctx, cancel := context.WithTimeout(ctx, rt.cfg.API.Timeout+5*time.Second)
	defer cancel()
	job, err := rt.submitter.Submit(sctx, domain, types)
	if err != nil {
		return nil, err
	}
	rt.notifier.Notify(ctx, notify.ScanSubmitted(job.ID, strings.TrimSpace(domain), "cli"))
	return job, nil
}
