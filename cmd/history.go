package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/reconctl/internal/jobs"
	"github.com/CosmoTheDev/reconctl/internal/render"
)

var (
	historyLocal       bool
	historySubmissions bool
	historyOutputFmt   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past scans, newest first",
	Long: `Lists scans known to the recon service. With --local the list comes from
the local cache of finished scans instead, which works offline.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "List finished scans from the local cache")
	historyCmd.Flags().BoolVar(&historySubmissions, "submissions", false, "List scans submitted from this machine")
	historyCmd.Flags().StringVarP(&historyOutputFmt, "output", "o", "text", "Output format: text|json|yaml")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(historyOutputFmt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if historySubmissions {
		if rt.cache == nil {
			return fmt.Errorf("local cache is not available (database.driver=%s)", rt.cfg.Database.Driver)
		}
		subs, err := rt.cache.Submissions(ctx)
		if err != nil {
			return err
		}
		return printSubmissions(subs, format)
	}

	var rows []jobs.Summary
	if historyLocal {
		if rt.cache == nil {
			return fmt.Errorf("local cache is not available (database.driver=%s)", rt.cfg.Database.Driver)
		}
		rows, err = rt.cache.ListLocal(ctx)
	} else {
		rows, err = rt.history.List(ctx)
	}
	if err != nil {
		return err
	}

	switch format {
	case render.FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case render.FormatYAML:
		return yaml.NewEncoder(os.Stdout).Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println(jobs.NoScans)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tDATE\tSTATUS\tRESULT OVERVIEW")
	for _, r := range rows {
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Domain, created, r.Status, r.Overview())
	}
	return w.Flush()
}

func printSubmissions(subs []jobs.Submission, format string) error {
	switch format {
	case render.FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(subs)
	case render.FormatYAML:
		return yaml.NewEncoder(os.Stdout).Encode(subs)
	}
	if len(subs) == 0 {
		fmt.Println("No submissions recorded.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tSCAN TYPES\tSOURCE\tSUBMITTED")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.JobID, s.Domain, strings.Join(s.ScanTypes, ","), s.Source,
			s.SubmittedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
