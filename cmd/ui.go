package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/reconctl/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui [job-id]",
	Short: "Launch the terminal UI",
	Long: `Opens the interactive terminal UI for submitting scans, following their
progress and browsing scan history. Pass a job id to open straight onto it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobID := ""
	if len(args) == 1 {
		jobID = args[0]
	}
	app := tui.NewApp(ctx, tui.Backend{
		Submitter: rt.submitter,
		History:   rt.history,
		Cache:     rt.cache,
		Manager:   rt.manager,
		BaseURL:   rt.client.BaseURL(),
	}, jobID)
	return app.Run()
}
