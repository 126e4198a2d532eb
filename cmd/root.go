package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reconctl",
	Short: "Submit and follow domain reconnaissance scans",
	Long: `reconctl is a client for the recon scanning service. It submits scans
for a domain, polls their status until they finish and renders the results:
subdomains, open ports, technologies, screenshots, directories and known
vulnerabilities.

Get started:
  reconctl doctor              Check the service and local cache
  reconctl scan example.com    Submit a scan and follow it
  reconctl watch <job-id>      Follow an existing scan
  reconctl history             List past scans
  reconctl ui                  Launch the terminal UI
  reconctl schedule run        Run configured recurring scans`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.reconctl/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		scanCmd,
		watchCmd,
		historyCmd,
		uiCmd,
		scheduleCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
