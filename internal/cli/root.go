package cli

import (
	"errors"
	"fmt"
	"os"

	"sysaura/internal/config"

	"github.com/spf13/cobra"
)

// cfgFile is the --config flag shared by every subcommand.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sysaura",
	Short: "Host telemetry collector with live WebSocket updates",
	Long: `sysaura samples CPU, memory, disk and network usage, keeps a rolling
history, raises threshold alerts and pushes snapshots to subscribed
WebSocket clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./"+config.FileName+")")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", cfgErr.Message)
			if cfgErr.Cause != nil {
				fmt.Fprintf(os.Stderr, "  cause: %v\n", cfgErr.Cause)
			}
			if cfgErr.Suggestion != "" {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", cfgErr.Suggestion)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
