package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagOutput  string
	flagVerbose bool

	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "webhookctl",
	Short: "Refund webhook operations CLI",
	Long: `webhookctl runs one-off operations against the webhook delivery store.

It reads the same environment as the server (DB_*, REDIS_*, WEBHOOK_*, AUTH_*)
and can trigger a retry sweep or retention run, publish notifications,
inspect events, issue API tokens and sign payloads for receiver debugging.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch flagOutput {
		case outputTable, outputJSON, outputYAML:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (table, json, yaml)", flagOutput)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputTable, "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(signCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "webhookctl version %s\n", version)
		fmt.Fprintf(stdout, "  Go:       %s\n", runtime.Version())
		fmt.Fprintf(stdout, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
