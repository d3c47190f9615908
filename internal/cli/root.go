package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/salexandr0s/scry/internal/buildinfo"
	"github.com/salexandr0s/scry/internal/debug"
)

const (
	// ANSI color codes
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"

	styleBoldCyan  = "\033[1;36m"
	styleBoldWhite = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "scry",
	Short: "Live activity-graph mirror for agent gateways",
	Long: styleBoldCyan + `scry` + colorReset + ` v` + buildinfo.Current().Version + `

  Mirror a remote agent-orchestration gateway's event stream into a bounded,
  queryable activity graph. The daemon owns the gateway connection and its
  credentials; local clients read redacted snapshots and deltas only.

` + colorBold + `Getting Started:` + colorReset + `
  scry run                        Start the mirror daemon and relay
  scry status                     Show mirror connection status
  scry snapshot                   Print the current activity graph
`,
	Version:       buildinfo.Current().Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.scry/debug/")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.scry/config.toml)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		debug.LogKV("cli", "scry starting",
			"version", buildinfo.Current().Version,
			"pid", os.Getpid(),
			"command", cmd.Name(),
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
