package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CrazyForks/waylog-cli/internal"
)

var (
	verbose     bool
	projectFlag string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"

	// exit code mirrored from a wrapped vendor process
	wrappedExitCode int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "waylog",
	Short: "Capture and archive AI assistant CLI sessions",
	Long: `waylog keeps a project-scoped markdown archive of your AI assistant
CLI sessions.

It works two ways:
  • waylog run <provider>   wraps the vendor tool transparently and streams
    the live transcript into .waylog/history/
  • waylog pull             discovers historical sessions in the vendors'
    own stores and imports them, idempotently

Supported providers: claude, codex, gemini, cursor.

All state lives in your project: .waylog/history/*.md plus one small
state.json ledger. Vendor stores are never modified.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if wrappedExitCode != 0 {
		os.Exit(wrappedExitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project directory (defaults to the working directory)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// projectDir resolves the project the invocation is attributed to.
func projectDir() (string, error) {
	dir := projectFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	return abs, nil
}
