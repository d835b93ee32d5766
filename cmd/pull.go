package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/syncer"
)

var (
	pullProvider   string
	pullForce      bool
	pullResetState bool
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import historical sessions from the vendors' stores",
	Long: `Pull scans the session stores of every installed provider, converts
each session that belongs to this project into a markdown archive under
.waylog/history/, and records it in the sync ledger.

Pull is idempotent: sessions already imported with unchanged content are
skipped, and re-running it on an unchanged machine imports nothing. A
session whose vendor store copy grew since the last pull is re-imported
over the same archive file.

Examples:
  waylog pull
  waylog pull --provider codex
  waylog pull --force`,
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().StringVarP(&pullProvider, "provider", "p", "", "Only pull from one provider (claude, codex, gemini, cursor)")
	pullCmd.Flags().BoolVarP(&pullForce, "force", "f", false, "Re-import sessions even when the ledger says they are current")
	pullCmd.Flags().BoolVar(&pullResetState, "reset-state", false, "Discard the sync ledger before pulling")
}

func runPull(cmd *cobra.Command, args []string) error {
	project, err := projectDir()
	if err != nil {
		return err
	}

	statePath := internal.StatePath(project)
	if pullResetState {
		if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to discard sync ledger: %w", err)
		}
		internal.LogInfo("sync ledger discarded: %s", statePath)
	}

	store, err := internal.LoadStateStore(statePath)
	if err != nil {
		return err
	}

	var providers []internal.Provider
	if pullProvider != "" {
		p, err := internal.ProviderByName(pullProvider)
		if err != nil {
			return err
		}
		providers = []internal.Provider{p}
	} else {
		providers = internal.Providers()
	}

	stats, err := syncer.New(project, store, pullForce).PullAll(context.Background(), providers)
	printPullStats(stats)
	if err != nil {
		return fmt.Errorf("pull finished with errors: %w", err)
	}
	return nil
}

func printPullStats(stats syncer.Stats) {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	fmt.Printf("%s  %s",
		okStyle.Render(fmt.Sprintf("✅ %d imported", stats.Imported)),
		dimStyle.Render(fmt.Sprintf("• %d up to date", stats.Skipped)))
	if stats.Failed > 0 {
		fmt.Printf("  %s", errStyle.Render(fmt.Sprintf("• %d failed", stats.Failed)))
	}
	fmt.Println()
}
