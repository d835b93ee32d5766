package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/syncer"
)

var runCmd = &cobra.Command{
	Use:   "run <provider> [-- <args>...]",
	Short: "Wrap a vendor CLI and capture the live transcript",
	Long: `Run launches the provider's own CLI inside a pseudo-terminal, passing
any extra arguments through unchanged, and archives the conversation into
.waylog/history/ while the session is running.

The wrapped tool behaves exactly as if invoked directly: interactive
prompts, colors and window resizing all work, and waylog exits with the
tool's own exit code.

Examples:
  waylog run claude
  waylog run codex -- --model o3
  waylog run gemini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	provider, err := internal.ProviderByName(args[0])
	if err != nil {
		return err
	}
	if !provider.Installed() {
		return fmt.Errorf("%s is not installed (looked for %q in PATH)", provider.Name(), provider.Command())
	}

	project, err := projectDir()
	if err != nil {
		return err
	}

	// Refuse before launching anything: a corrupt ledger must be dealt
	// with explicitly rather than silently shadowed by a live session.
	store, err := internal.LoadStateStore(internal.StatePath(project))
	if err != nil {
		return err
	}

	rec := internal.NewRecorder(provider.Command(), args[1:])
	if err := rec.Start(); err != nil {
		return err
	}

	watcher := syncer.NewSessionWatcher(provider, project)
	ctx, cancel := context.WithCancel(context.Background())
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		watcher.Run(ctx, rec.Activity())
	}()

	code := rec.Wait()

	cancel()
	<-watcherDone

	record, archivePath, err := watcher.Finalize()
	switch {
	case err != nil:
		internal.LogWarn("session ended but the transcript could not be finalized: %v", err)
	case record == nil:
		internal.LogInfo("no session transcript was produced by %s", provider.Name())
	default:
		if err := syncer.New(project, store, false).Commit(record, archivePath); err != nil {
			internal.LogWarn("transcript saved but the sync ledger was not updated: %v", err)
		}
		fmt.Fprintf(os.Stderr, "\n📝 Transcript saved: %s\n", archivePath)
	}

	wrappedExitCode = code
	return nil
}
