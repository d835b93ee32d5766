package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/export"
)

var listProvider string

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	providerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the archived sessions of this project",
	Long:  `List every session archived under .waylog/history/, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectDir()
		if err != nil {
			return err
		}

		historyDir := internal.HistoryDir(project)
		entries, err := os.ReadDir(historyDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println(headerStyle.Render("📋 No sessions archived yet"))
				return nil
			}
			return fmt.Errorf("failed to read archive directory: %w", err)
		}

		type archived struct {
			file    string
			fm      export.Frontmatter
			started time.Time
		}
		var archives []archived
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			fm, err := export.ReadFrontmatter(filepath.Join(historyDir, entry.Name()))
			if err != nil {
				internal.LogWarn("skipping unreadable archive %s: %v", entry.Name(), err)
				continue
			}
			if listProvider != "" && fm.Provider != listProvider {
				continue
			}
			started, _ := time.Parse(time.RFC3339, fm.StartedAt)
			archives = append(archives, archived{file: entry.Name(), fm: fm, started: started})
		}
		sort.Slice(archives, func(i, j int) bool {
			return archives[i].started.After(archives[j].started)
		})

		if len(archives) == 0 {
			fmt.Println(headerStyle.Render("📋 No sessions archived yet"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("📋 %d archived session(s)", len(archives))))
		fmt.Println()

		// Use tabwriter for aligned columns with better spacing
		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)

		_, _ = fmt.Fprintln(w, titleStyle.Render("Provider")+"\t"+titleStyle.Render("Session")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Started")+"\t"+titleStyle.Render("File")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 110))

		for _, a := range archives {
			shortID := a.fm.SessionID
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			started := formatWhen(a.started)
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
				providerStyle.Render(a.fm.Provider),
				idStyle.Render(shortID),
				countStyle.Render(strconv.Itoa(a.fm.MessageCount)),
				started,
				a.file)
		}

		_ = w.Flush()
		return nil
	},
}

// formatWhen renders a timestamp the way humans scan lists: relative
// layouts for recent sessions, dates for old ones.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return dateStyle.Render("—")
	}
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return dateStyle.Render(t.Format("Today 15:04"))
	case diff < 7*24*time.Hour:
		return dateStyle.Render(t.Format("Mon 15:04"))
	case diff < 365*24*time.Hour:
		return dateStyle.Render(t.Format("Jan 02 15:04"))
	default:
		return dateStyle.Render(t.Format("2006-01-02"))
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listProvider, "provider", "p", "", "Only list archives from one provider")
}
