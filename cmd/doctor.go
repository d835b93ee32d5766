package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CrazyForks/waylog-cli/internal"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which providers waylog can see on this machine",
	Long: `Doctor reports, for every supported provider:
  • whether the vendor CLI is installed
  • whether its session store exists for this project
  • how many sessions of this project it currently holds

Useful when pull imports less than you expect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectDir()
		if err != nil {
			return err
		}

		fmt.Println(sectionStyle.Render("🔍 waylog doctor"))
		fmt.Printf("Project: %s\n\n", project)

		usable := 0
		for _, provider := range internal.Providers() {
			fmt.Println(titleStyle.Render(provider.Name()))

			if provider.Installed() {
				fmt.Println(successStyle.Render("  ✅ CLI installed"), idStyle.Render("("+provider.Command()+")"))
			} else {
				fmt.Println(warningStyle.Render("  ⚠️  CLI not found in PATH"), idStyle.Render("("+provider.Command()+")"))
			}

			dir, err := provider.SessionDir(project)
			switch {
			case err != nil:
				fmt.Println(errorStyle.Render("  ❌ Store location error:"), err)
			case dirExists(dir):
				fmt.Println(successStyle.Render("  ✅ Store found"))
				if verbose {
					fmt.Printf("     %s\n", dir)
				}
			default:
				fmt.Println(warningStyle.Render("  ⚠️  Store not found"))
				if verbose {
					fmt.Printf("     expected: %s\n", dir)
				}
			}

			refs, err := provider.Sessions(project)
			switch {
			case err != nil:
				fmt.Println(errorStyle.Render("  ❌ Store scan failed:"), err)
			case len(refs) > 0:
				fmt.Println(successStyle.Render(fmt.Sprintf("  ✅ %d session(s) for this project", len(refs))))
				usable++
			default:
				fmt.Println(warningStyle.Render("  ⚠️  No sessions for this project"))
			}
			fmt.Println()
		}

		fmt.Println(sectionStyle.Render("📊 Summary"))
		if usable > 0 {
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ %d provider(s) have sessions to pull", usable)))
			return nil
		}
		fmt.Println(warningStyle.Render("⚠️  No provider has sessions for this project yet"))
		return nil
	},
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
