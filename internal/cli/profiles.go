package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/profile"
)

var profileNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in image profiles available to `create --profile`",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var md strings.Builder
		md.WriteString("| Profile | Image | Default Command |\n|---|---|---|\n")
		for _, p := range profile.All() {
			md.WriteString(fmt.Sprintf("| %s | `%s` | `%s` |\n", p.Name, p.Image, strings.Join(p.Cmd, " ")))
		}

		rendered, err := glamour.Render(md.String(), "dark")
		if err != nil {
			// Fall back to a plain table if the terminal can't render markdown.
			for _, p := range profile.All() {
				fmt.Printf("%s\t%s\t%s\n", profileNameStyle.Render(p.Name), p.Image, strings.Join(p.Cmd, " "))
			}
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(profilesCmd)
}
