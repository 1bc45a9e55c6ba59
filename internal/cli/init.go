package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a .pocketdock project directory in the current working directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project.Init(".")
		if err != nil {
			return err
		}
		fmt.Printf("initialized pocketdock project at %s\n", proj.Root)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}
