package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/project"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check engine reachability and project setup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ok := true

		proj, projErr := project.Find(".")

		socket, err := resolveSocket(ctx, proj)
		if err != nil {
			var unavailable *transport.EngineUnavailableError
			if errors.As(err, &unavailable) {
				fmt.Printf("engine:  FAIL  no socket found (probed %v)\n", unavailable.Probed)
			} else {
				fmt.Printf("engine:  FAIL  %v\n", err)
			}
			ok = false
		} else {
			eng := engine.New(socket)
			if err := eng.Ping(ctx); err != nil {
				fmt.Printf("engine:  FAIL  %s unreachable: %v\n", socket, err)
				ok = false
			} else {
				fmt.Printf("engine:  OK    %s\n", socket)
			}
		}

		switch {
		case projErr == nil:
			fmt.Printf("project: OK    %s\n", proj.Root)
		case errors.Is(projErr, project.ErrNotFound):
			fmt.Println("project: NONE  run `pocketdock init` to scaffold one (optional)")
		default:
			fmt.Printf("project: FAIL  %v\n", projErr)
			ok = false
		}

		if !ok {
			return fmt.Errorf("doctor found one or more problems")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
