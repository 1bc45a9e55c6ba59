package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/project"
)

var logsInstance string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the project's recorded command history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		proj, err := a.requireProject()
		if err != nil {
			return err
		}

		entries, err := project.ReadHistory(proj.Root)
		if err != nil {
			return err
		}

		if logsInstance != "" {
			filtered := entries[:0]
			for _, e := range entries {
				if e.InstanceID == logsInstance {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(entries)
		}

		for _, e := range entries {
			status := "ok"
			if e.TimedOut {
				status = "timeout"
			} else if e.ExitCode != 0 {
				status = fmt.Sprintf("exit %d", e.ExitCode)
			}
			fmt.Printf("%s\t%s\t%s\t%dms\t%s\n",
				e.Timestamp.Format("2006-01-02T15:04:05"), e.InstanceID, status, e.DurationMs, e.Command)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsInstance, "instance", "", "Limit to one instance ID")
	RootCmd.AddCommand(logsCmd)
}
