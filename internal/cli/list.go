package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listOpts struct {
	project string
	all     bool
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pocketdock-managed containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		project := listOpts.project
		if project == "" && !listOpts.all && a.proj != nil {
			project = a.proj.Root
		}

		items, err := a.mgr.List(cmd.Context(), project)
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(items)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tIMAGE\tSTATE\tPROFILE\tPERSIST")
		for _, s := range items {
			id := s.ID
			if len(id) > 12 {
				id = id[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n", id, s.Name, s.Image, s.State, s.Profile, s.Persist)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listOpts.project, "project", "", "Limit to one project (default: the enclosing project, if any)")
	listCmd.Flags().BoolVar(&listOpts.all, "all", false, "List across every project, ignoring the enclosing one")
	RootCmd.AddCommand(listCmd)
}
