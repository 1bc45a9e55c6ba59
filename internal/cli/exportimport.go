package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <container> <tar-path>",
	Short: "Export a sandbox's root filesystem as a tar archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		rc, err := a.eng.ArchiveGet(cmd.Context(), h.ID, "/")
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer out.Close()

		n, err := io.Copy(out, rc)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d bytes to %s\n", n, args[1])
		return nil
	},
}

var importDest string

var importCmd = &cobra.Command{
	Use:   "import <container> <tar-path>",
	Short: "Import a tar archive into a sandbox's filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		in, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer in.Close()

		if err := a.eng.ArchivePut(cmd.Context(), h.ID, importDest, in); err != nil {
			return err
		}
		fmt.Printf("imported %s into %s\n", args[1], importDest)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDest, "dest", "/", "Destination directory inside the container")
	RootCmd.AddCommand(exportCmd, importCmd)
}
