package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebootTimeout int

var rebootCmd = &cobra.Command{
	Use:   "reboot <container>",
	Short: "Stop and restart a sandbox, keeping its filesystem state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := h.Reboot(cmd.Context(), rebootTimeout); err != nil {
			return err
		}
		fmt.Println("rebooted")
		return nil
	},
}

var stopTimeout int

var stopCmd = &cobra.Command{
	Use:   "stop <container>",
	Short: "Stop a sandbox without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := a.eng.ContainerStop(cmd.Context(), h.ID, stopTimeout); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <container>",
	Short: "Start a previously stopped sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", h.ID[:12], h.Name)
		return nil
	},
}

var shutdownForce bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown <container>",
	Short: "Stop and remove a sandbox, freeing its connections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.mgr.Destroy(cmd.Context(), args[0], shutdownForce); err != nil {
			return err
		}
		fmt.Println("removed")
		return nil
	},
}

var snapshotOpts struct {
	repo string
	tag  string
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <container>",
	Short: "Commit a sandbox's filesystem state to a new image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotOpts.repo == "" {
			return usageErrorf("--repo is required")
		}
		tag := snapshotOpts.tag
		if tag == "" {
			tag = "latest"
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		res, err := h.Snapshot(cmd.Context(), snapshotOpts.repo, tag)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s:%s\n", res.ImageID, res.Repo, res.Tag)
		return nil
	},
}

var pruneOpts struct {
	project string
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove all stopped, non-persistent sandboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := a.mgr.Prune(cmd.Context(), pruneOpts.project)
		if err != nil {
			return err
		}
		for _, id := range removed {
			fmt.Println(id[:12])
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "removed %d container(s)\n", len(removed))
		return nil
	},
}

func init() {
	rebootCmd.Flags().IntVar(&rebootTimeout, "timeout", 10, "Seconds to wait for graceful stop before restart")
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 10, "Seconds to wait for graceful stop")
	shutdownCmd.Flags().BoolVar(&shutdownForce, "force", false, "Skip the graceful stop and remove immediately")
	snapshotCmd.Flags().StringVar(&snapshotOpts.repo, "repo", "", "Destination image repository (required)")
	snapshotCmd.Flags().StringVar(&snapshotOpts.tag, "tag", "", "Destination image tag (default: latest)")
	pruneCmd.Flags().StringVar(&pruneOpts.project, "project", "", "Limit to one project (default: all projects)")

	RootCmd.AddCommand(rebootCmd, stopCmd, resumeCmd, shutdownCmd, snapshotCmd, pruneCmd)
}
