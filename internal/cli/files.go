package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <container> <local-path> <remote-dir>",
	Short: "Upload a local file or directory tree into a sandbox",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		localPath, remoteDir := args[1], args[2]
		info, err := os.Stat(localPath)
		if err != nil {
			return err
		}

		files := make(map[string][]byte)
		if info.IsDir() {
			err = filepath.Walk(localPath, func(p string, fi os.FileInfo, err error) error {
				if err != nil || fi.IsDir() {
					return err
				}
				rel, err := filepath.Rel(localPath, p)
				if err != nil {
					return err
				}
				content, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				files[filepath.ToSlash(rel)] = content
				return nil
			})
			if err != nil {
				return err
			}
		} else {
			content, err := os.ReadFile(localPath)
			if err != nil {
				return err
			}
			files[filepath.Base(localPath)] = content
		}

		if err := h.Push(cmd.Context(), remoteDir, files); err != nil {
			return err
		}
		fmt.Printf("pushed %d file(s) to %s\n", len(files), remoteDir)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <container> <remote-dir> <local-dir>",
	Short: "Download a directory tree from a sandbox",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		remoteDir, localDir := args[1], args[2]
		files, err := h.Pull(cmd.Context(), remoteDir)
		if err != nil {
			return err
		}

		for rel, content := range files {
			dest := filepath.Join(localDir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(dest, content, 0o644); err != nil {
				return err
			}
		}
		fmt.Printf("pulled %d file(s) to %s\n", len(files), localDir)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <container> <remote-dir>",
	Short: "List a directory inside a sandbox",
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
		entries, err := h.ListFiles(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		for _, e := range entries {
			kind := "-"
			if e.IsDir {
				kind = "d"
			} else if e.LinkTarget != "" {
				kind = "l"
			}
			fmt.Printf("%s\t%8d\t%s", kind, e.Size, e.Name)
			if e.LinkTarget != "" {
				fmt.Printf(" -> %s", e.LinkTarget)
			}
			fmt.Println()
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <container> <remote-path>",
	Short: "Print a file's contents from inside a sandbox",
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
		content, err := h.ReadFile(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

func init() {
	RootCmd.AddCommand(pushCmd, pullCmd, lsCmd, catCmd)
}
