package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <container>",
	Short: "Show runtime details for one sandbox",
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

		info, err := h.Info(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(info)
		}

		fmt.Printf("ID:       %s\n", info.ID)
		fmt.Printf("Name:     %s\n", info.Name)
		fmt.Printf("Image:    %s\n", info.Image)
		fmt.Printf("Running:  %v\n", info.Running)
		if !info.Running {
			fmt.Printf("ExitCode: %d\n", info.ExitCode)
		}
		fmt.Printf("Created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
		if info.Running {
			fmt.Printf("Memory:   %d / %d bytes\n", info.MemoryBytes, info.MemoryLimit)
			fmt.Printf("CPU:      %.1f%%\n", info.CPUPercent)
		}
		if info.IPAddress != "" {
			fmt.Printf("IP:       %s\n", info.IPAddress)
		}
		if len(info.Processes.Processes) > 0 {
			fmt.Println(strings.Join(info.Processes.Titles, "\t"))
			for _, proc := range info.Processes.Processes {
				fmt.Println(strings.Join(proc, "\t"))
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)
}
