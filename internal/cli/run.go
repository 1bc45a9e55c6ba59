package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/project"
	"github.com/deftio/pocketdock/internal/sandbox"
)

var runOpts struct {
	stream    bool
	detach    bool
	lang      string
	timeout   time.Duration
	maxOutput int
	workdir   string
	env       []string
}

var runCmd = &cobra.Command{
	Use:   "run <container> -- <command...>",
	Short: "Run a command inside a sandbox (blocking, streaming, or detached)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOpts.stream && runOpts.detach {
			return usageErrorf("--stream and --detach are mutually exclusive")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		h, err := a.mgr.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		opts := sandbox.RunOptions{
			Cmd:       []string{strings.Join(args[1:], " ")},
			Lang:      runOpts.lang,
			Env:       parseEnv(runOpts.env),
			WorkingDir: runOpts.workdir,
			Timeout:   runOpts.timeout,
			MaxOutput: runOpts.maxOutput,
		}

		switch {
		case runOpts.detach:
			return runDetached(cmd.Context(), h, opts)
		case runOpts.stream:
			return runStreaming(cmd.Context(), h, opts)
		default:
			return runBlocking(cmd.Context(), h, opts, a, strings.Join(args[1:], " "))
		}
	},
}

func runBlocking(ctx context.Context, h *sandbox.Handle, opts sandbox.RunOptions, a *app, cmdText string) error {
	start := time.Now()
	res, err := h.Run(ctx, opts)
	if a.proj != nil && a.proj.Config.AutoLog {
		exitCode := 0
		if res != nil {
			exitCode = res.ExitCode
		}
		timedOut := res != nil && res.TimedOut
		entry := project.HistoryEntry{
			Timestamp:  time.Now(),
			InstanceID: h.ID,
			Command:    cmdText,
			ExitCode:   exitCode,
			DurationMs: time.Since(start).Milliseconds(),
			TimedOut:   timedOut,
		}
		_ = project.AppendHistory(a.proj.Root, entry)
		_ = project.PruneHistory(a.proj.Root, a.proj.Config)
	}
	if err != nil {
		return err
	}
	fmt.Print(res.Stdout)
	fmt.Fprint(os.Stderr, res.Stderr)
	if res.TimedOut {
		fmt.Fprintf(os.Stderr, "(timed out after %s)\n", time.Since(start).Round(time.Millisecond))
	}
	if res.Truncated {
		fmt.Fprintln(os.Stderr, "(output truncated)")
	}
	if res.ExitCode != 0 || res.TimedOut {
		return fmt.Errorf("command exited %d", res.ExitCode)
	}
	return nil
}

func runStreaming(ctx context.Context, h *sandbox.Handle, opts sandbox.RunOptions) error {
	stream, err := h.RunStreaming(ctx, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if chunk.Stream == transport.StreamStderr {
			fmt.Fprint(os.Stderr, string(chunk.Data))
		} else {
			fmt.Print(string(chunk.Data))
		}
	}

	code, running, err := stream.ExitCode(ctx)
	if err == nil && !running && code != 0 {
		return fmt.Errorf("command exited %d", code)
	}
	return nil
}

func runDetached(ctx context.Context, h *sandbox.Handle, opts sandbox.RunOptions) error {
	dp, err := h.RunDetached(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("detached exec %s started\n", dp.ExecID[:12])
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.stream, "stream", false, "Stream output as it arrives instead of blocking for completion")
	runCmd.Flags().BoolVar(&runOpts.detach, "detach", false, "Run in the background and return immediately")
	runCmd.Flags().StringVar(&runOpts.lang, "lang", "", "Interpreter to wrap the command in (python, node, bash, sh)")
	runCmd.Flags().DurationVar(&runOpts.timeout, "timeout", 30*time.Second, "Maximum time to wait for the command to finish")
	runCmd.Flags().IntVar(&runOpts.maxOutput, "max-output", 0, "Max bytes of stdout/stderr to retain (default 10 MiB)")
	runCmd.Flags().StringVar(&runOpts.workdir, "workdir", "", "Working directory for the command")
	runCmd.Flags().StringSliceVarP(&runOpts.env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	RootCmd.AddCommand(runCmd)
}
