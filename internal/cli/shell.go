package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/deftio/pocketdock/internal/sandbox/session"
)

var shellRaw bool

var shellCmd = &cobra.Command{
	Use:   "shell <container>",
	Short: "Open an interactive persistent shell session inside a sandbox",
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

		sess, err := session.Open(cmd.Context(), a.eng, h.ID)
		if err != nil {
			return err
		}
		defer sess.Close()

		sess.OnOutput(func(line string) {
			fmt.Fprint(os.Stdout, line)
		})

		if shellRaw {
			return runRawShell(cmd, sess, args[0])
		}
		return runLineShell(cmd, sess, args[0])
	},
}

// runLineShell is the default mode: one line in, wait for the
// command's sentinel, print its output. Scriptable and safe to pipe.
func runLineShell(cmd *cobra.Command, sess *session.Session, target string) error {
	fmt.Fprintf(os.Stderr, "attached to %s — type 'exit' to leave\n", target)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "exit" {
			break
		}
		res, err := sess.SendAndWait(cmd.Context(), line)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, res.Output)
		if res.ExitCode != 0 {
			fmt.Fprintf(os.Stderr, "(exit %d)\n", res.ExitCode)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// runRawShell puts the controlling terminal into raw mode, collects
// keystrokes into a line and sends each line to the session with Send
// when Enter is pressed, relying on OnOutput for display
// rather than waiting on a sentinel for every line — closer to a real
// pty, at the cost of losing exit-code reporting per command.
func runRawShell(cmd *cobra.Command, sess *session.Session, target string) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return runLineShell(cmd, sess, target)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw terminal mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Fprintf(os.Stderr, "attached to %s (raw mode) — press Ctrl-] to leave\r\n", target)

	buf := make([]byte, 1)
	var line []byte
	for {
		n, err := os.Stdin.Read(buf)
		if n == 0 || err != nil {
			return nil
		}
		if buf[0] == 0x1d { // Ctrl-]
			return nil
		}
		if buf[0] == '\r' || buf[0] == '\n' {
			if sendErr := sess.Send(string(line)); sendErr != nil {
				return sendErr
			}
			line = line[:0]
			continue
		}
		line = append(line, buf[0])
	}
}

func init() {
	shellCmd.Flags().BoolVar(&shellRaw, "raw", false, "Put the terminal in raw mode and send each line without waiting for it to finish (loses per-command exit codes)")
	RootCmd.AddCommand(shellCmd)
}
