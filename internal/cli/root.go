// Package cli implements the pocketdock command-line surface: a thin
// cobra layer over internal/sandbox.Manager and internal/project,
// mapping one-to-one onto the spec §6 CLI surface (create, run, push,
// pull, info, list, reboot, stop, resume, shutdown, snapshot, prune,
// shell, logs, doctor, build, export, import, init, profiles, serve,
// ui).
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/project"
	"github.com/deftio/pocketdock/internal/sandbox"
)

// Exit codes per spec §6: 0 success, 1 user error, 2 usage error, 3
// engine not reachable.
const (
	ExitOK           = 0
	ExitUserError    = 1
	ExitUsageError   = 2
	ExitEngineDown   = 3
)

var (
	flagSocket  string
	flagVerbose bool
	flagJSONLog bool
	flagJSON    bool
)

// RootCmd is the base `pocketdock` command.
var RootCmd = &cobra.Command{
	Use:   "pocketdock",
	Short: "Manage OCI container sandboxes over a Podman/Docker socket",
	Long: `pocketdock drives a Docker-compatible container engine (Podman
rootless preferred, Docker supported) directly over its REST API on a
Unix socket: create sandboxes, run commands in them (blocking,
streaming, or detached), move files in and out, open persistent shell
sessions, and snapshot or resume state across invocations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		if !flagJSONLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		}
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagSocket, "socket", "", "Engine socket path (overrides POCKETDOCK_SOCKET and auto-detection)")
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "Emit logs as JSON instead of console format")
	RootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Emit machine-readable JSON for read commands")
}

// Execute runs RootCmd and translates the returned error into one of
// the spec §6 exit codes.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		os.Exit(ExitOK)
	}

	var usage *UsageError
	var engineErr *transport.EngineUnavailableError
	switch {
	case errors.As(err, &usage):
		fmt.Fprintln(os.Stderr, "usage error:", err)
		os.Exit(ExitUsageError)
	case errors.As(err, &engineErr):
		fmt.Fprintln(os.Stderr, "engine unreachable:", err)
		os.Exit(ExitEngineDown)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(ExitUserError)
	}
}

// UsageError marks a command-line misuse (bad flag combination, wrong
// argument shape) that should exit 2 instead of the generic 1.
type UsageError struct{ msg string }

func (e *UsageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

// resolveSocket applies --socket, then the enclosing project's
// config.yaml `socket` key, then falls back to
// transport.DetectSocket's own POCKETDOCK_SOCKET-then-auto-probe
// precedence (spec §6).
func resolveSocket(ctx context.Context, proj *project.Project) (string, error) {
	if flagSocket != "" {
		return flagSocket, nil
	}
	if proj != nil && proj.Config.Socket != "" {
		return proj.Config.Socket, nil
	}
	return transport.DetectSocket(ctx)
}

// app bundles the engine/manager/project context every subcommand
// needs; newApp resolves the socket and (optionally) the enclosing
// .pocketdock/ project in one place so individual commands stay small.
type app struct {
	eng     *engine.Engine
	mgr     *sandbox.Manager
	proj    *project.Project // nil if no .pocketdock/ project was found
	socket  string
}

func newApp(ctx context.Context) (*app, error) {
	proj, err := project.Find(".")
	if err != nil && !errors.Is(err, project.ErrNotFound) {
		log.Debug().Err(err).Msg("project lookup failed")
	}

	socket, err := resolveSocket(ctx, proj)
	if err != nil {
		return nil, err
	}
	eng := engine.New(socket)
	if err := eng.Ping(ctx); err != nil {
		return nil, err
	}

	mgr := sandbox.NewManager(eng, socket, 30*time.Second)

	return &app{eng: eng, mgr: mgr, proj: proj, socket: socket}, nil
}

// requireProject fails fast (ProjectNotInitialized, per spec §7) for
// commands that need an enclosing .pocketdock/ project.
func (a *app) requireProject() (*project.Project, error) {
	if a.proj == nil {
		return nil, fmt.Errorf("%w: run `pocketdock init` first", ErrProjectNotInitialized)
	}
	return a.proj, nil
}

// ErrProjectNotInitialized is spec §7's ProjectNotInitialized kind,
// owned by the CLI collaborator rather than the core library.
var ErrProjectNotInitialized = fmt.Errorf("no pocketdock project in this directory or any parent")
