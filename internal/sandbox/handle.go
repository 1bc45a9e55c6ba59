// Package sandbox implements the container-handle abstraction: create,
// exec (blocking/streaming/detached), file transfer, persistent shell
// sessions, and lifecycle operations layered on top of internal/engine.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/sandbox/ringbuffer"
)

const (
	// LabelManaged, set on every container this package creates, is how
	// Manager distinguishes pocketdock containers from anything else
	// running on the engine.
	LabelManaged  = "pocketdock.managed"
	LabelInstance = "pocketdock.instance"
	LabelProfile  = "pocketdock.profile"
	LabelProject  = "pocketdock.project"
	LabelPersist  = "pocketdock.persist"
	LabelCreated  = "pocketdock.created-at"
	LabelDataPath = "pocketdock.data-path"
)

// Handle wraps one container and exposes the sandbox operations spec §5
// describes. A Handle is safe for concurrent use: every exec/stream call
// registers itself in activeOps for Shutdown to cancel.
type Handle struct {
	ID         string
	Name       string
	SocketPath string
	Persist    bool
	Project    string
	DataPath   string

	defaultTimeout time.Duration
	eng            *engine.Engine

	mu        deadlock.Mutex
	activeOps map[string]context.CancelFunc
	shutdown  bool
}

// NewHandle wraps an already-created/started container id. Callers
// normally get a Handle back from Manager.Create rather than building
// one directly.
func NewHandle(eng *engine.Engine, id, name, socketPath string, persist bool, project, dataPath string, defaultTimeout time.Duration) *Handle {
	return &Handle{
		ID:             id,
		Name:           name,
		SocketPath:     socketPath,
		Persist:        persist,
		Project:        project,
		DataPath:       dataPath,
		defaultTimeout: defaultTimeout,
		eng:            eng,
		activeOps:      make(map[string]context.CancelFunc),
	}
}

// Engine exposes the underlying engine client for collaborators (such
// as internal/controlplane) that need to open their own Session rather
// than go through Handle's run modes.
func (h *Handle) Engine() *engine.Engine { return h.eng }

// RunOptions configures one exec invocation across all three run modes.
type RunOptions struct {
	// Cmd is either a single shell-syntax string (len==1, run through
	// `sh -c`) or an argv vector run directly.
	Cmd []string
	// Lang, when set, wraps Cmd (joined with spaces) in the
	// corresponding interpreter's -c/-e flag instead of shelling out to
	// sh. Recognized values: "sh", "bash", "python", "node".
	Lang        string
	Env         map[string]string
	WorkingDir  string
	Timeout     time.Duration
	MaxOutput   int
	AttachStdin bool
}

func (h *Handle) buildCmd(opts RunOptions) []string {
	if opts.Lang != "" {
		script := strings.Join(opts.Cmd, " ")
		switch opts.Lang {
		case "python":
			return []string{"python3", "-c", script}
		case "node":
			return []string{"node", "-e", script}
		case "bash":
			return []string{"bash", "-c", script}
		default:
			return []string{"sh", "-c", script}
		}
	}
	if len(opts.Cmd) == 1 {
		return []string{"sh", "-c", opts.Cmd[0]}
	}
	return opts.Cmd
}

func (h *Handle) timeout(opts RunOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return h.defaultTimeout
}

// registerOp adds a cancel func to the active-operations set and
// returns a deregister closure. Shutdown swaps the whole set out
// atomically, so ops registered after a Shutdown call are rejected with
// an error.
func (h *Handle) registerOp(opID string, cancel context.CancelFunc) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return nil, fmt.Errorf("handle %s is shutting down", h.ID)
	}
	h.activeOps[opID] = cancel
	return func() {
		h.mu.Lock()
		delete(h.activeOps, opID)
		h.mu.Unlock()
	}, nil
}

// Shutdown cancels every active operation (streaming iterators,
// detached-process readers, blocking execs) and marks the Handle closed
// to new work. It does not stop or remove the container — callers use
// Manager for that, per the cleanup ordering in spec §9.
func (h *Handle) Shutdown() {
	h.mu.Lock()
	ops := h.activeOps
	h.activeOps = make(map[string]context.CancelFunc)
	h.shutdown = true
	h.mu.Unlock()

	for _, cancel := range ops {
		cancel()
	}
}

// ExecResult is the outcome of a blocking Run call.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// Ok reports whether the exec succeeded cleanly: exit code 0 and no
// timeout (spec §3's derived `ok` field).
func (r *ExecResult) Ok() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// blockingMaxOutputDefault is the 10 MiB default output cap for
// blocking Run, per spec §4.3 — distinct from RingBuffer's own 1 MiB
// default, which only applies to detached processes.
const blockingMaxOutputDefault = 10 << 20

// Run executes opts.Cmd and blocks until it exits, the context is
// cancelled, or opts.Timeout elapses — whichever comes first. Output is
// accumulated up to opts.MaxOutput (10 MiB if zero); overflow truncates
// and sets Truncated rather than erroring. A timeout reports ExitCode
// -1 with TimedOut true, per spec §5.2.
func (h *Handle) Run(ctx context.Context, opts RunOptions) (*ExecResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout(opts))
	defer cancel()

	opID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	deregister, err := h.registerOp(opID, cancel)
	if err != nil {
		return nil, err
	}
	defer deregister()

	execID, err := h.eng.ExecCreate(ctx, h.ID, engine.ExecOptions{
		Cmd:         h.buildCmd(opts),
		Env:         opts.Env,
		WorkingDir:  opts.WorkingDir,
		AttachStdin: opts.AttachStdin,
	})
	if err != nil {
		return nil, err
	}

	stream, err := h.eng.ExecStart(ctx, execID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	maxOutput := opts.MaxOutput
	if maxOutput == 0 {
		maxOutput = blockingMaxOutputDefault
	}
	stdout := ringbuffer.New(maxOutput)
	stderr := ringbuffer.New(maxOutput)
	demux := transport.NewFrameDemuxer(stream)

	done := make(chan error, 1)
	go func() {
		for {
			frame, ferr := demux.Next()
			if ferr != nil {
				if ferr == io.EOF {
					done <- nil
				} else {
					done <- ferr
				}
				return
			}
			switch frame.Stream {
			case transport.StreamStderr:
				stderr.Append(frame.Data)
			default:
				stdout.Append(frame.Data)
			}
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		h.killExec(execID)
		return &ExecResult{
			Stdout:    string(stdout.Drain()),
			Stderr:    string(stderr.Drain()),
			ExitCode:  -1,
			Duration:  time.Since(start),
			TimedOut:  true,
			Truncated: stdout.Overflowed() || stderr.Overflowed(),
		}, nil
	}

	inspect, err := h.eng.ExecInspect(context.Background(), execID)
	if err != nil {
		return nil, err
	}
	exitCode := 0
	if inspect.ExitCode != nil {
		exitCode = *inspect.ExitCode
	}

	return &ExecResult{
		Stdout:    string(stdout.Drain()),
		Stderr:    string(stderr.Drain()),
		ExitCode:  exitCode,
		Duration:  time.Since(start),
		Truncated: stdout.Overflowed() || stderr.Overflowed(),
	}, nil
}

// killExec best-efforts terminating a runaway exec by signalling its
// pid; failures are swallowed because the container/engine may already
// be gone, which is the very reason we're here.
func (h *Handle) killExec(execID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	inspect, err := h.eng.ExecInspect(ctx, execID)
	if err != nil || inspect.Pid == 0 {
		return
	}
	_ = h.eng.ExecKill(ctx, h.ID, inspect.Pid, "KILL")
}
