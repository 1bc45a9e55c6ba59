package sandbox

import (
	"context"
	"fmt"
	"io"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/sandbox/ringbuffer"
	"github.com/rs/zerolog/log"
)

// Callback receives output as a detached process produces it.
type Callback func(StreamChunk)

// CallbackRegistry fans a detached process's output out to any number
// of subscribers. A panicking callback is logged and otherwise
// swallowed so one bad subscriber can't take down the reader loop or
// its siblings.
type CallbackRegistry struct {
	mu        deadlock.Mutex
	callbacks map[int]Callback
	nextID    int
}

func newCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[int]Callback)}
}

// Subscribe registers cb and returns an id for Unsubscribe.
func (r *CallbackRegistry) Subscribe(cb Callback) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.callbacks[id] = cb
	return id
}

func (r *CallbackRegistry) Unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, id)
}

func (r *CallbackRegistry) dispatch(chunk StreamChunk) {
	r.mu.Lock()
	cbs := make([]Callback, 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("detached process callback panicked")
				}
			}()
			cb(chunk)
		}()
	}
}

// DetachedProcess is a background exec whose output accumulates into a
// RingBuffer and is also fanned out live via Callbacks (spec §5.3).
type DetachedProcess struct {
	ExecID    string
	Callbacks *CallbackRegistry

	h      *Handle
	stdout *ringbuffer.RingBuffer
	stderr *ringbuffer.RingBuffer
	stream *transport.Exchange

	done     chan struct{}
	exitCode int
	waitErr  error

	mu       deadlock.Mutex
	finished bool
}

// RunDetached starts opts.Cmd in the background and returns immediately
// with a handle for polling output, subscribing to live chunks, or
// waiting for completion.
func (h *Handle) RunDetached(ctx context.Context, opts RunOptions) (*DetachedProcess, error) {
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

	dp := &DetachedProcess{
		ExecID:    execID,
		Callbacks: newCallbackRegistry(),
		h:         h,
		stdout:    ringbuffer.New(opts.MaxOutput),
		stderr:    ringbuffer.New(opts.MaxOutput),
		stream:    stream,
		done:      make(chan struct{}),
	}

	opID := fmt.Sprintf("detached-%s", execID)
	release, err := h.registerOp(opID, func() { dp.Kill(context.Background()) })
	if err != nil {
		stream.Close()
		return nil, err
	}

	go dp.reap(release)
	return dp, nil
}

// reap is the background reader task: it demultiplexes output until
// the stream ends, fanning chunks to both the RingBuffers and any
// subscribed callbacks, then resolves Wait.
func (dp *DetachedProcess) reap(release func()) {
	defer release()
	defer dp.stream.Close()

	demux := transport.NewFrameDemuxer(dp.stream)
	for {
		frame, err := demux.Next()
		if err != nil {
			if err != io.EOF {
				dp.waitErr = err
			}
			break
		}
		chunk := StreamChunk{Stream: frame.Stream, Data: frame.Data}
		if frame.Stream == transport.StreamStderr {
			dp.stderr.Append(frame.Data)
		} else {
			dp.stdout.Append(frame.Data)
		}
		dp.Callbacks.dispatch(chunk)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if inspect, err := dp.h.eng.ExecInspect(ctx, dp.ExecID); err == nil && inspect.ExitCode != nil {
		dp.exitCode = *inspect.ExitCode
	}

	dp.mu.Lock()
	dp.finished = true
	dp.mu.Unlock()
	close(dp.done)
}

// Peek copies everything buffered so far without consuming it — repeat
// calls return the same snapshot until more output arrives (spec §8's
// "peek followed by read returns the same snapshot" invariant).
func (dp *DetachedProcess) Peek() (stdout, stderr []byte, truncated bool) {
	return dp.stdout.Peek(), dp.stderr.Peek(), dp.stdout.Overflowed() || dp.stderr.Overflowed()
}

// Read drains everything buffered so far. A quiescent process's Read
// followed immediately by Peek returns empty both times, since Read
// consumed the buffer first.
func (dp *DetachedProcess) Read() (stdout, stderr []byte, truncated bool) {
	return dp.stdout.Drain(), dp.stderr.Drain(), dp.stdout.Overflowed() || dp.stderr.Overflowed()
}

// Wait blocks until the process finishes or ctx is done.
func (dp *DetachedProcess) Wait(ctx context.Context) (exitCode int, err error) {
	select {
	case <-dp.done:
		return dp.exitCode, dp.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Finished reports whether the reap loop has observed stream
// completion.
func (dp *DetachedProcess) Finished() bool {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.finished
}

// Running is the spec-facing inverse of Finished (spec §3
// "DetachedProcess ... running flag").
func (dp *DetachedProcess) Running() bool {
	return !dp.Finished()
}

// ExitCode returns the latched exit code once Finished is true; callers
// should check Finished (or use Wait) before trusting the value.
func (dp *DetachedProcess) ExitCode() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.exitCode
}

// Kill terminates the underlying process by pid and stops reading its
// output. Errors are returned for observability but Kill is otherwise
// best-effort, matching spec §9's "continue past individual failures"
// cleanup contract.
func (dp *DetachedProcess) Kill(ctx context.Context) error {
	inspect, err := dp.h.eng.ExecInspect(ctx, dp.ExecID)
	if err != nil {
		return err
	}
	if !inspect.Running || inspect.Pid == 0 {
		return nil
	}
	return dp.h.eng.ExecKill(ctx, dp.h.ID, inspect.Pid, "KILL")
}
