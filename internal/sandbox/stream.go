package sandbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
)

// StreamChunk is one lazily-delivered unit of exec output.
type StreamChunk struct {
	Stream transport.StreamTag
	Data   []byte
}

// Stream is a cancellable iterator over a running exec's output,
// returned by Handle.RunStreaming (spec §5.2's streaming mode).
type Stream struct {
	h       *Handle
	execID  string
	demux   *transport.FrameDemuxer
	stream  *transport.Exchange
	cancel  context.CancelFunc
	release func()
	closed  bool
}

// RunStreaming starts opts.Cmd and returns an iterator of output chunks
// as they arrive, instead of blocking for the whole run. Call Next
// until it returns io.EOF, then ExitCode to learn how the process
// finished. The caller must call Close if it stops iterating early.
func (h *Handle) RunStreaming(ctx context.Context, opts RunOptions) (*Stream, error) {
	opCtx, cancel := context.WithCancel(ctx)
	if opts.Timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	opID := fmt.Sprintf("stream-%d", time.Now().UnixNano())
	release, err := h.registerOp(opID, cancel)
	if err != nil {
		cancel()
		return nil, err
	}

	execID, err := h.eng.ExecCreate(opCtx, h.ID, engine.ExecOptions{
		Cmd:         h.buildCmd(opts),
		Env:         opts.Env,
		WorkingDir:  opts.WorkingDir,
		AttachStdin: opts.AttachStdin,
	})
	if err != nil {
		release()
		cancel()
		return nil, err
	}

	exchange, err := h.eng.ExecStart(opCtx, execID)
	if err != nil {
		release()
		cancel()
		return nil, err
	}

	return &Stream{
		h:       h,
		execID:  execID,
		demux:   transport.NewFrameDemuxer(exchange),
		stream:  exchange,
		cancel:  cancel,
		release: release,
	}, nil
}

// Next blocks until the next chunk is available, the stream ends
// (io.EOF), the connection's timeout deadline passes, or Close is
// called. Cancelling the stream's context alone does not unblock it.
func (s *Stream) Next() (*StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}
	frame, err := s.demux.Next()
	if err != nil {
		return nil, err
	}
	return &StreamChunk{Stream: frame.Stream, Data: frame.Data}, nil
}

// ExitCode inspects the underlying exec once the stream has ended.
// Calling it before Next returns io.EOF may observe a still-running
// process and report Running true.
func (s *Stream) ExitCode(ctx context.Context) (code int, running bool, err error) {
	inspect, err := s.h.eng.ExecInspect(ctx, s.execID)
	if err != nil {
		return 0, false, err
	}
	if inspect.Running {
		return 0, true, nil
	}
	if inspect.ExitCode != nil {
		return *inspect.ExitCode, false, nil
	}
	return 0, false, nil
}

// Close cancels the stream's exec, attempts to kill the container-side
// process, and releases the connection. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.h.killExec(s.execID)
	s.release()
	return s.stream.Close()
}
