// Package session implements persistent shell sessions: a single
// `/bin/sh` exec kept alive across many commands, with command
// boundaries detected via a sentinel line rather than by tearing the
// exec down each time (spec §5.4).
package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
)

// ErrClosed is returned by any operation on a Session after Close.
var ErrClosed = fmt.Errorf("session closed")

// Result is the output and exit code of one command run through a
// Session.
type Result struct {
	Output   string
	ExitCode int
}

type waiter struct {
	resultCh chan Result
}

const sentinelPrefix = "__PD_"

// OutputCallback receives every line of a Session's output as it is
// read, tagged with the command-boundary sentinel stripped out (spec
// §3 "output-callback list").
type OutputCallback func(line string)

// Session is a persistent `/bin/sh` exec with stdin attached. Each
// command is followed by a sentinel line of the form
// __PD_<session-uuid>_<seq>_<exit-code>__ so the reader can find
// command boundaries without a command's own output being able to
// forge one — the uuid makes collision astronomically unlikely, and
// the seq keeps pipelined sends distinguishable from one another.
type Session struct {
	id          string
	eng         *engine.Engine
	containerID string
	execID      string
	stream      *transport.Exchange
	demux       *transport.FrameDemuxer

	// mu guards seq/waiters/closed. Distinct from accMu, which guards
	// the output accumulator — a Session's waiter map is never touched
	// while holding a Handle-level lock, and the accumulator is never
	// touched while holding the waiter-map lock (spec §5 "shared
	// resource policy").
	mu      deadlock.Mutex
	seq     int
	waiters map[int]*waiter
	closed  bool

	accMu sync.Mutex
	acc   bytes.Buffer

	cbMu      sync.Mutex
	callbacks []OutputCallback
}

// Open starts a persistent shell inside containerID and begins the
// background reader that watches for sentinel lines.
func Open(ctx context.Context, eng *engine.Engine, containerID string) (*Session, error) {
	execID, err := eng.ExecCreate(ctx, containerID, engine.ExecOptions{
		Cmd:         []string{"/bin/sh"},
		AttachStdin: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create session shell: %w", err)
	}

	stream, err := eng.ExecStart(ctx, execID)
	if err != nil {
		return nil, fmt.Errorf("start session shell: %w", err)
	}

	s := &Session{
		id:          uuid.NewString(),
		eng:         eng,
		containerID: containerID,
		execID:      execID,
		stream:      stream,
		demux:       transport.NewFrameDemuxer(stream),
		waiters:     make(map[int]*waiter),
	}

	go s.readLoop()
	return s, nil
}

// ID returns the session's sentinel-namespace uuid, useful for logging.
func (s *Session) ID() string { return s.id }

// OnOutput registers cb to be invoked, on the reader's own goroutine,
// for every line the session emits (sentinel lines excluded). A
// panicking callback is recovered and logged rather than allowed to
// take down the reader, matching the detached-process callback
// contract in spec §4.3.
func (s *Session) OnOutput(cb OutputCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Send writes cmd to the shell's stdin and returns immediately without
// waiting for a sentinel — fire-and-forget, per spec §4.4. Output, if
// any, lands in the accumulator and is fanned out to OnOutput
// subscribers same as SendAndWait.
func (s *Session) Send(cmd string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	if _, err := s.stream.Write([]byte(cmd + "\n")); err != nil {
		return &transport.SocketCommunicationError{Op: "session write", Err: err}
	}
	return nil
}

// Read drains everything accumulated since the last Read call. Safe to
// call concurrently with the background reader.
func (s *Session) Read() string {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	out := s.acc.String()
	s.acc.Reset()
	return out
}

// SendAndWait writes cmd to the shell's stdin followed by a sentinel
// marker, then blocks until that marker is observed in the output
// stream or ctx is done. The returned Result's Output excludes the
// sentinel line itself.
func (s *Session) SendAndWait(ctx context.Context, cmd string) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	s.seq++
	mySeq := s.seq
	w := &waiter{resultCh: make(chan Result, 1)}
	s.waiters[mySeq] = w
	s.mu.Unlock()

	full := fmt.Sprintf("%s\n__pd_status=$?; printf '%s%s_%d_%%d__\\n' \"$__pd_status\"\n",
		cmd, sentinelPrefix, s.id, mySeq)

	if _, err := s.stream.Write([]byte(full)); err != nil {
		s.mu.Lock()
		delete(s.waiters, mySeq)
		s.mu.Unlock()
		return Result{}, &transport.SocketCommunicationError{Op: "session write", Err: err}
	}

	select {
	case res, ok := <-w.resultCh:
		if !ok {
			return Result{}, ErrClosed
		}
		return res, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, mySeq)
		s.mu.Unlock()
		return Result{}, ctx.Err()
	}
}

// Close shuts down the shell's stdin and releases the underlying
// stream. Any outstanding waiters are unblocked with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for seq, w := range s.waiters {
		close(w.resultCh)
		delete(s.waiters, seq)
	}
	s.mu.Unlock()

	io.WriteString(s.stream, "exit\n")
	return s.stream.Close()
}

func (s *Session) readLoop() {
	reader := bufio.NewReader(&demuxReader{d: s.demux})
	var acc bytes.Buffer

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if seq, exitCode, ok := parseSentinel(line, s.id); ok {
				s.resolve(seq, Result{Output: acc.String(), ExitCode: exitCode})
				acc.Reset()
			} else {
				acc.WriteString(line)
				s.accMu.Lock()
				s.acc.WriteString(line)
				s.accMu.Unlock()
				s.dispatch(line)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) dispatch(line string) {
	s.cbMu.Lock()
	cbs := append([]OutputCallback(nil), s.callbacks...)
	s.cbMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Debug().Interface("panic", r).Msg("session output callback panicked")
				}
			}()
			cb(line)
		}()
	}
}

func (s *Session) resolve(seq int, res Result) {
	s.mu.Lock()
	w, ok := s.waiters[seq]
	if ok {
		delete(s.waiters, seq)
	}
	s.mu.Unlock()
	if ok {
		w.resultCh <- res
		close(w.resultCh)
	}
}

// parseSentinel recognizes a line of the exact form
// __PD_<uuid>_<seq>_<exitcode>__\n for this session's uuid.
func parseSentinel(line, sessionID string) (seq int, exitCode int, ok bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	prefix := sentinelPrefix + sessionID + "_"
	if !strings.HasPrefix(trimmed, prefix) || !strings.HasSuffix(trimmed, "__") {
		return 0, 0, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(trimmed, prefix), "__")
	parts := strings.SplitN(body, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	seq, err1 := strconv.Atoi(parts[0])
	exitCode, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return seq, exitCode, true
}

// demuxReader adapts a FrameDemuxer (which hands back discrete frames)
// to the io.Reader interface bufio.Reader expects, concatenating stdout
// and stderr frames in arrival order. Session output is not split by
// stream, matching a real interactive shell's combined transcript.
type demuxReader struct {
	d       *transport.FrameDemuxer
	pending []byte
}

func (r *demuxReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		f, err := r.d.Next()
		if err != nil {
			return 0, err
		}
		r.pending = f.Data
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
