//go:build integration

// Package integration exercises internal/sandbox and internal/engine
// against a real Podman or Docker socket. Run with:
//
//	go test -tags integration ./tests/integration/...
package integration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/sandbox"
	"github.com/deftio/pocketdock/internal/sandbox/session"
)

const testImage = "alpine:3.20"

// requireEngine skips the test if no Docker/Podman socket is reachable,
// using testcontainers-go's own provider probe as a second opinion
// alongside our transport.DetectSocket.
func requireEngine(t *testing.T) (*engine.Engine, *sandbox.Manager) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	if _, err := testcontainers.ProviderDocker.GetProvider(); err != nil {
		t.Skipf("no container provider available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	socket, err := transport.DetectSocket(ctx)
	if err != nil {
		t.Skipf("no engine socket detected: %v", err)
	}

	eng := engine.New(socket)
	if err := eng.Ping(ctx); err != nil {
		t.Skipf("engine at %s unreachable: %v", socket, err)
	}

	return eng, sandbox.NewManager(eng, socket, 30*time.Second)
}

func newTestHandle(t *testing.T, mgr *sandbox.Manager) *sandbox.Handle {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	h, err := mgr.Create(ctx, sandbox.CreateSpec{
		Image: testImage,
		Cmd:   []string{"sleep", "infinity"},
		Name:  "pocketdock-it-" + t.Name(),
	})
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = mgr.Destroy(ctx, h.ID, true)
	})
	return h
}

func TestRunBlocking_EchoesOutput(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.Run(ctx, sandbox.RunOptions{Cmd: []string{"echo hello"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if res.Stderr != "" {
		t.Errorf("stderr = %q, want empty", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if !res.Ok() {
		t.Error("expected Ok() true")
	}
	if res.Duration <= 0 {
		t.Error("expected Duration > 0")
	}
}

func TestRunBlocking_NonZeroExit(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.Run(ctx, sandbox.RunOptions{Cmd: []string{"exit 7"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", res.ExitCode)
	}
	if res.Ok() {
		t.Error("expected Ok() false for non-zero exit")
	}
}

func TestRunBlocking_Timeout(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.Run(ctx, sandbox.RunOptions{Cmd: []string{"sleep 30"}, Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut true")
	}
	if res.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", res.ExitCode)
	}
	if res.Ok() {
		t.Error("expected Ok() false for a timed-out run")
	}

	ok, err := h.Run(ctx, sandbox.RunOptions{Cmd: []string{"echo ok"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run after timeout: %v", err)
	}
	if ok.Stdout != "ok\n" {
		t.Errorf("stdout after timeout = %q, want %q", ok.Stdout, "ok\n")
	}
}

func TestRunStreaming_DeliversChunks(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := h.RunStreaming(ctx, sandbox.RunOptions{Cmd: []string{"echo one; echo two"}})
	if err != nil {
		t.Fatalf("run streaming: %v", err)
	}
	defer stream.Close()

	var out []byte
	for {
		chunk, err := stream.Next()
		if err != nil {
			break
		}
		out = append(out, chunk.Data...)
	}
	if string(out) != "one\ntwo\n" {
		t.Errorf("streamed output = %q, want %q", out, "one\ntwo\n")
	}
}

func TestRunDetached_PeekThenRead(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dp, err := h.RunDetached(ctx, sandbox.RunOptions{Cmd: []string{"echo detached"}})
	if err != nil {
		t.Fatalf("run detached: %v", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if _, err := dp.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	stdout1, _, _ := dp.Peek()
	stdout2, _, _ := dp.Peek()
	if string(stdout1) != string(stdout2) {
		t.Error("two Peeks in a row should return the same snapshot")
	}

	drained, _, _ := dp.Read()
	if string(drained) != string(stdout1) {
		t.Error("Read should return the same content Peek saw before it")
	}

	stdoutAfter, stderrAfter, _ := dp.Read()
	if len(stdoutAfter) != 0 || len(stderrAfter) != 0 {
		t.Error("Read immediately after Read on a quiescent process should be empty")
	}
}

func TestFilesPushListPull(t *testing.T) {
	_, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Push(ctx, "/tmp/pd-test", map[string][]byte{"a.txt": []byte("contents")}); err != nil {
		t.Fatalf("push: %v", err)
	}

	entries, err := h.ListFiles(ctx, "/tmp/pd-test")
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name == "a.txt" {
			found = true
		}
	}
	if !found {
		t.Fatal("a.txt not found after push")
	}

	pulled, err := h.Pull(ctx, "/tmp/pd-test")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if string(pulled["a.txt"]) != "contents" {
		t.Errorf("pulled content = %q, want %q", pulled["a.txt"], "contents")
	}
}

func TestSession_SendAndWaitPreservesBoundaries(t *testing.T) {
	eng, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := session.Open(ctx, eng, h.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer sess.Close()

	res, err := sess.SendAndWait(ctx, "echo first")
	if err != nil {
		t.Fatalf("send and wait: %v", err)
	}
	if res.Output != "first\n" {
		t.Errorf("first output = %q, want %q", res.Output, "first\n")
	}

	res2, err := sess.SendAndWait(ctx, "echo second; (exit 3)")
	if err != nil {
		t.Fatalf("send and wait: %v", err)
	}
	if res2.Output != "second\n" {
		t.Errorf("second output = %q, want %q", res2.Output, "second\n")
	}
	if res2.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res2.ExitCode)
	}
}

func TestSession_SendIsFireAndForget(t *testing.T) {
	eng, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := session.Open(ctx, eng, h.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer sess.Close()

	var received []string
	sess.OnOutput(func(line string) { received = append(received, line) })

	if err := sess.Send("echo fire-and-forget"); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(received) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if len(received) == 0 {
		t.Fatal("expected OnOutput to observe the fire-and-forget command's output")
	}
}

func TestSession_SendAfterCloseRaises(t *testing.T) {
	eng, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := session.Open(ctx, eng, h.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if err := sess.Send("cd /tmp"); err != nil {
		t.Fatalf("send: %v", err)
	}
	r, err := sess.SendAndWait(ctx, "pwd")
	if err != nil {
		t.Fatalf("send and wait: %v", err)
	}
	if strings.TrimSpace(r.Output) != "/tmp" {
		t.Errorf("pwd = %q, want /tmp", r.Output)
	}
	if r.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", r.ExitCode)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sess.Send("anything"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("send after close = %v, want session.ErrClosed", err)
	}
}

func TestCreate_MemLimitRoundTrip(t *testing.T) {
	_, mgr := requireEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const memLimit = 64 * 1024 * 1024
	h, err := mgr.Create(ctx, sandbox.CreateSpec{
		Image:       testImage,
		Cmd:         []string{"sleep", "infinity"},
		Name:        "pocketdock-it-" + t.Name(),
		MemoryBytes: memLimit,
	})
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = mgr.Destroy(ctx, h.ID, true)
	})

	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := h.WriteFile(ctx, "/t.bin", payload, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := h.ReadFile(ctx, "/t.bin")
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("read_file did not return the exact bytes written")
	}

	info, err := h.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.MemoryLimit != memLimit {
		t.Errorf("memory_limit_bytes = %d, want %d", info.MemoryLimit, memLimit)
	}
}

func TestRun_TwoSiblingContainersRunInParallel(t *testing.T) {
	_, mgr := requireEngine(t)
	a := newTestHandle(t, mgr)
	b := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type outcome struct {
		res *sandbox.ExecResult
		err error
	}
	resA := make(chan outcome, 1)
	resB := make(chan outcome, 1)

	start := time.Now()
	go func() {
		r, err := a.Run(ctx, sandbox.RunOptions{Cmd: []string{"sleep 2 && echo a"}, Timeout: 10 * time.Second})
		resA <- outcome{r, err}
	}()
	go func() {
		r, err := b.Run(ctx, sandbox.RunOptions{Cmd: []string{"sleep 2 && echo b"}, Timeout: 10 * time.Second})
		resB <- outcome{r, err}
	}()

	oa := <-resA
	ob := <-resB
	elapsed := time.Since(start)

	if oa.err != nil {
		t.Fatalf("A run: %v", oa.err)
	}
	if ob.err != nil {
		t.Fatalf("B run: %v", ob.err)
	}
	if oa.res.Stdout != "a\n" {
		t.Errorf("A stdout = %q, want %q", oa.res.Stdout, "a\n")
	}
	if ob.res.Stdout != "b\n" {
		t.Errorf("B stdout = %q, want %q", ob.res.Stdout, "b\n")
	}
	if elapsed > 3500*time.Millisecond {
		t.Errorf("parallel runs took %s, expected ~2s not ~4s", elapsed)
	}
}

func TestReboot_RecoversStoppedContainer(t *testing.T) {
	eng, mgr := requireEngine(t)
	h := newTestHandle(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := eng.ContainerStop(ctx, h.ID, 3); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := h.Reboot(ctx, 3); err != nil {
		t.Fatalf("reboot: %v", err)
	}

	info, err := h.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !info.Running {
		t.Error("expected container to be running after reboot")
	}
}
