package transport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// EnvSocketOverride is consulted before any auto-detection is attempted.
const EnvSocketOverride = "POCKETDOCK_SOCKET"

// candidatePaths returns the ordered list of socket paths to probe, per
// spec §4.1: env override, rootless Podman, system Podman, Docker, then
// platform-specific Podman-machine / Docker-Desktop paths on macOS.
func candidatePaths() []string {
	var candidates []string

	if override := os.Getenv(EnvSocketOverride); override != "" {
		candidates = append(candidates, override)
	}

	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "podman", "podman.sock"))
	}

	candidates = append(candidates, "/run/podman/podman.sock", "/var/run/docker.sock")

	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			if matches, err := filepath.Glob(filepath.Join(home, ".local/share/containers/podman/machine/*/podman.sock")); err == nil {
				candidates = append(candidates, matches...)
			}
			candidates = append(candidates, filepath.Join(home, ".docker/run/docker.sock"))
		}
	}

	return candidates
}

// DetectSocket probes candidatePaths in order and returns the first one
// that both connects and answers GET /_ping successfully. It fails with
// an *EngineUnavailableError listing every path it tried.
func DetectSocket(ctx context.Context) (string, error) {
	probed := candidatePaths()
	var tried []string

	for _, path := range probed {
		tried = append(tried, path)

		conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
		if err != nil {
			continue
		}
		conn.Close()

		cl := &Client{SocketPath: path}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		resp, err := cl.Do(pingCtx, "GET", "/_ping", nil, nil)
		cancel()
		if err != nil {
			continue
		}
		resp.Close()
		if resp.StatusCode == 200 {
			return path, nil
		}
	}

	return "", &EngineUnavailableError{
		Probed: tried,
		Hint:   platformHint(),
	}
}

func platformHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "start Podman with `podman machine start`, or Docker Desktop, or set POCKETDOCK_SOCKET"
	case "linux":
		return "start rootless Podman (it listens on $XDG_RUNTIME_DIR/podman/podman.sock) or the Docker daemon, or set POCKETDOCK_SOCKET"
	default:
		return "set POCKETDOCK_SOCKET to a reachable engine socket; Windows containers are not supported"
	}
}
