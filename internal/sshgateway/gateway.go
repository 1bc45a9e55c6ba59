// Package sshgateway exposes persistent pocketdock sessions over SSH:
// `ssh -p <port> <container-id>@localhost` drops a caller straight into
// that sandbox's shell, the same session internal/controlplane's
// WebSocket attach and `pocketdock shell` both bridge to.
package sshgateway

import (
	"fmt"
	"io"
	"sync"

	gossh "github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/rs/zerolog/log"

	"github.com/deftio/pocketdock/internal/sandbox"
	"github.com/deftio/pocketdock/internal/sandbox/session"
)

// Gateway is an SSH server whose username selects the target sandbox
// and whose session is bridged to a persistent session.Session.
type Gateway struct {
	mgr *sandbox.Manager
	srv *gossh.Server
}

// New builds a Gateway bound to mgr. HostKeyPath, if empty, causes wish
// to generate and persist an ephemeral host key under the working
// directory the first time the gateway starts.
func New(mgr *sandbox.Manager, addr, hostKeyPath string) (*Gateway, error) {
	g := &Gateway{mgr: mgr}

	opts := []gossh.Option{
		wish.WithAddress(addr),
		wish.WithMiddleware(
			activeterm.Middleware(),
			g.attachMiddleware(),
		),
	}
	if hostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(hostKeyPath))
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("build ssh gateway: %w", err)
	}
	g.srv = srv
	return g, nil
}

// ListenAndServe blocks accepting connections until the gateway is
// closed or a fatal listener error occurs.
func (g *Gateway) ListenAndServe() error {
	log.Info().Str("addr", g.srv.Addr).Msg("sshgateway listening")
	return g.srv.ListenAndServe()
}

// Close stops accepting new connections.
func (g *Gateway) Close() error {
	return g.srv.Close()
}

// attachMiddleware resolves the SSH session's username as a container
// id/name and bridges stdin/stdout to a session.Session until the
// client disconnects or types exit.
func (g *Gateway) attachMiddleware() wish.Middleware {
	return func(next gossh.Handler) gossh.Handler {
		return func(s gossh.Session) {
			ctx := s.Context()
			target := s.User()

			h, err := g.mgr.Resume(ctx, target)
			if err != nil {
				fmt.Fprintf(s, "resume %s: %v\r\n", target, err)
				s.Exit(1)
				return
			}

			sess, err := session.Open(ctx, h.Engine(), h.ID)
			if err != nil {
				fmt.Fprintf(s, "open session: %v\r\n", err)
				s.Exit(1)
				return
			}
			defer sess.Close()

			// OnOutput fires on the session's reader goroutine while the
			// scan loop below writes from this one; serialize both onto
			// the same SSH channel with a mutex.
			var writeMu sync.Mutex
			write := func(b string) {
				writeMu.Lock()
				defer writeMu.Unlock()
				io.WriteString(s, b)
			}

			sess.OnOutput(func(line string) {
				write(line)
			})

			write(fmt.Sprintf("attached to %s — type 'exit' to leave\r\n", target))

			scanner := newLineScanner(s)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "exit" {
					break
				}
				res, err := sess.SendAndWait(ctx, line)
				if err != nil {
					write(fmt.Sprintf("error: %v\r\n", err))
					break
				}
				write(res.Output)
				if res.ExitCode != 0 {
					write(fmt.Sprintf("(exit %d)\r\n", res.ExitCode))
				}
			}
			next(s)
		}
	}
}
