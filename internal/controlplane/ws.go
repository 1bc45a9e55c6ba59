package controlplane

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/deftio/pocketdock/internal/sandbox"
	"github.com/deftio/pocketdock/internal/sandbox/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser dashboards serving this control surface are expected to be
	// same-origin; a dedicated reverse proxy can tighten this further.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope exchanged over the /attach socket: the
// client sends {"cmd": "..."} lines, the server pushes {"output": "..."}
// or {"exit_code": N} frames back.
type wsMessage struct {
	Cmd      string `json:"cmd,omitempty"`
	Output   string `json:"output,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleAttach upgrades to a WebSocket and bridges it to a persistent
// session.Session, mirroring `pocketdock shell` for browser clients.
func (s *Server) handleAttach(c echo.Context) error {
	h, err := s.mgr.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return statusFromErr(err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// gorilla/websocket forbids concurrent writes on one connection; the
	// session's OnOutput callback fires on the reader goroutine while the
	// loop below writes from this one, so both go through writeMu.
	var writeMu sync.Mutex
	writeJSON := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	sess, err := attachSession(c, h)
	if err != nil {
		writeJSON(wsMessage{Error: err.Error()})
		return nil
	}
	defer sess.Close()

	sess.OnOutput(func(line string) {
		writeJSON(wsMessage{Output: line})
	})

	for {
		var in wsMessage
		if err := conn.ReadJSON(&in); err != nil {
			return nil
		}
		res, err := sess.SendAndWait(c.Request().Context(), in.Cmd)
		if err != nil {
			writeJSON(wsMessage{Error: err.Error()})
			return nil
		}
		code := res.ExitCode
		if err := writeJSON(wsMessage{Output: res.Output, ExitCode: &code}); err != nil {
			return nil
		}
	}
}

func attachSession(c echo.Context, h *sandbox.Handle) (*session.Session, error) {
	log.Debug().Str("container", h.ID).Msg("controlplane attach")
	return session.Open(c.Request().Context(), h.Engine(), h.ID)
}
