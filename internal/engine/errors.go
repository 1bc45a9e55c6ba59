package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the taxonomy from spec §7. Use errors.Is against
// these; ContainerNotRunningError and ImageNotFoundError additionally
// carry actionable detail and satisfy errors.Is via Unwrap.
var (
	// ErrContainerNotFound means the engine returned 404 for the
	// container id. Terminal for a Handle — cannot be recovered by Reboot.
	ErrContainerNotFound = errors.New("container not found")

	// ErrContainerNotRunning means the engine returned 409 because the
	// container exists but is stopped. Recoverable via Reboot or Resume.
	ErrContainerNotRunning = errors.New("container not running")

	// ErrContainerGone is synthesized when an operation on a
	// previously-valid Handle discovers the container has been removed
	// out from under it (external `docker rm`, OOM reaper, etc).
	ErrContainerGone = errors.New("container gone")

	// ErrImageNotFound means container create failed because the named
	// image isn't present locally and couldn't be resolved.
	ErrImageNotFound = errors.New("image not found")
)

// ContainerNotRunningError augments ErrContainerNotRunning with the
// engine-reported status and last exit code, so the message is
// actionable per spec §7.
type ContainerNotRunningError struct {
	Status   string
	ExitCode int
}

func (e *ContainerNotRunningError) Error() string {
	return fmt.Sprintf("container not running (status=%s, last exit code=%d)", e.Status, e.ExitCode)
}

func (e *ContainerNotRunningError) Unwrap() error { return ErrContainerNotRunning }

// ImageNotFoundError augments ErrImageNotFound with the missing image
// reference.
type ImageNotFoundError struct {
	Image string
}

func (e *ImageNotFoundError) Error() string {
	return fmt.Sprintf("image not found: %s", e.Image)
}

func (e *ImageNotFoundError) Unwrap() error { return ErrImageNotFound }

// mapStatusError turns an engine HTTP status + body into the taxonomy
// above per spec §4.2's error-mapping table. imageOp marks endpoints
// where a 404 means "image" rather than "container".
func mapStatusError(op string, status int, body []byte, imageOp bool) error {
	switch {
	case status == 404 && imageOp:
		return &ImageNotFoundError{Image: string(body)}
	case status == 404:
		return ErrContainerNotFound
	case status == 409:
		return &ContainerNotRunningError{Status: string(body)}
	case status >= 400:
		return &SocketCommunicationError{Op: op, Status: status, Body: string(body)}
	default:
		return nil
	}
}

// SocketCommunicationError is the taxonomy's protocol-failure case for
// unexpected status codes not covered by the 404/409 mapping above.
type SocketCommunicationError struct {
	Op     string
	Status int
	Body   string
}

func (e *SocketCommunicationError) Error() string {
	return fmt.Sprintf("engine returned unexpected status %d for %s: %s", e.Status, e.Op, e.Body)
}
