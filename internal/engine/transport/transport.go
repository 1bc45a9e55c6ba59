// Package transport implements a minimal HTTP/1.1 client over a Unix
// domain socket, speaking just enough of the protocol to drive a
// Docker-compatible container engine: request/response exchanges,
// chunked transfer-encoding, and the bidirectional exec-stream upgrade
// used by attach/exec-start. It has no third-party dependency — see
// DESIGN.md for why that's the one place in this repo that's deliberate.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Client issues one HTTP/1.1 exchange per call over a fresh connection to
// SocketPath. Connections are never pooled or reused (spec §9
// "connection-per-operation"): a Unix socket dial costs microseconds, and
// pooling would either serialize unrelated operations or need per-call
// locking that buys nothing.
type Client struct {
	SocketPath string
}

// Exchange is one in-flight HTTP response. For ordinary control calls the
// caller reads it to EOF and closes it. For exec-start/attach calls, the
// caller also Writes to it — after the response headers, the underlying
// socket becomes a raw bidirectional pipe to the container's exec stdin,
// and Exchange.Write passes bytes straight to the socket.
type Exchange struct {
	StatusCode int
	Header     http.Header

	conn    net.Conn
	body    io.Reader // chunked- or length-decoding reader, or conn itself
	closed  bool
}

func (e *Exchange) Read(p []byte) (int, error) {
	if e.body == nil {
		return 0, io.EOF
	}
	return e.body.Read(p)
}

// Write sends raw bytes on the underlying connection (container stdin).
// Only meaningful on exchanges obtained from an attached exec-start call.
func (e *Exchange) Write(p []byte) (int, error) {
	return e.conn.Write(p)
}

func (e *Exchange) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.conn.Close()
}

// Do performs one request/response exchange. headers may be nil. body may
// be nil for requests with no payload. The caller owns the returned
// Exchange and must Close it.
func (c *Client) Do(ctx context.Context, method, path string, headers http.Header, body io.Reader) (*Exchange, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, &SocketConnectionError{Path: c.SocketPath, Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := writeRequest(conn, method, path, headers, body); err != nil {
		conn.Close()
		return nil, &SocketCommunicationError{Op: method + " " + path, Err: err}
	}

	br := bufio.NewReader(conn)
	status, respHeader, err := readStatusAndHeaders(br)
	if err != nil {
		conn.Close()
		return nil, &SocketCommunicationError{Op: method + " " + path, Err: err}
	}

	ex := &Exchange{StatusCode: status, Header: respHeader, conn: conn}

	switch {
	case strings.EqualFold(respHeader.Get("Transfer-Encoding"), "chunked"):
		ex.body = newChunkedReader(br)
	case respHeader.Get("Content-Length") != "":
		n, convErr := strconv.ParseInt(respHeader.Get("Content-Length"), 10, 64)
		if convErr != nil {
			conn.Close()
			return nil, &SocketCommunicationError{Op: method + " " + path, Err: convErr}
		}
		ex.body = io.LimitReader(br, n)
	default:
		// No framing header: either an empty body, or (exec-start attach)
		// the connection itself becomes the stream from here on.
		ex.body = br
	}

	return ex, nil
}

func writeRequest(w io.Writer, method, path string, headers http.Header, body io.Reader) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(bw, "Host: localhost\r\n")

	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		fmt.Fprintf(bw, "Content-Length: %d\r\n", len(payload))
	}

	for key, values := range headers {
		for _, v := range values {
			fmt.Fprintf(bw, "%s: %s\r\n", key, v)
		}
	}
	fmt.Fprintf(bw, "\r\n")

	if len(payload) > 0 {
		if _, err := bw.Write(payload); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readStatusAndHeaders(br *bufio.Reader) (int, http.Header, error) {
	tp := textproto.NewReader(br)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return 0, nil, fmt.Errorf("reading status line: %w", err)
	}

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return 0, nil, fmt.Errorf("malformed status line %q", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("malformed status code in %q: %w", statusLine, err)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return 0, nil, fmt.Errorf("reading headers: %w", err)
	}

	return status, http.Header(mimeHeader), nil
}
