package sshgateway

import (
	"bufio"
	"io"
)

// newLineScanner wraps an io.Reader (an SSH session's stdin) in a
// bufio.Scanner configured the same way internal/cli's shell command
// reads from os.Stdin.
func newLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}
