package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCmd_SingleStringUsesShell(t *testing.T) {
	h := &Handle{}
	cmd := h.buildCmd(RunOptions{Cmd: []string{"echo hi && exit 3"}})
	assert.Equal(t, []string{"sh", "-c", "echo hi && exit 3"}, cmd)
}

func TestBuildCmd_ArgvPassedThrough(t *testing.T) {
	h := &Handle{}
	cmd := h.buildCmd(RunOptions{Cmd: []string{"ls", "-la", "/tmp"}})
	assert.Equal(t, []string{"ls", "-la", "/tmp"}, cmd)
}

func TestBuildCmd_LangWrapsInInterpreter(t *testing.T) {
	h := &Handle{}
	cmd := h.buildCmd(RunOptions{Cmd: []string{"print(1+1)"}, Lang: "python"})
	assert.Equal(t, []string{"python3", "-c", "print(1+1)"}, cmd)

	cmd = h.buildCmd(RunOptions{Cmd: []string{"console.log(1)"}, Lang: "node"})
	assert.Equal(t, []string{"node", "-e", "console.log(1)"}, cmd)

	cmd = h.buildCmd(RunOptions{Cmd: []string{"echo a", "echo b"}, Lang: "bash"})
	assert.Equal(t, []string{"bash", "-c", "echo a echo b"}, cmd)
}
