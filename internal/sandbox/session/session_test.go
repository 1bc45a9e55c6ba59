package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentinel_Matches(t *testing.T) {
	seq, exitCode, ok := parseSentinel("__PD_abc-123_4_0__\n", "abc-123")
	assert.True(t, ok)
	assert.Equal(t, 4, seq)
	assert.Equal(t, 0, exitCode)
}

func TestParseSentinel_NonZeroExit(t *testing.T) {
	seq, exitCode, ok := parseSentinel("__PD_abc-123_7_127__\n", "abc-123")
	assert.True(t, ok)
	assert.Equal(t, 7, seq)
	assert.Equal(t, 127, exitCode)
}

func TestParseSentinel_IgnoresOtherSessions(t *testing.T) {
	_, _, ok := parseSentinel("__PD_other-session_1_0__\n", "abc-123")
	assert.False(t, ok)
}

func TestParseSentinel_IgnoresOrdinaryOutput(t *testing.T) {
	_, _, ok := parseSentinel("this looks like __PD_abc-123_1_0__ but has a prefix\n", "abc-123")
	assert.False(t, ok)
}

func TestParseSentinel_RequiresWellFormedBody(t *testing.T) {
	_, _, ok := parseSentinel("__PD_abc-123_not-a-number__\n", "abc-123")
	assert.False(t, ok)
}
