package project

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndFind(t *testing.T) {
	dir := t.TempDir()

	p, err := Init(dir)
	require.NoError(t, err)
	assert.Equal(t, "dev", p.Config.DefaultProfile)

	_, err = Init(dir)
	assert.Error(t, err, "second Init on the same dir should fail")

	found, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, found.Root)
}

func TestFind_WalksUpward(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(dir)
	require.NoError(t, err)

	sub := dir + "/a/b/c"
	require.NoError(t, os.MkdirAll(sub, 0755))

	found, err := Find(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, found.Root)
}

func TestFind_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Find(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstanceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := InstanceMetadata{
		ID:          "abc123",
		ContainerID: "deadbeef",
		Name:        "my-sandbox",
		Profile:     "dev",
		Persist:     true,
		CreatedAt:   time.Now().Truncate(time.Second),
	}
	require.NoError(t, SaveInstance(dir, meta))

	loaded, err := LoadInstance(dir, "abc123")
	require.NoError(t, err)
	assert.Equal(t, meta.ContainerID, loaded.ContainerID)
	assert.Equal(t, meta.Persist, loaded.Persist)

	all, err := ListInstances(dir)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, RemoveInstance(dir, "abc123"))
	all, err = ListInstances(dir)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistoryAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	entry := HistoryEntry{InstanceID: "abc123", Command: "echo hi", ExitCode: 0, DurationMs: 12}
	require.NoError(t, AppendHistory(dir, entry))
	require.NoError(t, AppendHistory(dir, HistoryEntry{InstanceID: "abc123", Command: "false", ExitCode: 1}))

	entries, err := ReadHistory(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "echo hi", entries[0].Command)
	assert.Equal(t, 1, entries[1].ExitCode)
}

func TestPruneHistory_MaxLogsPerInstance(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, AppendHistory(dir, HistoryEntry{
			InstanceID: "abc123",
			Command:    "echo",
			Timestamp:  time.Now(),
		}))
	}

	cfg := DefaultConfig()
	cfg.MaxLogsPerInstance = 2
	cfg.RetentionDays = 0
	require.NoError(t, PruneHistory(dir, cfg))

	entries, err := ReadHistory(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPruneHistory_RetentionDays(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendHistory(dir, HistoryEntry{
		InstanceID: "old",
		Command:    "echo",
		Timestamp:  time.Now().AddDate(0, 0, -60),
	}))
	require.NoError(t, AppendHistory(dir, HistoryEntry{
		InstanceID: "new",
		Command:    "echo",
		Timestamp:  time.Now(),
	}))

	cfg := DefaultConfig()
	cfg.RetentionDays = 30
	cfg.MaxLogsPerInstance = 0
	require.NoError(t, PruneHistory(dir, cfg))

	entries, err := ReadHistory(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].InstanceID)
}
