package logpipe

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndTail(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, "app", 10, 3)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Write("stdout", "hello"))
	require.NoError(t, p.Write("stderr", "world"))

	lines, err := p.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "hello"))
	assert.True(t, strings.Contains(lines[1], "world"))
}

func TestSubscribeReceivesLiveLines(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, "app", 10, 3)
	require.NoError(t, err)
	defer p.Close()

	ch, unsubscribe := p.Subscribe(4)
	defer unsubscribe()

	require.NoError(t, p.Write("stdout", "live line"))

	select {
	case line := <-ch:
		assert.Equal(t, "live line", line.Text)
		assert.Equal(t, "stdout", line.Stream)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast line")
	}
}

func TestFilesAreFlatUnderDir(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, "site", 10, 3)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Write("stdout", "hello"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "site.log", entries[0].Name())
	assert.False(t, entries[0].IsDir())
}

func TestRotationCapsFileCount(t *testing.T) {
	dir := t.TempDir()
	// Tiny max size forces rotation on nearly every write.
	p, err := New(dir, "app", 0, 2)
	require.NoError(t, err)
	p.maxSizeByte = 1
	defer p.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Write("stdout", "x"))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// app.log + at most maxFiles rotated logs
	assert.LessOrEqual(t, len(entries), 3)
}
