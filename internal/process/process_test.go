package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndStopLongRunningProcess(t *testing.T) {
	s := New("test-app", nil, 5, time.Minute)

	err := s.Start(StartSpec{Command: "sleep", Args: []string{"5"}, Dir: t.TempDir(), Port: 5200})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, s.State())
	assert.NotZero(t, s.PID())

	require.NoError(t, s.Stop(2*time.Second))

	assert.Eventually(t, func() bool {
		return s.State() == StateStopped
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStartRejectsAlreadyRunning(t *testing.T) {
	s := New("test-app", nil, 5, time.Minute)
	require.NoError(t, s.Start(StartSpec{Command: "sleep", Args: []string{"5"}, Dir: t.TempDir(), Port: 5200}))
	defer s.Stop(time.Second)

	err := s.Start(StartSpec{Command: "sleep", Args: []string{"5"}, Dir: t.TempDir(), Port: 5200})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestCrashLoopProtectionAfterRepeatedExits(t *testing.T) {
	s := New("flaky-app", nil, 2, time.Minute)

	require.NoError(t, s.Start(StartSpec{Command: "sh", Args: []string{"-c", "exit 1"}, Dir: t.TempDir(), Port: 5200}))

	assert.Eventually(t, func() bool {
		return s.State() == StateCrashLoop
	}, 3*time.Second, 50*time.Millisecond)

	err := s.Start(StartSpec{Command: "sh", Args: []string{"-c", "exit 1"}, Dir: t.TempDir(), Port: 5200})
	assert.ErrorIs(t, err, ErrCrashLooping)

	require.NoError(t, s.Unlock())
	assert.Equal(t, StateStopped, s.State())
}

func TestStopWithNothingRunning(t *testing.T) {
	s := New("test-app", nil, 5, time.Minute)
	err := s.Stop(time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStopClearsRestartHistoryBeforeSignaling(t *testing.T) {
	s := New("flaky-app", nil, 2, time.Minute)
	s.mu.Lock()
	s.restartTimestamps = []time.Time{time.Now(), time.Now()}
	s.mu.Unlock()

	require.NoError(t, s.Start(StartSpec{Command: "sleep", Args: []string{"5"}, Dir: t.TempDir(), Port: 5200}))
	require.NoError(t, s.Stop(2*time.Second))

	s.mu.Lock()
	count := len(s.restartTimestamps)
	s.mu.Unlock()
	assert.Zero(t, count)
}

func TestStableRunClearsRestartHistory(t *testing.T) {
	old := stableRunDuration
	stableRunDuration = 50 * time.Millisecond
	defer func() { stableRunDuration = old }()

	s := New("flaky-app", nil, 2, time.Minute)
	require.NoError(t, s.Start(StartSpec{Command: "sleep", Args: []string{"5"}, Dir: t.TempDir(), Port: 5200}))
	defer s.Stop(time.Second)

	s.mu.Lock()
	s.restartTimestamps = []time.Time{time.Now(), time.Now()}
	s.mu.Unlock()

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.restartTimestamps) == 0
	}, time.Second, 10*time.Millisecond)
}
