// Package process supervises a single app's OS process: spawning it with
// the classifier's start spec, capturing its output into a log pipe,
// enforcing a bounded crash-restart policy, and stopping it with a
// SIGTERM-then-SIGKILL grace window.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glinrdock-paas/supervisor/internal/logpipe"
)

// State is the supervised process's lifecycle state.
type State string

const (
	StateStopped    State = "stopped"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateCrashLoop  State = "crash_loop"
	StateRestarting State = "restarting"
)

// stableRunDuration is how long a process must run without exiting before
// its crash-restart history is forgiven. Variable rather than const so
// tests can shrink it instead of sleeping 30s.
var stableRunDuration = 30 * time.Second

// ErrCrashLooping is returned by Start when the process is locked in crash
// loop protection and has not been explicitly unlocked.
var ErrCrashLooping = errors.New("process: app is crash-looping and locked")

// ErrAlreadyRunning is returned by Start when the process is already up.
var ErrAlreadyRunning = errors.New("process: already running")

// ErrNotRunning is returned by Stop when there is nothing to stop.
var ErrNotRunning = errors.New("process: not running")

// StartSpec is the verbatim (command, args) pair to spawn, plus the
// directory to run it in and the port to inject via the PORT env var.
type StartSpec struct {
	Command string
	Args    []string
	Dir     string
	Port    int
	Env     map[string]string
}

// Supervisor owns one app's process lifecycle.
type Supervisor struct {
	mu sync.Mutex

	name string
	logs *logpipe.Pipe

	cmd   *exec.Cmd
	done  chan struct{}
	state State
	pid   int

	restartMax    int
	restartWindow time.Duration

	restartTimestamps []time.Time
	stableTimer       *time.Timer

	onStateChange func(State)
}

// New creates a Supervisor for the named app. restartMax restarts are
// allowed within restartWindow before the app is locked into crash loop
// protection.
func New(name string, logs *logpipe.Pipe, restartMax int, restartWindow time.Duration) *Supervisor {
	return &Supervisor{
		name:          name,
		logs:          logs,
		state:         StateStopped,
		restartMax:    restartMax,
		restartWindow: restartWindow,
	}
}

// OnStateChange registers a callback invoked whenever the supervisor's
// state transitions. Used by the registry to persist state changes.
func (s *Supervisor) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the current process id, or 0 if not running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Start spawns the process described by spec and begins watching it for
// exit. It returns once the process has been launched; it does not wait
// for the process to become healthy.
func (s *Supervisor) Start(spec StartSpec) error {
	s.mu.Lock()
	if s.state == StateRunning || s.state == StateRestarting {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.state == StateCrashLoop {
		s.mu.Unlock()
		return ErrCrashLooping
	}
	s.mu.Unlock()

	return s.spawn(spec)
}

func (s *Supervisor) spawn(spec StartSpec) error {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	env := []string{fmt.Sprintf("PORT=%d", spec.Port)}
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("process: failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("process: failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("process: failed to start %s: %w", spec.Command, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.done = done
	s.pid = cmd.Process.Pid
	s.setStateLocked(StateRunning)
	s.stableTimer = time.AfterFunc(stableRunDuration, func() { s.clearRestartHistoryIfStable(done) })
	s.mu.Unlock()

	if s.logs != nil {
		go s.logs.CaptureStream("stdout", stdout)
		go s.logs.CaptureStream("stderr", stderr)
	}

	go s.watch(spec, cmd, done)

	log.Info().Str("app", s.name).Int("pid", s.pid).Str("command", spec.Command).Msg("process started")
	return nil
}

// watch blocks until the process exits, then applies the crash-restart
// policy. It is the sole caller of cmd.Wait for this spawn.
func (s *Supervisor) watch(spec StartSpec, cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	s.mu.Lock()
	if s.stableTimer != nil {
		s.stableTimer.Stop()
	}
	wasStopping := s.state == StateStopping || s.state == StateStopped
	s.pid = 0
	s.mu.Unlock()

	if wasStopping {
		// Stop() already transitioned state; this exit was expected.
		return
	}

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	log.Warn().Str("app", s.name).Int("exit_code", exitCode).Msg("process exited unexpectedly")

	s.mu.Lock()
	s.recordRestartLocked()
	shouldCrashLoop := s.shouldEnterCrashLoopLocked()
	if shouldCrashLoop {
		s.setStateLocked(StateCrashLoop)
		s.mu.Unlock()
		log.Error().Str("app", s.name).Int("restart_count", len(s.restartTimestamps)).Msg("app entered crash loop protection")
		return
	}
	s.setStateLocked(StateRestarting)
	s.mu.Unlock()

	if err := s.spawn(spec); err != nil {
		log.Error().Err(err).Str("app", s.name).Msg("automatic restart failed")
		s.mu.Lock()
		s.setStateLocked(StateCrashLoop)
		s.mu.Unlock()
	}
}

// recordRestartLocked appends now to the restart timestamp window,
// dropping entries older than restartWindow. Caller must hold s.mu.
func (s *Supervisor) recordRestartLocked() {
	now := time.Now()
	cutoff := now.Add(-s.restartWindow)

	var kept []time.Time
	for _, t := range s.restartTimestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.restartTimestamps = kept
}

// shouldEnterCrashLoopLocked reports whether the crashes recorded within the
// sliding window (including the one just recorded) exceed restartMax, i.e.
// restartMax restarts have already been spent. Caller must hold s.mu.
func (s *Supervisor) shouldEnterCrashLoopLocked() bool {
	return len(s.restartTimestamps) > s.restartMax
}

// clearRestartHistoryIfStable forgives restart history once the spawn
// identified by done has run uninterrupted for stableRunDuration. done
// guards against a stale timer from an earlier spawn firing after a
// restart or stop has already moved the supervisor on.
func (s *Supervisor) clearRestartHistoryIfStable(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != done || s.state != StateRunning {
		return
	}
	s.restartTimestamps = nil
}

// Unlock clears crash loop protection so the app can be started again,
// resetting the restart window.
func (s *Supervisor) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCrashLoop {
		return fmt.Errorf("process: app %q is not crash-looping", s.name)
	}
	s.restartTimestamps = nil
	s.setStateLocked(StateStopped)
	return nil
}

// Stop sends SIGTERM to the process group, then SIGKILL if it hasn't
// exited within grace.
func (s *Supervisor) Stop(grace time.Duration) error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	running := s.state == StateRunning || s.state == StateRestarting
	s.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil || done == nil {
		return ErrNotRunning
	}

	s.mu.Lock()
	s.restartTimestamps = nil
	if s.stableTimer != nil {
		s.stableTimer.Stop()
	}
	s.setStateLocked(StateStopping)
	s.mu.Unlock()

	syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(grace):
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
	}

	s.mu.Lock()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	log.Info().Str("app", s.name).Msg("process stopped")
	return nil
}

// StopWithContext checks ctx once and returns its error if it is already
// done; otherwise it calls Stop. Cancellation of ctx after Stop has begun
// does not shorten the grace-period wait.
func (s *Supervisor) StopWithContext(ctx context.Context, grace time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.Stop(grace)
}

func (s *Supervisor) setStateLocked(state State) {
	s.state = state
	if s.onStateChange != nil {
		go s.onStateChange(state)
	}
}
