// Package logpipe captures an app process's stdout/stderr, persists it to a
// size-rotated log file, and fans live lines out to subscribed readers (the
// same broadcast shape the platform uses to stream container logs over a
// websocket).
package logpipe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Line is one piece of captured output.
type Line struct {
	Stream string `json:"stream"` // "stdout" or "stderr"
	Text   string `json:"text"`
}

// Pipe owns one app's log file and its live subscribers. It is safe for
// concurrent use by the process supervisor's stdout/stderr readers and by
// HTTP handlers subscribing readers.
type Pipe struct {
	mu          sync.Mutex
	dir         string
	name        string
	maxSizeByte int64
	maxFiles    int
	file        *os.File
	size        int64
	subscribers map[chan Line]struct{}
}

// New opens (or creates) the app's log file at dir/name.log. Every app's
// logs live flat under the same dir, distinguished by the name prefix,
// rather than one subdirectory per app.
func New(dir, name string, maxSizeMB, maxFiles int) (*Pipe, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logpipe: failed to create log dir: %w", err)
	}

	p := &Pipe{
		dir:         dir,
		name:        name,
		maxSizeByte: int64(maxSizeMB) * 1024 * 1024,
		maxFiles:    maxFiles,
		subscribers: make(map[chan Line]struct{}),
	}

	if err := p.openCurrent(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipe) currentPath() string {
	return filepath.Join(p.dir, p.name+".log")
}

func (p *Pipe) rotatedPath(n int) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s.log.%d", p.name, n))
}

func (p *Pipe) openCurrent() error {
	f, err := os.OpenFile(p.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logpipe: failed to open current log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("logpipe: failed to stat current log: %w", err)
	}
	p.file = f
	p.size = info.Size()
	return nil
}

// Write appends one line to the log file, rotating first if needed, and
// broadcasts it to every live subscriber.
func (p *Pipe) Write(stream, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := text + "\n"
	if p.size+int64(len(line)) > p.maxSizeByte {
		if err := p.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := p.file.WriteString(fmt.Sprintf("[%s] %s", stream, line))
	if err != nil {
		return fmt.Errorf("logpipe: failed to write log line: %w", err)
	}
	p.size += int64(n)

	p.broadcastLocked(Line{Stream: stream, Text: text})
	return nil
}

// rotateLocked renames name.log -> name.log.1, shifting older numbered
// files up and dropping anything beyond maxFiles. Caller must hold p.mu.
func (p *Pipe) rotateLocked() error {
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("logpipe: failed to close current log before rotation: %w", err)
	}

	oldest := p.rotatedPath(p.maxFiles)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", oldest).Msg("failed to remove oldest rotated log")
	}

	for i := p.maxFiles - 1; i >= 1; i-- {
		src := p.rotatedPath(i)
		dst := p.rotatedPath(i + 1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("logpipe: failed to shift rotated log %s: %w", src, err)
		}
	}

	if err := os.Rename(p.currentPath(), p.rotatedPath(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("logpipe: failed to rotate current log: %w", err)
	}

	return p.openCurrent()
}

// CaptureStream copies lines from r into the pipe, tagging each with
// streamName. It blocks until r is exhausted, so callers run it in its own
// goroutine per stdout/stderr pipe.
func (p *Pipe) CaptureStream(streamName string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := p.Write(streamName, scanner.Text()); err != nil {
			log.Error().Err(err).Str("stream", streamName).Msg("failed to persist log line")
		}
	}
}

// Subscribe registers a channel that receives every line written from this
// point forward. The returned func unsubscribes and closes the channel.
func (p *Pipe) Subscribe(buffer int) (<-chan Line, func()) {
	ch := make(chan Line, buffer)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	unsubscribe := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// broadcastLocked delivers line to every subscriber without blocking; a
// slow subscriber drops the line rather than stalling the writer. Caller
// must hold p.mu.
func (p *Pipe) broadcastLocked(line Line) {
	for ch := range p.subscribers {
		select {
		case ch <- line:
		default:
			log.Debug().Msg("log subscriber channel full, dropping line")
		}
	}
}

// Tail returns the last n lines of the combined current log file.
func (p *Pipe) Tail(n int) ([]string, error) {
	p.mu.Lock()
	path := p.currentPath()
	p.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("logpipe: failed to read current log: %w", err)
	}

	lines := splitNonEmptyLines(string(data))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Close closes the underlying file and all subscriber channels.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
	return p.file.Close()
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if line := s[start:i]; line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if start < len(s) {
		if line := s[start:]; line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
