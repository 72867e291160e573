// Package resource samples CPU and memory usage for a running app process
// using gopsutil, the way the platform's system-wide metrics endpoint
// samples the host.
package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Sample is a single point-in-time resource reading for one process.
type Sample struct {
	PID         int32     `json:"pid"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryBytes uint64    `json:"memory_bytes"`
	SampledAt   time.Time `json:"sampled_at"`
}

// Snapshot is one named app's resource reading as published to periodic
// sweep subscribers, with memory already converted to the MB unit
// consumers expect.
type Snapshot struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// Sampler reads resource usage for a single OS process by PID.
type Sampler struct {
	pid int32
	ps  *process.Process
}

// NewSampler prepares a sampler for the process identified by pid. No
// handle is opened here: the process is resolved on the first successful
// Sample call and that handle is reused afterwards, so the process need not
// exist yet when NewSampler is called.
func NewSampler(pid int) *Sampler {
	return &Sampler{pid: int32(pid)}
}

// Sample takes a fresh CPU/memory reading. CPU percent is measured over a
// short blocking interval, matching gopsutil's non-cumulative percent API.
func (s *Sampler) Sample(ctx context.Context) (Sample, error) {
	if s.ps == nil {
		ps, err := process.NewProcessWithContext(ctx, s.pid)
		if err != nil {
			return Sample{}, fmt.Errorf("resource: process %d not found: %w", s.pid, err)
		}
		s.ps = ps
	}

	cpuPercent, err := s.ps.PercentWithContext(ctx, 200*time.Millisecond)
	if err != nil {
		return Sample{}, fmt.Errorf("resource: failed to read cpu percent for pid %d: %w", s.pid, err)
	}

	memInfo, err := s.ps.MemoryInfoWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("resource: failed to read memory info for pid %d: %w", s.pid, err)
	}

	return Sample{
		PID:         s.pid,
		CPUPercent:  cpuPercent,
		MemoryBytes: memInfo.RSS,
		SampledAt:   time.Now(),
	}, nil
}
