package resource

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerSamplesRunningProcess(t *testing.T) {
	cmd := exec.Command("sleep", "2")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	sampler := NewSampler(cmd.Process.Pid)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sample, err := sampler.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(cmd.Process.Pid), sample.PID)
	assert.GreaterOrEqual(t, sample.CPUPercent, 0.0)
	assert.False(t, sample.SampledAt.IsZero())
}

func TestSamplerMissingProcess(t *testing.T) {
	sampler := NewSampler(999999)
	_, err := sampler.Sample(context.Background())
	assert.Error(t, err)
}
