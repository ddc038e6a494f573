package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitget/splitget/internal/domain"
)

// syncBuffer lets the sampler goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func progressJob(written, total int64) *domain.DownloadJob {
	job := &domain.DownloadJob{TotalBytes: total, StartedAt: time.Now().Add(-10 * time.Second)}
	job.BytesWritten.Store(written)
	return job
}

func TestRenderShowsPercentAndRate(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressSampler(progressJob(512*1024, 1024*1024), time.Second, &buf)

	p.render(2048.0, false)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "\r"), "line must overwrite itself")
	assert.Contains(t, line, "50.0%")
	assert.Contains(t, line, "2048.0 KB/s")
	assert.Contains(t, line, "512/1024 KB")
	assert.Contains(t, line, "ETA")
}

func TestRenderFinalLine(t *testing.T) {
	var buf bytes.Buffer
	job := progressJob(1024*1024, 1024*1024)
	p := NewProgressSampler(job, time.Second, &buf)

	p.Finish()

	line := buf.String()
	assert.Contains(t, line, "100.0%")
	assert.Contains(t, line, "Avg")
	assert.Contains(t, line, "Time")
	assert.True(t, strings.HasSuffix(line, "\n"), "final line must end the overwrite cycle")
}

func TestRenderSkipsUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressSampler(progressJob(100, 0), time.Second, &buf)

	p.render(1.0, false)
	assert.Zero(t, buf.Len())
}

func TestSamplerRunTicksAndStops(t *testing.T) {
	var buf syncBuffer
	job := progressJob(0, 1024*1024)
	p := NewProgressSampler(job, 5*time.Millisecond, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	job.BytesWritten.Store(256 * 1024)
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "25.0%")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
}
