package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/splitget/splitget/internal/domain"
)

// ProgressSampler periodically overwrites a one-line progress report for
// a running job. It only reads the job's counters; removing it changes
// nothing about the download itself.
type ProgressSampler struct {
	job      *domain.DownloadJob
	interval time.Duration
	out      io.Writer
}

func NewProgressSampler(job *domain.DownloadJob, interval time.Duration, out io.Writer) *ProgressSampler {
	if interval <= 0 {
		interval = defaultProgressEvery
	}
	return &ProgressSampler{job: job, interval: interval, out: out}
}

// Run ticks until ctx is cancelled. Each tick computes the instantaneous
// rate from the bytes written since the previous tick.
func (p *ProgressSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastBytes int64
	lastTick := time.Now()

	for {
		select {
		case <-ticker.C:
			current := p.job.BytesWritten.Load()
			now := time.Now()

			speedKBps := float64(current-lastBytes) / now.Sub(lastTick).Seconds() / 1024
			lastBytes = current
			lastTick = now

			p.render(speedKBps, false)
		case <-ctx.Done():
			return
		}
	}
}

// Finish prints the summary line with the average rate over the whole job.
func (p *ProgressSampler) Finish() {
	current := p.job.BytesWritten.Load()

	// Guard against division by zero or sub-millisecond durations
	seconds := time.Since(p.job.StartedAt).Seconds()
	if seconds < 0.1 {
		seconds = 0.1
	}

	avgKBps := float64(current) / seconds / 1024
	if current == 0 {
		avgKBps = 0
	}

	p.render(avgKBps, true)
	fmt.Fprintln(p.out)
}

func (p *ProgressSampler) render(speedKBps float64, final bool) {
	current := p.job.BytesWritten.Load()
	total := p.job.TotalBytes
	if total == 0 {
		return
	}

	elapsed := time.Since(p.job.StartedAt)
	percent := float64(current) / float64(total) * 100

	etaStr := "calc..."
	if final {
		percent = 100.0
	} else {
		avgBytesPerSec := float64(current) / elapsed.Seconds()
		if avgBytesPerSec > 0 {
			remainingBytes := total - current
			etaSeconds := int(float64(remainingBytes) / avgBytesPerSec)
			etaStr = (time.Duration(etaSeconds) * time.Second).String()
		}
	}

	// Progress Bar go brrr [====>   ]
	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	// Print UI: [Bar] 50% | Speed: 2048.0 KB/s | ETA: 2m30s | 500/1000 KB
	speedLabel := "Speed"
	timeLabel := "ETA"
	if final {
		speedLabel = "Avg"
		timeLabel = "Time"
		etaStr = elapsed.Truncate(time.Second).String()
	}

	fmt.Fprintf(p.out, "\r[%s] %5.1f%% | %s: %8.1f KB/s | %s: %-7s | %d/%d KB      ",
		bar, percent, speedLabel, speedKBps, timeLabel, etaStr, current/1024, total/1024)
}
