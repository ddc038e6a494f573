package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/fetch"
	"github.com/splitget/splitget/internal/infra/logger"
)

const (
	defaultConnections    = 4
	defaultSplitThreshold = 8192
	defaultStreamRetries  = 3
	defaultProgressEvery  = 3 * time.Second
)

// Options tunes one Downloader. Zero values fall back to defaults.
type Options struct {
	// Connections is the number of parallel range requests per job.
	Connections int

	// SplitThreshold is the minimum remaining byte count a segment must
	// carry before an idle connection may split it. Below it the idle
	// connection retires instead.
	SplitThreshold int64

	// StreamRetries bounds how often a worker re-requests a window after
	// the server dropped the body mid-stream.
	StreamRetries int

	// StreamRetryDelay is the base delay between those re-requests; the
	// n-th retry waits n times this long.
	StreamRetryDelay time.Duration

	// ProgressInterval is how often the progress line refreshes.
	ProgressInterval time.Duration

	// ProgressOutput receives the progress line. nil disables it.
	ProgressOutput io.Writer
}

func (o Options) withDefaults() Options {
	if o.Connections <= 0 {
		o.Connections = defaultConnections
	}
	if o.SplitThreshold <= 0 {
		o.SplitThreshold = defaultSplitThreshold
	}
	if o.StreamRetries < 0 {
		o.StreamRetries = defaultStreamRetries
	}
	if o.StreamRetryDelay <= 0 {
		o.StreamRetryDelay = time.Second
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = defaultProgressEvery
	}
	return o
}

// Downloader runs jobs start to finish: probe, pre-allocate, fan out one
// worker per segment, wait for the store to drain, rename.
type Downloader struct {
	client *fetch.Client
	log    *logger.Logger
	opts   Options
}

func NewDownloader(client *fetch.Client, log *logger.Logger, opts Options) *Downloader {
	return &Downloader{
		client: client,
		log:    log,
		opts:   opts.withDefaults(),
	}
}

// Download processes a job from probe to final rename. On error the part
// file stays behind; a later attempt recreates it from scratch.
func (d *Downloader) Download(ctx context.Context, job *domain.DownloadJob) error {
	info, err := d.client.Probe(ctx, job.URL)
	if err != nil {
		return fmt.Errorf("probe %s: %w", job.URL, err)
	}
	if info.Size < 0 {
		return domain.ErrLengthUnknown
	}

	job.TotalBytes = info.Size
	job.BytesWritten.Store(0)
	job.StartedAt = time.Now()

	connections := d.opts.Connections
	if job.Connections > 0 {
		connections = job.Connections
	}
	if !info.AcceptsRanges && connections > 1 {
		d.log.Warn("Server ignores range requests, downloading %s on a single connection", job.Name)
		connections = 1
	}

	if dir := filepath.Dir(job.PartPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create out_dir: %w", err)
		}
	}

	part, err := CreatePartFile(job.PartPath, job.FinalPath, info.Size)
	if err != nil {
		return err
	}

	d.log.Info("Starting download for: %s (%d bytes, %d connections)", job.Name, info.Size, connections)

	store := NewSegmentStore(Partition(info.Size, connections), d.opts.SplitThreshold)

	workers := make([]*Worker, connections)
	for i := range workers {
		handle, err := part.OpenHandle()
		if err != nil {
			for _, w := range workers[:i] {
				w.file.Close()
			}
			return err
		}
		workers[i] = NewWorker(i, job, store, d.client, handle, d.log, d.opts)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sampler *ProgressSampler
	if d.opts.ProgressOutput != nil {
		sampler = NewProgressSampler(job, d.opts.ProgressInterval, d.opts.ProgressOutput)
		go sampler.Run(runCtx)
	}

	errCh := make(chan error, len(workers))
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("worker %d: %w", w.id, err)
			}
		}(w)
	}

	select {
	case <-store.Done():
		wg.Wait()
	case err := <-errCh:
		cancel()
		wg.Wait()
		d.log.Error("Download of %s failed, leaving %s behind: %v", job.Name, part.Path(), err)
		return err
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return ctx.Err()
	}

	cancel()
	if sampler != nil {
		sampler.Finish()
	}

	if err := part.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", job.Name, err)
	}

	d.log.Info("Completed %s in %s", job.Name, time.Since(job.StartedAt).Truncate(time.Millisecond))
	return nil
}
