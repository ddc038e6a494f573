package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/splitget/splitget/internal/app"
	"github.com/splitget/splitget/internal/domain"
)

// QueueManager runs queued jobs one at a time and keeps their state in
// sync with the store. It expects the app context to carry a store.
type QueueManager struct {
	mu         sync.RWMutex
	app        *app.Context
	downloader *Downloader
	queue      []*domain.DownloadJob
	activeJob  *domain.DownloadJob

	newJobChan chan struct{}
}

// NewQueueManager initializes a QueueManager.
// If loadExisting is true, jobs that were pending or running when the
// previous process died are loaded back into the queue.
func NewQueueManager(appCtx *app.Context, downloader *Downloader, loadExisting bool) *QueueManager {
	var active []*domain.DownloadJob

	if loadExisting {
		var err error
		active, err = appCtx.Store.GetActiveJobs()
		if err != nil {
			appCtx.Logger.Warn("Could not load existing jobs: %v", err)
			active = make([]*domain.DownloadJob, 0)
		}
	}

	return &QueueManager{
		app:        appCtx,
		downloader: downloader,
		queue:      active,
		newJobChan: make(chan struct{}, 1),
	}
}

// Add creates a new job for rawURL and notifies the run loop.
// connections overrides the configured connection count when > 0.
func (m *QueueManager) Add(rawURL string, connections int) (*domain.DownloadJob, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported URL: %q", rawURL)
	}

	job := domain.NewDownloadJob(ksuid.New().String(), rawURL, m.app.Config.Download.OutDir)
	job.Connections = connections

	if err := m.app.Store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job to database: %w", err)
	}

	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}

	return job, nil
}

// Start runs jobs until ctx is cancelled. Jobs found in "downloading"
// state were interrupted by a previous process and start over.
func (m *QueueManager) Start(ctx context.Context) {
	for {
		var next *domain.DownloadJob

		m.mu.RLock()
		for _, job := range m.queue {
			if job.Status == domain.StatusPending || job.Status == domain.StatusDownloading {
				next = job
				break
			}
		}
		m.mu.RUnlock()

		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}

		m.mu.Lock()
		m.activeJob = next
		jobCtx, cancel := context.WithCancel(ctx)
		next.CancelFunc = cancel
		m.mu.Unlock()

		m.updateStatus(next, domain.StatusDownloading)
		jobErr := m.downloader.Download(jobCtx, next)

		m.finalizeJob(next, jobErr)
		cancel()

		if ctx.Err() != nil {
			return
		}
	}
}

// Active allows the UI to see what's currently running.
func (m *QueueManager) Active() *domain.DownloadJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeJob
}

// Job searches the live queue for a specific ID, falling back to the
// store for finished jobs.
func (m *QueueManager) Job(id string) (*domain.DownloadJob, bool) {
	m.mu.RLock()
	for _, job := range m.queue {
		if job.ID == id {
			m.mu.RUnlock()
			return job, true
		}
	}
	m.mu.RUnlock()

	job, err := m.app.Store.GetJob(id)
	if err == nil && job != nil {
		return job, true
	}

	return nil, false
}

// Jobs returns a copy of the current queue slice.
func (m *QueueManager) Jobs() []*domain.DownloadJob {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*domain.DownloadJob, len(m.queue))
	copy(jobs, m.queue)
	return jobs
}

// Cancel stops the job with the given ID. A running job is interrupted
// through its context; a pending one is finalized on the spot.
func (m *QueueManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.queue {
		if job.ID != id {
			continue
		}

		if job.Status.Terminal() {
			return false
		}

		if job.CancelFunc != nil {
			job.CancelFunc()
			return true
		}

		// Never started, so there is no run loop to finalize it.
		job.Status = domain.StatusCancelled
		job.Error = "cancelled by user"
		job.FinishedAt = time.Now()
		_ = m.app.Store.SaveJob(job)
		m.removeFromLiveQueue(id)
		return true
	}
	return false
}

// updateStatus changes the status and saves to the store immediately.
func (m *QueueManager) updateStatus(job *domain.DownloadJob, status domain.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
	_ = m.app.Store.SaveJob(job)
}

func (m *QueueManager) finalizeJob(job *domain.DownloadJob, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.FinishedAt = time.Now()

	switch {
	case err == nil:
		job.Status = domain.StatusCompleted
		job.BytesWritten.Store(job.TotalBytes)
	case errors.Is(err, context.Canceled):
		job.Status = domain.StatusCancelled
		job.Error = "cancelled by user"
	default:
		job.Status = domain.StatusFailed
		job.Error = err.Error()
		m.app.Logger.Error("Job %s failed: %v", job.ID, err)
	}

	// Persist the final outcome
	_ = m.app.Store.SaveJob(job)

	m.activeJob = nil
	m.removeFromLiveQueue(job.ID)
}

// removeFromLiveQueue keeps the active slice small by removing finished jobs.
func (m *QueueManager) removeFromLiveQueue(id string) {
	for i, job := range m.queue {
		if job.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
