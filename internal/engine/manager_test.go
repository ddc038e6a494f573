package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitget/splitget/internal/app"
	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/infra/config"
	"github.com/splitget/splitget/internal/infra/logger"
)

// memStore is an in-memory app.Store. Like the real stores it persists
// snapshots, so readers never share mutable state with the queue.
type memStore struct {
	mu    sync.Mutex
	jobs  map[string]*domain.DownloadJob
	order []string
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*domain.DownloadJob)}
}

func snapshotJob(j *domain.DownloadJob) *domain.DownloadJob {
	c := &domain.DownloadJob{
		ID:          j.ID,
		URL:         j.URL,
		Name:        j.Name,
		Status:      j.Status,
		PartPath:    j.PartPath,
		FinalPath:   j.FinalPath,
		Connections: j.Connections,
		TotalBytes:  j.TotalBytes,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
		Error:       j.Error,
	}
	c.BytesWritten.Store(j.BytesWritten.Load())
	return c
}

func (s *memStore) SaveJob(job *domain.DownloadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = snapshotJob(job)
	return nil
}

func (s *memStore) GetJob(id string) (*domain.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *memStore) GetJobs() ([]*domain.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.DownloadJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out, nil
}

func (s *memStore) GetActiveJobs() ([]*domain.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.DownloadJob
	for _, id := range s.order {
		if job := s.jobs[id]; !job.Status.Terminal() {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func testAppContext(t *testing.T, store app.Store) *app.Context {
	t.Helper()
	cfg := &config.Config{}
	cfg.Download.OutDir = t.TempDir()
	cfg.Download.Connections = 2

	ctx := app.NewContext(cfg, logger.Discard())
	ctx.Store = store
	return ctx
}

func testManager(t *testing.T, store app.Store, loadExisting bool) *QueueManager {
	t.Helper()
	appCtx := testAppContext(t, store)
	d := NewDownloader(testClient(), appCtx.Logger, testOptions(2, 512))
	return NewQueueManager(appCtx, d, loadExisting)
}

func waitForStatus(t *testing.T, store app.Store, id string, want domain.JobStatus) *domain.DownloadJob {
	t.Helper()
	var got *domain.DownloadJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(id)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 10*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
	return got
}

func TestQueueManagerRunsJobToCompletion(t *testing.T) {
	payload := testPayload(32 * 1024)
	srv := httptest.NewServer(rangeHandler(payload))
	defer srv.Close()

	store := newMemStore()
	mgr := testManager(t, store, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Start(ctx)

	job, err := mgr.Add(srv.URL+"/payload.bin", 0)
	require.NoError(t, err)
	assert.Equal(t, "payload.bin", job.Name)

	final := waitForStatus(t, store, job.ID, domain.StatusCompleted)
	assert.Equal(t, int64(len(payload)), final.TotalBytes)
	assert.Equal(t, final.TotalBytes, final.BytesWritten.Load())
	assert.Empty(t, final.Error)

	got, err := os.ReadFile(job.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Finished jobs leave the live queue but stay reachable via the store.
	require.Eventually(t, func() bool {
		return len(mgr.Jobs()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	found, ok := mgr.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, found.Status)
}

func TestQueueManagerMarksFailedJobs(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	store := newMemStore()
	mgr := testManager(t, store, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Start(ctx)

	job, err := mgr.Add(srv.URL+"/missing.bin", 0)
	require.NoError(t, err)

	final := waitForStatus(t, store, job.ID, domain.StatusFailed)
	assert.Contains(t, final.Error, "probe")
}

func TestQueueManagerRejectsBadURL(t *testing.T) {
	mgr := testManager(t, newMemStore(), false)

	_, err := mgr.Add("ftp://example.com/file", 0)
	assert.Error(t, err)

	_, err = mgr.Add("not a url at all", 0)
	assert.Error(t, err)
}

func TestQueueManagerCancelPendingJob(t *testing.T) {
	store := newMemStore()
	mgr := testManager(t, store, false)

	// No Start loop: the job stays pending.
	job, err := mgr.Add("http://example.invalid/file.bin", 0)
	require.NoError(t, err)

	require.True(t, mgr.Cancel(job.ID))

	saved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, saved.Status)
	assert.Empty(t, mgr.Jobs())

	// Cancelling twice is a no-op; so is cancelling the unknown.
	assert.False(t, mgr.Cancel(job.ID))
	assert.False(t, mgr.Cancel("nope"))
}

func TestQueueManagerResumesInterruptedJobs(t *testing.T) {
	payload := testPayload(16 * 1024)
	srv := httptest.NewServer(rangeHandler(payload))
	defer srv.Close()

	store := newMemStore()

	// A job the previous process died on: persisted as downloading.
	dir := t.TempDir()
	orphan := domain.NewDownloadJob("orphan-1", srv.URL+"/left.bin", dir)
	orphan.Status = domain.StatusDownloading
	require.NoError(t, store.SaveJob(orphan))

	mgr := testManager(t, store, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Start(ctx)

	waitForStatus(t, store, "orphan-1", domain.StatusCompleted)
}
