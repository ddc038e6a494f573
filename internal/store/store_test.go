package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitget/splitget/internal/domain"
)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()

	s, err := NewPersistentStore(filepath.Join(t.TempDir(), "splitget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func newStoredJob(id, rawURL string) *domain.DownloadJob {
	job := domain.NewDownloadJob(id, rawURL, "/tmp/downloads")
	job.CreatedAt = time.Now().Truncate(time.Second)
	return job
}

func TestSaveAndGetJob(t *testing.T) {
	s := newTestStore(t)

	job := newStoredJob("job-1", "http://example.com/archive.tar.gz")
	job.Status = domain.StatusDownloading
	job.Connections = 8
	job.TotalBytes = 1 << 20
	job.BytesWritten.Store(4096)
	job.StartedAt = time.Now().Truncate(time.Second)

	require.NoError(t, s.SaveJob(job))

	got, err := s.GetJob("job-1")
	require.NoError(t, err)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.URL, got.URL)
	assert.Equal(t, "archive.tar.gz", got.Name)
	assert.Equal(t, domain.StatusDownloading, got.Status)
	assert.Equal(t, job.PartPath, got.PartPath)
	assert.Equal(t, job.FinalPath, got.FinalPath)
	assert.Equal(t, 8, got.Connections)
	assert.Equal(t, int64(1<<20), got.TotalBytes)
	assert.Equal(t, int64(4096), got.BytesWritten.Load())
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, job.StartedAt.Equal(got.StartedAt))
	assert.True(t, got.FinishedAt.IsZero())
	assert.Empty(t, got.Error)
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetJob("nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestSaveJobUpserts(t *testing.T) {
	s := newTestStore(t)

	job := newStoredJob("job-1", "http://example.com/file.bin")
	require.NoError(t, s.SaveJob(job))

	job.Status = domain.StatusFailed
	job.Error = "connection reset"
	job.FinishedAt = time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveJob(job))

	jobs, err := s.GetJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, domain.StatusFailed, jobs[0].Status)
	assert.Equal(t, "connection reset", jobs[0].Error)
	assert.False(t, jobs[0].FinishedAt.IsZero())
}

func TestGetJobsReturnsInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		job := newStoredJob(id, "http://example.com/"+id)
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveJob(job))
	}

	jobs, err := s.GetJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, "job-b", jobs[1].ID)
	assert.Equal(t, "job-c", jobs[2].ID)
}

func TestGetActiveJobsSkipsTerminalStatuses(t *testing.T) {
	s := newTestStore(t)

	statuses := map[string]domain.JobStatus{
		"job-pending":     domain.StatusPending,
		"job-downloading": domain.StatusDownloading,
		"job-completed":   domain.StatusCompleted,
		"job-failed":      domain.StatusFailed,
		"job-cancelled":   domain.StatusCancelled,
	}

	base := time.Now().Truncate(time.Second)
	i := 0
	for id, status := range statuses {
		job := newStoredJob(id, "http://example.com/"+id)
		job.Status = status
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveJob(job))
		i++
	}

	active, err := s.GetActiveJobs()
	require.NoError(t, err)
	require.Len(t, active, 2)

	ids := []string{active[0].ID, active[1].ID}
	assert.Contains(t, ids, "job-pending")
	assert.Contains(t, ids, "job-downloading")
}

func TestStoreCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "splitget.db")

	s, err := NewPersistentStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveJob(newStoredJob("job-1", "http://example.com/a")))
}
