package store

import (
	"database/sql"
	"time"

	"github.com/splitget/splitget/internal/domain"
)

// jobDBO maps to the jobs table
type jobDBO struct {
	ID           string         `db:"id"`
	URL          string         `db:"url"`
	Name         string         `db:"name"`
	Status       string         `db:"status"`
	PartPath     string         `db:"part_path"`
	FinalPath    string         `db:"final_path"`
	Connections  int            `db:"connections"`
	TotalBytes   int64          `db:"total_bytes"`
	BytesWritten int64          `db:"bytes_written"`
	CreatedAt    int64          `db:"created_at"`
	StartedAt    int64          `db:"started_at"`
	FinishedAt   int64          `db:"finished_at"`
	Error        sql.NullString `db:"error"`
}

// Mapper: DBO to Domain DownloadJob
func (j *jobDBO) ToDomain() *domain.DownloadJob {
	job := &domain.DownloadJob{
		ID:          j.ID,
		URL:         j.URL,
		Name:        j.Name,
		Status:      domain.JobStatus(j.Status),
		PartPath:    j.PartPath,
		FinalPath:   j.FinalPath,
		Connections: j.Connections,
		TotalBytes:  j.TotalBytes,
		Error:       j.Error.String,
	}

	if j.CreatedAt > 0 {
		job.CreatedAt = time.Unix(j.CreatedAt, 0)
	}
	if j.StartedAt > 0 {
		job.StartedAt = time.Unix(j.StartedAt, 0)
	}
	if j.FinishedAt > 0 {
		job.FinishedAt = time.Unix(j.FinishedAt, 0)
	}

	job.BytesWritten.Store(j.BytesWritten)
	return job
}

// Mapper: Domain DownloadJob to DBO
func (j *jobDBO) FromDomain(job *domain.DownloadJob) {
	j.ID = job.ID
	j.URL = job.URL
	j.Name = job.Name
	j.Status = string(job.Status)
	j.PartPath = job.PartPath
	j.FinalPath = job.FinalPath
	j.Connections = job.Connections
	j.TotalBytes = job.TotalBytes
	j.BytesWritten = job.BytesWritten.Load()
	j.Error = sql.NullString{String: job.Error, Valid: job.Error != ""}

	if !job.CreatedAt.IsZero() {
		j.CreatedAt = job.CreatedAt.Unix()
	}
	if !job.StartedAt.IsZero() {
		j.StartedAt = job.StartedAt.Unix()
	}
	if !job.FinishedAt.IsZero() {
		j.FinishedAt = job.FinishedAt.Unix()
	}
}
