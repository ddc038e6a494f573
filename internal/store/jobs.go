package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/splitget/splitget/internal/domain"
)

const jobColumns = `id, url, name, status, part_path, final_path, connections, total_bytes, bytes_written, created_at, started_at, finished_at, error`

// SaveJob inserts or updates a download job
func (s *PersistentStore) SaveJob(job *domain.DownloadJob) error {
	dbo := &jobDBO{}
	dbo.FromDomain(job)

	query := `
		INSERT OR REPLACE INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		dbo.ID,
		dbo.URL,
		dbo.Name,
		dbo.Status,
		dbo.PartPath,
		dbo.FinalPath,
		dbo.Connections,
		dbo.TotalBytes,
		dbo.BytesWritten,
		dbo.CreatedAt,
		dbo.StartedAt,
		dbo.FinishedAt,
		dbo.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", dbo.ID, err)
	}

	return nil
}

// GetJob retrieves a single job by ID
func (s *PersistentStore) GetJob(id string) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	dbo := &jobDBO{}
	err := s.db.QueryRow(query, id).Scan(
		&dbo.ID,
		&dbo.URL,
		&dbo.Name,
		&dbo.Status,
		&dbo.PartPath,
		&dbo.FinalPath,
		&dbo.Connections,
		&dbo.TotalBytes,
		&dbo.BytesWritten,
		&dbo.CreatedAt,
		&dbo.StartedAt,
		&dbo.FinishedAt,
		&dbo.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	return dbo.ToDomain(), nil
}

// GetJobs retrieves all jobs in insertion order
func (s *PersistentStore) GetJobs() ([]*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// GetActiveJobs retrieves jobs that have not reached a terminal status
func (s *PersistentStore) GetActiveJobs() ([]*domain.DownloadJob, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE status NOT IN (?, ?, ?)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(query,
		string(domain.StatusCompleted),
		string(domain.StatusFailed),
		string(domain.StatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get active jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*domain.DownloadJob, error) {
	var jobs []*domain.DownloadJob
	for rows.Next() {
		dbo := &jobDBO{}
		err := rows.Scan(
			&dbo.ID,
			&dbo.URL,
			&dbo.Name,
			&dbo.Status,
			&dbo.PartPath,
			&dbo.FinalPath,
			&dbo.Connections,
			&dbo.TotalBytes,
			&dbo.BytesWritten,
			&dbo.CreatedAt,
			&dbo.StartedAt,
			&dbo.FinishedAt,
			&dbo.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, dbo.ToDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}
