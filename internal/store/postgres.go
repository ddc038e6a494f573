package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitget/splitget/internal/domain"
)

// PostgresStore persists jobs in PostgreSQL through a pgx connection pool.
// It satisfies the same Store interface as the sqlite-backed PersistentStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("failed to run postgres migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveJob(job *domain.DownloadJob) error {
	dbo := &jobDBO{}
	dbo.FromDomain(job)

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			part_path = EXCLUDED.part_path,
			final_path = EXCLUDED.final_path,
			connections = EXCLUDED.connections,
			total_bytes = EXCLUDED.total_bytes,
			bytes_written = EXCLUDED.bytes_written,
			created_at = EXCLUDED.created_at,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			error = EXCLUDED.error
	`

	_, err := s.pool.Exec(context.Background(), query,
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

func (s *PostgresStore) GetJob(id string) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	dbo := &jobDBO{}
	err := s.pool.QueryRow(context.Background(), query, id).Scan(
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	return dbo.ToDomain(), nil
}

func (s *PostgresStore) GetJobs() ([]*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	return scanPgxJobs(rows)
}

func (s *PostgresStore) GetActiveJobs() ([]*domain.DownloadJob, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE status NOT IN ($1, $2, $3)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(context.Background(), query,
		string(domain.StatusCompleted),
		string(domain.StatusFailed),
		string(domain.StatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get active jobs: %w", err)
	}
	defer rows.Close()

	return scanPgxJobs(rows)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgxJobs(rows pgx.Rows) ([]*domain.DownloadJob, error) {
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
