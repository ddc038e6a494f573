package controllers

import (
	"time"

	"github.com/splitget/splitget/internal/domain"
)

type createJobRequest struct {
	URL         string `json:"url"`
	Connections int    `json:"connections"`
}

type jobResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Connections  int       `json:"connections"`
	TotalBytes   int64     `json:"total_bytes"`
	BytesWritten int64     `json:"bytes_written"`
	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Error        string    `json:"error,omitempty"`
}

func newJobResponse(job *domain.DownloadJob) jobResponse {
	return jobResponse{
		ID:           job.ID,
		URL:          job.URL,
		Name:         job.Name,
		Status:       string(job.Status),
		Connections:  job.Connections,
		TotalBytes:   job.TotalBytes,
		BytesWritten: job.BytesWritten.Load(),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Error:        job.Error,
	}
}
