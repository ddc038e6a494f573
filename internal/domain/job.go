package domain

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"
)

type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never run again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// DownloadJob represents one remote file from enqueue to rename.
type DownloadJob struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Name   string    `json:"name"`
	Status JobStatus `json:"status"`

	// PartPath is written during the download; FinalPath exists only
	// after a successful rename.
	PartPath  string `json:"-"`
	FinalPath string `json:"-"`

	// Connections overrides the configured connection count when > 0.
	Connections int `json:"connections,omitempty"`

	BytesWritten atomic.Int64 `json:"-"`
	TotalBytes   int64        `json:"total_bytes"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`

	CancelFunc context.CancelFunc `json:"-"`
}

// NewDownloadJob builds a job for rawURL targeting outDir. The output
// name is derived from the URL path.
func NewDownloadJob(id, rawURL, outDir string) *DownloadJob {
	name := OutputName(rawURL)
	final := filepath.Join(outDir, name)

	return &DownloadJob{
		ID:        id,
		URL:       rawURL,
		Name:      name,
		Status:    StatusPending,
		PartPath:  final + ".part",
		FinalPath: final,
		CreatedAt: time.Now(),
	}
}
