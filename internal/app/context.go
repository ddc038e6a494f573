package app

import (
	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/infra/config"
	"github.com/splitget/splitget/internal/infra/logger"
)

// Store persists job history. Both the sqlite and the postgres
// implementations satisfy it; consumers never care which one they got.
type Store interface {
	SaveJob(job *domain.DownloadJob) error
	GetJob(id string) (*domain.DownloadJob, error)
	GetJobs() ([]*domain.DownloadJob, error)
	GetActiveJobs() ([]*domain.DownloadJob, error)
	Close() error
}

// Context holds the core environment and shared resources for splitget.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	// Store is nil when no persistence is configured (plain CLI runs).
	Store Store
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
