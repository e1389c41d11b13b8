package handler

import (
	"context"
	"log/slog"

	"github.com/daechan-jo/auto-store-services-coupang/internal/api/model"
	"github.com/daechan-jo/auto-store-services-coupang/internal/api/storage"
)

// JobStore is the ledger surface the handlers need; satisfied by
// *storage.Storage.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
}

// Publisher sends job messages to the broker; satisfied by *rabbitmq.Client.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Storage   JobStore
	Publisher Publisher
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	storage   JobStore
	publisher Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		storage:   deps.Storage,
		publisher: deps.Publisher,
	}
}
