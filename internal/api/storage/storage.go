package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daechan-jo/auto-store-services-coupang/internal/api/domain"
	"github.com/daechan-jo/auto-store-services-coupang/internal/api/model"
	"github.com/daechan-jo/auto-store-services-coupang/shared/postgresql"
)

// Storage owns the jobs ledger table. The gateway inserts and reads rows;
// the agent moves them through their lifecycle with UpdateJobStatus.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, store, pattern, job_type,
			payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.Store,
		job.Pattern,
		job.JobType,
		job.Payload,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, store, pattern, job_type,
			payload, status, result, error_message, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateJobStatus moves a job through its lifecycle. Completed and failed
// jobs carry the result envelope data and the error message respectively.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID, status string, result any, errorMsg string) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    result = COALESCE($2, result),
		    error_message = $3,
		    updated_at = NOW()
		WHERE job_id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, status, resultJSON, errorMsg, jobID); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

type JobFilter struct {
	Store    string
	Pattern  string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 rows ordered by (created_at, job_id)
// descending; the extra row tells the handler whether a next page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
		SELECT
			job_id, store, pattern, job_type,
			payload, status, result, error_message, created_at, updated_at
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Store != "" {
		query += fmt.Sprintf(" AND store = $%d", argIdx)
		args = append(args, filter.Store)
		argIdx++
	}

	if filter.Pattern != "" {
		query += fmt.Sprintf(" AND pattern = $%d", argIdx)
		args = append(args, filter.Pattern)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var out []model.Job
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return out, nil
}
