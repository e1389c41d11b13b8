package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daechan-jo/auto-store-services-coupang/internal/api/domain"
	"github.com/daechan-jo/auto-store-services-coupang/internal/api/dto"
	"github.com/daechan-jo/auto-store-services-coupang/internal/api/model"
	"github.com/daechan-jo/auto-store-services-coupang/internal/api/storage"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// SubmitJob handles POST /api/v1/jobs. The submission is recorded as a
// PENDING ledger row and published to the job queue for the agent.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID := req.Payload.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	} else if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "jobId must be a valid UUID",
		})
		return
	}

	msg := jobs.Message{
		Pattern: req.Pattern,
		Payload: jobs.Payload{
			JobID:   jobID,
			JobType: req.Payload.JobType,
			Store:   req.Payload.Store,
			Data:    req.Payload.Data,
		},
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		h.logger.Error("Failed to marshal payload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	now := time.Now()
	job := model.Job{
		JobID:     jobID,
		Store:     req.Payload.Store,
		Pattern:   req.Pattern,
		JobType:   req.Payload.JobType,
		Payload:   payload,
		Status:    domain.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal job message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish job message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	h.logger.Info("Job submitted",
		slog.String("job_id", jobID),
		slog.String("pattern", req.Pattern),
		slog.String("store", req.Payload.Store),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"pattern": req.Pattern,
		"status":  job.Status,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		Store:    req.Store,
		Pattern:  req.Pattern,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	results, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	// one extra row was fetched to detect a further page
	hasMore := len(results) > req.PageSize
	if hasMore {
		results = results[:req.PageSize]
	}

	response := make([]dto.JobDTO, len(results))
	for i := range results {
		response[i] = toJobDTO(&results[i])
	}

	var nextCursor string
	if hasMore {
		last := results[len(results)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       response,
		NextCursor: nextCursor,
	})
}

func toJobDTO(job *model.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.JobID,
		Store:        job.Store,
		Pattern:      job.Pattern,
		JobType:      job.JobType,
		Payload:      json.RawMessage(job.Payload),
		Status:       job.Status,
		Result:       json.RawMessage(job.Result),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}
