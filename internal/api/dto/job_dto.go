package dto

import "encoding/json"

// SubmitJobRequest is the wire form of a job submission: {pattern, payload}
type SubmitJobRequest struct {
	Pattern string           `json:"pattern" binding:"required"`
	Payload SubmitJobPayload `json:"payload" binding:"required"`
}

// SubmitJobPayload carries job identity and the operation data blob. JobID
// is optional; the gateway mints one when absent.
type SubmitJobPayload struct {
	JobID   string          `json:"jobId"`
	JobType string          `json:"jobType"`
	Store   string          `json:"store"`
	Data    json.RawMessage `json:"data"`
}

type ListJobsRequest struct {
	Store    string `form:"store"`
	Pattern  string `form:"pattern"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        string          `json:"job_id"`
	Store        string          `json:"store"`
	Pattern      string          `json:"pattern"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}
