package model

import "time"

// Job is one ledger row. Payload is the submitted payload JSON; Result holds
// the agent's result envelope data once the job reaches a terminal state.
type Job struct {
	JobID        string    `db:"job_id"`
	Store        string    `db:"store"`
	Pattern      string    `db:"pattern"`
	JobType      string    `db:"job_type"`
	Payload      []byte    `db:"payload"`
	Status       string    `db:"status"`
	Result       []byte    `db:"result"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
