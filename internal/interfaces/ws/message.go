// Package ws pushes import job progress to connected dashboards.
package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message types sent to dashboard clients
const (
	TypeJobUpdate = "job_update"
	TypeError     = "error"
)

// Envelope is the wire format for every outbound message
type Envelope struct {
	Type      string          `json:"type"`
	JobID     uuid.UUID       `json:"job_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// JobUpdatePayload reports job progress
type JobUpdatePayload struct {
	Status        string  `json:"status"`
	TotalRows     int     `json:"total_rows"`
	ProcessedRows int     `json:"processed_rows"`
	SuccessRows   int     `json:"success_rows"`
	ErrorRows     int     `json:"error_rows"`
	DeliveredRows int     `json:"delivered_rows"`
	Progress      float64 `json:"progress"`
}

// ErrorPayload reports a job-level failure
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewJobUpdate builds a job_update envelope
func NewJobUpdate(jobID uuid.UUID, payload JobUpdatePayload) Envelope {
	raw, _ := json.Marshal(payload)
	return Envelope{
		Type:      TypeJobUpdate,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}
}

// NewJobError builds an error envelope
func NewJobError(jobID uuid.UUID, message string) Envelope {
	raw, _ := json.Marshal(ErrorPayload{Message: message})
	return Envelope{
		Type:      TypeError,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}
}
