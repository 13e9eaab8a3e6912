package ws

import (
	"github.com/erpbridge/backend/internal/domain/importjob"
)

// JobNotifier republishes import job lifecycle events to the hub. Updates
// for a job reach its owner and every admin.
type JobNotifier struct {
	hub *Hub
}

// NewJobNotifier creates a notifier on top of a running hub
func NewJobNotifier(hub *Hub) *JobNotifier {
	return &JobNotifier{hub: hub}
}

// JobUpdate publishes the job's current progress
func (n *JobNotifier) JobUpdate(job *importjob.ImportJob) {
	n.hub.Publish(NewJobUpdate(job.ID, JobUpdatePayload{
		Status:        string(job.Status),
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		SuccessRows:   job.SuccessRows,
		ErrorRows:     job.ErrorRows,
		DeliveredRows: job.DeliveredRows,
		Progress:      float64(job.Progress()),
	}), job.CreatedBy)
}

// JobFailed publishes a job-level failure message
func (n *JobNotifier) JobFailed(job *importjob.ImportJob, message string) {
	n.hub.Publish(NewJobError(job.ID, message), job.CreatedBy)
}
