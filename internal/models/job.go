package models

import "time"

type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job tracks progress of one long-running request (e.g. a course upload).
// Records live in the shared cache and expire on their own.
type Job struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Kind      string    `json:"kind"`
	State     JobState  `json:"state"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
