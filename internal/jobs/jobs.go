// Package jobs tracks progress of long-running requests. Each job is its own
// record in the shared cache, addressed by id and expiring after a TTL, so
// concurrent jobs of one user and multiple server instances do not collide.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("job not found")
	ErrForbidden     = errors.New("job belongs to another user")
	ErrInvalidUpdate = errors.New("invalid job update")
	ErrUnavailable   = errors.New("job tracking is not configured")
)

// Store persists job records with a TTL.
type Store interface {
	SaveJob(ctx context.Context, job *models.Job, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

type Tracker struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewTracker(store Store, ttl time.Duration) *Tracker {
	return &Tracker{store: store, ttl: ttl, now: time.Now}
}

// Update describes a progress report. Zero State keeps the current state.
type Update struct {
	State    models.JobState `json:"state"`
	Progress int             `json:"progress"`
	Error    string          `json:"error"`
}

func (t *Tracker) Create(ctx context.Context, ownerID, kind string) (*models.Job, error) {
	if ownerID == "" {
		return nil, ErrForbidden
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidUpdate)
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		State:     models.JobQueued,
		UpdatedAt: t.now().UTC(),
	}
	if err := t.store.SaveJob(ctx, job, t.ttl); err != nil {
		return nil, mapErr(err)
	}
	return job, nil
}

// Get returns the job if ownerID created it.
func (t *Tracker) Get(ctx context.Context, jobID, ownerID string) (*models.Job, error) {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, mapErr(err)
	}
	if job.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return job, nil
}

// Report applies a progress update. Progress never moves backwards and
// finished jobs are immutable.
func (t *Tracker) Report(ctx context.Context, jobID, ownerID string, u Update) (*models.Job, error) {
	job, err := t.Get(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if job.State == models.JobDone || job.State == models.JobFailed {
		return nil, fmt.Errorf("%w: job already %s", ErrInvalidUpdate, job.State)
	}
	if u.Progress < 0 || u.Progress > 100 {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrInvalidUpdate)
	}
	if u.Progress < job.Progress {
		return nil, fmt.Errorf("%w: progress cannot decrease", ErrInvalidUpdate)
	}

	switch u.State {
	case "":
	case models.JobQueued, models.JobRunning, models.JobDone, models.JobFailed:
		job.State = u.State
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidUpdate, u.State)
	}

	job.Progress = u.Progress
	if job.State == models.JobDone {
		job.Progress = 100
	}
	if job.State == models.JobFailed {
		job.Error = u.Error
	}
	job.UpdatedAt = t.now().UTC()

	if err := t.store.SaveJob(ctx, job, t.ttl); err != nil {
		return nil, mapErr(err)
	}
	return job, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrRedisDisabled):
		return ErrUnavailable
	}
	return fmt.Errorf("job store: %w", err)
}
