package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting to be matched.
type Job struct {
	ID          uuid.UUID
	Input       pipeline.Input
	Options     pipeline.Options
	SubmittedAt time.Time
	TraceID     string
}

// JobState is the observable state of a job.
type JobState struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name,omitempty"`
	Status      constants.JobStatus `json:"status"`
	Result      *pipeline.Result    `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) (uuid.UUID, error)
	Status(id uuid.UUID) (JobState, bool)
	Shutdown(ctx context.Context)
}
