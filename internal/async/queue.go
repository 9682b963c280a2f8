package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document to process.
type Job struct {
	FileID      uuid.UUID
	ManualDate  *time.Time // used only when the engine finds no date
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is the work a queue worker performs for each job.
type FileProcessor interface {
	ProcessFile(ctx context.Context, fileID uuid.UUID, opts ...pipeline.ProcessOption) (*pipeline.Result, error)
}
