package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []uuid.UUID
	deadline []bool
	opts     []int
	block    chan struct{}
	err      error
}

func (p *recordingProcessor) ProcessFile(ctx context.Context, fileID uuid.UUID, opts ...pipeline.ProcessOption) (*pipeline.Result, error) {
	if p.block != nil {
		<-p.block
	}
	_, hasDeadline := ctx.Deadline()
	p.mu.Lock()
	p.seen = append(p.seen, fileID)
	p.deadline = append(p.deadline, hasDeadline)
	p.opts = append(p.opts, len(opts))
	p.mu.Unlock()
	return &pipeline.Result{FileID: fileID, JobID: uuid.New()}, p.err
}

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(8), WithProcessTimeout(time.Second))

	want := map[uuid.UUID]bool{}
	for i := 0; i < 20; i++ {
		id := uuid.New()
		want[id] = true
		require.NoError(t, q.Enqueue(context.Background(), Job{FileID: id}))
	}
	q.Shutdown(context.Background())

	require.Len(t, proc.seen, 20)
	for _, id := range proc.seen {
		assert.True(t, want[id])
	}
	for _, d := range proc.deadline {
		assert.True(t, d)
	}
}

func TestProcessorQueue_PassesManualDate(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))

	d := time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, q.Enqueue(context.Background(), Job{FileID: uuid.New(), ManualDate: &d}))
	require.NoError(t, q.Enqueue(context.Background(), Job{FileID: uuid.New()}))
	q.Shutdown(context.Background())

	assert.Equal(t, []int{1, 0}, proc.opts)
}

func TestProcessorQueue_FailuresDoNotStopWorkers(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("boom")}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{FileID: uuid.New()}))
	}
	q.Shutdown(context.Background())
	assert.Len(t, proc.seen, 3)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{FileID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_BackpressureHonoursContext(t *testing.T) {
	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	// one job held by the worker, one in the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{FileID: uuid.New()}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{FileID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{FileID: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	q.Shutdown(context.Background())
	assert.Len(t, proc.seen, 2)
}
