package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

// Processor is the document pipeline the queue drives.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input, opts pipeline.Options) (*pipeline.Result, error)
}

// Sink receives every finished job. It runs on the worker goroutine.
type Sink func(ctx context.Context, job Job, res *pipeline.Result, err error)

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	retain  int
	sink    Sink

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	stateMu  sync.Mutex
	states   map[uuid.UUID]*JobState
	finished []uuid.UUID
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRetention bounds how many finished jobs stay queryable.
func WithRetention(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.retain = n
		}
	}
}
func WithSink(s Sink) Option {
	return func(q *ProcessorQueue) { q.sink = s }
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		retain:  1000,
		ch:      make(chan Job, 256),
		states:  map[uuid.UUID]*JobState{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	q.setState(job.ID, func(s *JobState) { s.Status = constants.JobStatusRunning })

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	res, err := q.proc.Process(ctx, job.Input, job.Options)
	now := time.Now().UTC()
	q.setState(job.ID, func(s *JobState) {
		s.FinishedAt = &now
		if err != nil {
			s.Status = constants.JobStatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = constants.JobStatusDone
		s.Result = res
	})
	q.retire(job.ID)

	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "name", job.Input.Name, "err", err)
	} else {
		q.logger.Info("queue.job.ok", "worker_id", workerID, "job_id", job.ID, "name", job.Input.Name,
			"matched", res.LinesMatched, "lines", res.LinesProcessed)
	}
	if q.sink != nil {
		q.sink(ctx, job, res, err)
	}
}

// Enqueue registers the job and hands it to a worker, blocking while the queue is full.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Input.DocumentID == uuid.Nil {
		job.Input.DocumentID = job.ID
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if job.TraceID == "" {
		job.TraceID = common.RequestIDFromContext(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "job_id", job.ID)
		return uuid.Nil, ErrQueueClosed
	}
	q.stateMu.Lock()
	q.states[job.ID] = &JobState{
		ID:          job.ID,
		Name:        job.Input.Name,
		Status:      constants.JobStatusQueued,
		SubmittedAt: job.SubmittedAt,
	}
	q.stateMu.Unlock()

	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "job_id", job.ID, "name", job.Input.Name)
		return job.ID, nil
	default:
	}
	q.logger.Warn("queue.enqueue.backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return job.ID, nil
	case <-ctx.Done():
		q.stateMu.Lock()
		delete(q.states, job.ID)
		q.stateMu.Unlock()
		return uuid.Nil, ctx.Err()
	}
}

// Status returns a snapshot of the job's state.
func (q *ProcessorQueue) Status(id uuid.UUID) (JobState, bool) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	s, ok := q.states[id]
	if !ok {
		return JobState{}, false
	}
	return *s, true
}

func (q *ProcessorQueue) setState(id uuid.UUID, fn func(*JobState)) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if s, ok := q.states[id]; ok {
		fn(s)
	}
}

func (q *ProcessorQueue) retire(id uuid.UUID) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	q.finished = append(q.finished, id)
	for len(q.finished) > q.retain {
		delete(q.states, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
