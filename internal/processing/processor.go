// Package processing runs intake jobs on a fixed set of goroutines fed by a
// buffered channel. It is the single-binary alternative to the asynq worker.
package processing

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrQueueFull is passed to the reject callback when the buffer is full.
var ErrQueueFull = errors.New("processing queue full")

// Job identifies one uploaded file to process.
type Job struct {
	FileID string
}

// Handler does the work for one job. Errors are logged; the handler is
// expected to record failures itself.
type Handler func(ctx context.Context, job Job) error

// RejectFunc is called when a job cannot be queued.
type RejectFunc func(ctx context.Context, job Job, err error)

// Processor consumes Jobs on a bounded queue.
type Processor struct {
	handle  Handler
	reject  RejectFunc
	queue   chan Job
	workers int
	logger  *zap.Logger
}

// New builds a Processor with queue capacity tied to worker count.
func New(handle Handler, reject RejectFunc, workers int, logger *zap.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		handle:  handle,
		reject:  reject,
		queue:   make(chan Job, workers*4),
		workers: workers,
		logger:  logger.With(zap.String("component", "processing")),
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Submit queues a job. A full queue rejects the job instead of blocking the
// upload request.
func (p *Processor) Submit(ctx context.Context, job Job) {
	select {
	case p.queue <- job:
	default:
		p.logger.Warn("processor queue full, dropping job", zap.String("file_id", job.FileID))
		if p.reject != nil {
			p.reject(ctx, job, ErrQueueFull)
		}
	}
}

// Dispatch adapts Submit to the intake dispatcher contract.
func (p *Processor) Dispatch(ctx context.Context, fileID string) error {
	p.Submit(context.WithoutCancel(ctx), Job{FileID: fileID})
	return nil
}

func (p *Processor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.handle(ctx, job); err != nil {
				p.logger.Warn("job failed", zap.String("file_id", job.FileID), zap.Error(err))
			}
		}
	}
}
