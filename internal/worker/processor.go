// Package worker plugs the intake pipeline into the asynq server loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/queue"
)

// Pipeline is the part of intake.Service the worker drives.
type Pipeline interface {
	Process(ctx context.Context, id string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(pipeline Pipeline, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{pipeline: pipeline, logger: logger.With(zap.String("component", "worker"))}
}

// Handler registers the intake job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.IntakeFileTask, p.handleIntake)
	return mux
}

func (p *Processor) handleIntake(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseIntakeTask(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	err = p.pipeline.Process(ctx, payload.FileID)
	switch {
	case err == nil:
		p.logger.Info("intake job done", zap.String("file_id", payload.FileID))
		return nil
	case errors.Is(err, intake.ErrUnreadable), errors.Is(err, intake.ErrNotFound):
		p.logger.Warn("intake job dropped", zap.String("file_id", payload.FileID), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}
