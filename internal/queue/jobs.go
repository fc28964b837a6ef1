// Package queue defines the asynq tasks shared by the API and the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/SignDesk/internal/config"
)

const (
	// IntakeFileTask is scheduled each time a reference file is uploaded.
	IntakeFileTask = "intake:process"

	maxRetry = 5
)

// IntakePayload tells the worker which upload to extract and analyze.
type IntakePayload struct {
	FileID string `json:"file_id"`
}

// RedisOpt converts the config section into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewIntakeTask builds the task for payload.
func NewIntakeTask(payload IntakePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(IntakeFileTask, data, asynq.MaxRetry(maxRetry)), nil
}

// ParseIntakeTask decodes a task built by NewIntakeTask.
func ParseIntakeTask(task *asynq.Task) (IntakePayload, error) {
	var payload IntakePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return IntakePayload{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.FileID == "" {
		return IntakePayload{}, fmt.Errorf("decode payload: missing file id")
	}
	return payload, nil
}

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands intake jobs to the asynq worker.
type Dispatcher struct {
	client Enqueuer
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch enqueues an intake job for fileID.
func (d *Dispatcher) Dispatch(ctx context.Context, fileID string) error {
	task, err := NewIntakeTask(IntakePayload{FileID: fileID})
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue intake task: %w", err)
	}
	return nil
}
