package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/queue"
)

type fakePipeline struct {
	err  error
	seen []string
}

func (f *fakePipeline) Process(_ context.Context, id string) error {
	f.seen = append(f.seen, id)
	return f.err
}

func intakeTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := queue.NewIntakeTask(queue.IntakePayload{FileID: id})
	require.NoError(t, err)
	return task
}

func TestHandleIntake(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "success"},
		{name: "transient", err: errors.New("agent timeout"), wantErr: true},
		{name: "unreadable", err: fmt.Errorf("%w: bad pdf", intake.ErrUnreadable), wantErr: true, skipRetry: true},
		{name: "missing", err: intake.ErrNotFound, wantErr: true, skipRetry: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := &fakePipeline{err: tt.err}
			p := NewProcessor(pipe, nil)
			err := p.Handler().ProcessTask(context.Background(), intakeTask(t, "file-1"))
			assert.Equal(t, []string{"file-1"}, pipe.seen)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestHandleIntakeBadPayload(t *testing.T) {
	pipe := &fakePipeline{}
	err := NewProcessor(pipe, nil).Handler().ProcessTask(context.Background(), asynq.NewTask(queue.IntakeFileTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, pipe.seen)
}
