package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/config"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestDispatchEnqueuesIntakeTask(t *testing.T) {
	fake := &fakeEnqueuer{}
	require.NoError(t, NewDispatcher(fake).Dispatch(context.Background(), "file-1"))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, IntakeFileTask, fake.tasks[0].Type())

	payload, err := ParseIntakeTask(fake.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "file-1", payload.FileID)
}

func TestDispatchWrapsEnqueueError(t *testing.T) {
	boom := errors.New("redis down")
	err := NewDispatcher(&fakeEnqueuer{err: boom}).Dispatch(context.Background(), "file-1")
	assert.ErrorIs(t, err, boom)
}

func TestParseIntakeTaskRejectsBadPayloads(t *testing.T) {
	_, err := ParseIntakeTask(asynq.NewTask(IntakeFileTask, []byte("{")))
	assert.Error(t, err)
	_, err = ParseIntakeTask(asynq.NewTask(IntakeFileTask, []byte(`{}`)))
	assert.Error(t, err)
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
