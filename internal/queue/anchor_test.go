package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/pkg/logger"
)

type fakeReanchorer struct {
	calls []string
	err   error
}

func (f *fakeReanchorer) Reanchor(_ context.Context, id string) error {
	f.calls = append(f.calls, id)
	return f.err
}

func TestNewAnchorTask(t *testing.T) {
	task, err := NewAnchorTask("Xpose-AAAA-BBBB-CCCC-DDDD", 0)
	require.NoError(t, err)
	assert.Equal(t, AnchorReportTask, task.Type())

	var payload AnchorPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "Xpose-AAAA-BBBB-CCCC-DDDD", payload.ReportID)
}

func TestProcessor_HandleAnchorTask(t *testing.T) {
	fake := &fakeReanchorer{}
	p := NewProcessor(fake, logger.Nop())

	task, err := NewAnchorTask("Xpose-AAAA-BBBB-CCCC-DDDD", 3)
	require.NoError(t, err)

	require.NoError(t, p.HandleAnchorTask(context.Background(), task))
	assert.Equal(t, []string{"Xpose-AAAA-BBBB-CCCC-DDDD"}, fake.calls)
}

func TestProcessor_HandleAnchorTaskFailures(t *testing.T) {
	t.Run("ledger still down is retried", func(t *testing.T) {
		fake := &fakeReanchorer{err: errors.New("ledger down")}
		task, err := NewAnchorTask("Xpose-AAAA-BBBB-CCCC-DDDD", 3)
		require.NoError(t, err)

		err = NewProcessor(fake, logger.Nop()).HandleAnchorTask(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		fake := &fakeReanchorer{}
		task := asynq.NewTask(AnchorReportTask, []byte(`{`))

		err := NewProcessor(fake, logger.Nop()).HandleAnchorTask(context.Background(), task)
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Empty(t, fake.calls)
	})

	t.Run("missing report id is not retried", func(t *testing.T) {
		fake := &fakeReanchorer{}
		task := asynq.NewTask(AnchorReportTask, []byte(`{}`))

		err := NewProcessor(fake, logger.Nop()).HandleAnchorTask(context.Background(), task)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Empty(t, fake.calls)
	})
}
