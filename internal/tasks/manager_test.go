package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/linkgate/internal/logging"
)

func TestManager_TriggerAndLogs(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(TaskDefinition{
		Name: "renewal-sweep",
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			logger.Info("renewed %d tokens", 2)
			return nil
		},
	}))

	require.NoError(t, m.Trigger("renewal-sweep"))
	assert.Eventually(t, func() bool {
		status := m.ListStatus()
		return len(status) == 1 && status[0].LastResult == "success" && !status[0].Running
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := m.GetLogs("renewal-sweep")
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "renewed 2 tokens")
	assert.Contains(t, messages, "starting task execution")
}

func TestManager_FailedTask(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(TaskDefinition{
		Name: "broken",
		Handler: func(context.Context, logging.InternalLogger) error {
			return errors.New("upstream down")
		},
	}))

	require.NoError(t, m.Trigger("broken"))
	assert.Eventually(t, func() bool {
		return m.ListStatus()[0].LastResult == "failed: upstream down"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_Schedule(t *testing.T) {
	m := NewManager()
	noop := func(context.Context, logging.InternalLogger) error { return nil }

	require.NoError(t, m.Register(TaskDefinition{Name: "hourly", Schedule: "@every 1h", Handler: noop}))
	var dup TaskRegisteredError
	assert.ErrorAs(t, m.Register(TaskDefinition{Name: "hourly", Schedule: "@every 1h", Handler: noop}), &dup)
	assert.Error(t, m.Register(TaskDefinition{Name: "bad", Schedule: "whenever", Handler: noop}))

	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	assert.Eventually(t, func() bool {
		status := m.ListStatus()
		return len(status) == 1 && !status[0].NextRun.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	status := m.ListStatus()[0]
	assert.Equal(t, "@every 1h", status.Schedule)
	assert.WithinDuration(t, time.Now().Add(time.Hour), status.NextRun, time.Minute)
}

func TestManager_UnknownTask(t *testing.T) {
	m := NewManager()

	err := m.Trigger("nope")
	var nf TaskNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.Name)

	_, err = m.GetLogs("nope")
	assert.Error(t, err)
}

func TestManager_StopWaitsForTriggeredRun(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, m.Register(TaskDefinition{
		Name: "slow",
		Handler: func(context.Context, logging.InternalLogger) error {
			close(started)
			<-release
			return nil
		},
	}))
	m.Start()

	require.NoError(t, m.Trigger("slow"))
	<-started

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Stop(short), context.DeadlineExceeded)
	assert.ErrorIs(t, m.Trigger("slow"), ErrStopped)

	stopped := make(chan error, 1)
	go func() {
		stopped <- m.Stop(context.Background())
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while a triggered run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the run finished")
	}
	assert.Equal(t, "success", m.ListStatus()[0].LastResult)
}
