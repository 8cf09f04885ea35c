package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/bot/tasks"
	"github.com/edgard/matchbot/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type blockingPoller struct{ started atomic.Bool }

func (p *blockingPoller) Start(ctx context.Context) {
	p.started.Store(true)
	<-ctx.Done()
}

type returningPoller struct{}

func (returningPoller) Start(context.Context) {}

type countingCloser struct{ closed atomic.Int32 }

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler(discardLogger(), cfg, taskMap)
	require.NoError(t, err)
	return s
}

func TestBotRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	poller := &blockingPoller{}
	queue := &countingCloser{}
	b := NewBot(discardLogger(), poller, newTestScheduler(t, nil, nil), nil, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, poller.started.Load, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
	assert.Equal(t, int32(1), queue.closed.Load())
}

func TestBotRunFailsWhenListenerStops(t *testing.T) {
	t.Parallel()
	queue := &countingCloser{}
	b := NewBot(discardLogger(), returningPoller{}, newTestScheduler(t, nil, nil), nil, queue)

	err := b.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped unexpectedly")
	assert.Equal(t, int32(1), queue.closed.Load())
}

func TestSchedulerRunsEnabledTasks(t *testing.T) {
	t.Parallel()
	var enabled, disabled atomic.Int32
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":    {Enabled: true, Schedule: "* * * * * *"},
		"disabled":   {Enabled: false, Schedule: "* * * * * *"},
		"unknown":    {Enabled: true, Schedule: "* * * * * *"},
		"unschedule": {Enabled: true},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled":    func(context.Context) error { enabled.Add(1); return nil },
		"disabled":   func(context.Context) error { disabled.Add(1); return nil },
		"unschedule": func(context.Context) error { disabled.Add(1); return nil },
	}
	s := newTestScheduler(t, cfg, taskMap)

	require.NoError(t, s.Start())
	require.Error(t, s.Start())

	assert.Eventually(t, func() bool { return enabled.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Zero(t, disabled.Load())
}

func TestSchedulerSkipsInvalidSchedule(t *testing.T) {
	t.Parallel()
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"broken": {Enabled: true, Schedule: "not a cron"},
	}}
	s := newTestScheduler(t, cfg, map[string]tasks.ScheduledTaskFunc{
		"broken": func(context.Context) error { return nil },
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}
