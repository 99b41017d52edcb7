package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskFiresImmediatelyThenOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.Add("counter", 20*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond,
		"first run fires without waiting for the interval")
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestStopWaitsAndHaltsTasks(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.Add("counter", 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, runs.Load(), "no runs after Stop")
}

func TestPanickingTaskKeepsRunning(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.Add("flaky", 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
		panic("boom")
	})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond,
		"a panic in one run must not kill the task loop")
}

func TestMultipleTasksRunIndependently(t *testing.T) {
	var fast, slow atomic.Int32
	s := New()
	s.Add("fast", 10*time.Millisecond, func(ctx context.Context) { fast.Add(1) })
	s.Add("slow", 250*time.Millisecond, func(ctx context.Context) { slow.Add(1) })

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return fast.Load() >= 5 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, slow.Load(), int32(2), "slow task keeps its own cadence")
}

func TestStartTwiceIsNoOp(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.Add("counter", time.Hour, func(ctx context.Context) { runs.Add(1) })

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "double Start must not double-fire")
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	s := New()
	s.Add("never", time.Hour, func(ctx context.Context) {})
	assert.NotPanics(t, func() { s.Stop() })
}

func TestTaskReceivesCancellableContext(t *testing.T) {
	done := make(chan struct{})
	s := New()
	s.Add("blocker", time.Hour, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	s.Start(context.Background())
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled on Stop")
	}
}
