package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu       sync.Mutex
	finished map[string]int
	failed   map[string]int
	panics   map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{finished: map[string]int{}, failed: map[string]int{}, panics: map[string]int{}}
}

func (o *countingObserver) TickFinished(task string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[task]++
	if err != nil {
		o.failed[task]++
	}
}

func (o *countingObserver) TickPanicked(task string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.panics[task]++
}

func (o *countingObserver) get(m map[string]int, task string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return m[task]
}

func TestRunTicksUntilCancelled(t *testing.T) {
	var ticks atomic.Int64
	s := New(Config{})
	require.NoError(t, s.Add(Func{TaskName: "counter", Every: 5 * time.Millisecond, Fn: func(context.Context) error {
		ticks.Add(1)
		return nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Greater(t, ticks.Load(), int64(3))
}

func TestNoOverlap(t *testing.T) {
	var active, maxActive atomic.Int64
	s := New(Config{})
	require.NoError(t, s.Add(Func{TaskName: "slow", Every: time.Millisecond, Fn: func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, int64(1), maxActive.Load())
}

func TestShutdownWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	s := New(Config{})
	var once sync.Once
	require.NoError(t, s.Add(Func{TaskName: "long", Every: time.Millisecond, Fn: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "Run returned before the in-flight tick finished")
}

func TestPanicIsRecovered(t *testing.T) {
	obs := newCountingObserver()
	var healthy atomic.Int64

	s := New(Config{BackoffBase: time.Millisecond, BackoffMax: 2 * time.Millisecond}, WithObserver(obs))
	require.NoError(t, s.Add(
		Func{TaskName: "panicky", Every: 5 * time.Millisecond, Fn: func(context.Context) error { panic("boom") }},
		Func{TaskName: "healthy", Every: 5 * time.Millisecond, Fn: func(context.Context) error {
			healthy.Add(1)
			return nil
		}},
	))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, obs.get(obs.panics, "panicky"), 2, "panicking task should keep being scheduled")
	assert.Equal(t, obs.get(obs.finished, "panicky"), obs.get(obs.failed, "panicky"))
	assert.Greater(t, healthy.Load(), int64(3))
}

func TestErrDoneRemovesTask(t *testing.T) {
	var ticks atomic.Int64
	s := New(Config{})
	require.NoError(t, s.Add(Func{TaskName: "finite", Every: time.Millisecond, Fn: func(context.Context) error {
		if ticks.Add(1) == 3 {
			return ErrDone
		}
		return nil
	}}))

	done := make(chan error)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the only task finished")
	}
	assert.Equal(t, int64(3), ticks.Load())
}

func TestBackoff(t *testing.T) {
	s := New(Config{BackoffBase: 100 * time.Millisecond, BackoffMax: time.Second})

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.backoff(tt.failures), "failures=%d", tt.failures)
	}
}

func TestAddValidation(t *testing.T) {
	s := New(Config{})
	err := s.Add(Func{TaskName: "bad", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)

	err = s.Add(Func{TaskName: "ok", Every: time.Second, Fn: func(context.Context) error { return errors.New("x") }})
	assert.NoError(t, err)
}
