package agents

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStagger(t *testing.T) {
	step := 400 * time.Millisecond

	assert.Equal(t, time.Duration(0), Stagger("", 10, step))
	assert.Equal(t, time.Duration(0), Stagger("abc", 0, step))
	// 'a' is 97, 97 % 10 = 7
	assert.Equal(t, 7*step, Stagger("id-a", 10, step))
	assert.Equal(t, Stagger("x-a", 10, step), Stagger("y-a", 10, step), "same last byte, same slot")
}

func TestReactor_DelayWithinBounds(t *testing.T) {
	r := NewReactor(context.Background(), ReactorConfig{
		StaggerStep:  100 * time.Millisecond,
		StaggerSlots: 10,
		JitterMax:    50 * time.Millisecond,
	}, NewRand(1), nil)

	base := Stagger("entity-3", 10, 100*time.Millisecond)
	for i := 0; i < 20; i++ {
		d := r.Delay("entity-3")
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+50*time.Millisecond)
	}
}

func TestReactor_RunsInlineWithoutDelay(t *testing.T) {
	r := NewReactor(context.Background(), ReactorConfig{}, NewRand(1), nil)

	ran := false
	r.After("x", func(context.Context) { ran = true })
	assert.True(t, ran)
}

func TestReactor_DelayedAndWait(t *testing.T) {
	r := NewReactor(context.Background(), ReactorConfig{StaggerStep: 5 * time.Millisecond, StaggerSlots: 4}, NewRand(1), nil)

	var n atomic.Int32
	for _, id := range []string{"a1", "a2", "a3"} {
		r.After(id, func(context.Context) { n.Add(1) })
	}
	r.Wait()
	assert.Equal(t, int32(3), n.Load())
}

func TestReactor_DropsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReactor(ctx, ReactorConfig{StaggerStep: time.Hour, StaggerSlots: 10}, NewRand(1), nil)

	var ran atomic.Bool
	r.After("a1", func(context.Context) { ran.Store(true) })
	cancel()
	r.Wait()
	assert.False(t, ran.Load())
}

func TestReactor_RecoversPanic(t *testing.T) {
	r := NewReactor(context.Background(), ReactorConfig{}, NewRand(1), nil)

	assert.NotPanics(t, func() {
		r.After("x", func(context.Context) { panic("boom") })
	})
}
