package util

import (
	"fmt"
	"sync"
	"time"
)

// DateTimeFormat is used in reports and activity output.
const DateTimeFormat = "2006-01-02 15:04:05"

// Clock yields simulated time. Delivery deadlines and order retention are
// measured against it.
type Clock interface {
	Now() time.Time
}

// SimClock runs simulated time at a fixed multiple of wall time. A scale of
// 3600 makes one real second one simulated hour.
type SimClock struct {
	mu        sync.RWMutex
	startReal time.Time
	startSim  time.Time
	scale     float64
	paused    bool
	pausedAt  time.Time
}

// NewSimClock starts a clock at simStart.
func NewSimClock(simStart time.Time, scale float64) *SimClock {
	if scale <= 0 {
		scale = 1
	}
	return &SimClock{
		startReal: time.Now(),
		startSim:  simStart,
		scale:     scale,
	}
}

// Now returns the current simulated time.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowLocked()
}

func (c *SimClock) nowLocked() time.Time {
	if c.paused {
		return c.pausedAt
	}
	elapsed := time.Since(c.startReal)
	return c.startSim.Add(time.Duration(float64(elapsed) * c.scale))
}

// Scale returns the simulated-to-real time ratio.
func (c *SimClock) Scale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scale
}

// Simulated converts a wall-clock duration into simulated time.
func (c *SimClock) Simulated(real time.Duration) time.Duration {
	return time.Duration(float64(real) * c.Scale())
}

// Pause stops time progression.
func (c *SimClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.pausedAt = c.nowLocked()
		c.paused = true
	}
}

// Resume continues time progression from the paused instant.
func (c *SimClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.startReal = time.Now()
		c.startSim = c.pausedAt
		c.paused = false
	}
}

// Advance moves a paused clock forward.
func (c *SimClock) Advance(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return fmt.Errorf("cannot advance time while running; pause first")
	}
	c.pausedAt = c.pausedAt.Add(d)
	return nil
}

// FormatDateTime formats a time for reports.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}

// RelativeTimeString returns a short human-readable age such as "3m ago".
func RelativeTimeString(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := now.Sub(t)
	if diff < 0 {
		return "just now"
	}
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
