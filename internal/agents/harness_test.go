package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []bus.Event
}

func (l *eventLog) record(_ context.Context, e bus.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) of(topic bus.Topic) []bus.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []bus.Event
	for _, e := range l.events {
		if e.Topic() == topic {
			out = append(out, e)
		}
	}
	return out
}

type countingObserver struct {
	mu        sync.Mutex
	outbreaks map[models.Disease]int
	outcomes  map[string]int
	alerts    map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		outbreaks: map[models.Disease]int{},
		outcomes:  map[string]int{},
		alerts:    map[string]int{},
	}
}

func (o *countingObserver) OutbreakPublished(d models.Disease, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outbreaks[d]++
}

func (o *countingObserver) OrderOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *countingObserver) AlertRaised(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alerts[kind]++
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	bus    *bus.Bus
	clock  *testClock
	events *eventLog
	obs    *countingObserver
	env    *Env
}

// newHarness stores the given entities and wires an environment whose
// reactions run inline, with a fixed clock and seed and consumption off.
func newHarness(t *testing.T, entities ...*models.Entity) *harness {
	t.Helper()

	db := testutil.NewMigratedDB(t)
	repo := repository.NewEntityRepository(db.DB, database.DialectSQLite)
	ctx := context.Background()
	for _, e := range entities {
		require.NoError(t, repo.Create(ctx, nil, e))
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	b := bus.New()
	events := &eventLog{}
	for _, topic := range bus.AllTopics() {
		b.Subscribe(topic, events.record)
	}
	obs := newCountingObserver()
	rnd := NewRand(42)

	h := &harness{
		t:      t,
		ctx:    ctx,
		store:  store.New(repo, store.WithClock(clock.Now)),
		bus:    b,
		clock:  clock,
		events: events,
		obs:    obs,
	}
	h.env = &Env{
		Store:    h.store,
		Bus:      b,
		Clock:    clock,
		Rand:     rnd,
		Observer: obs,
		Reactor:  NewReactor(ctx, ReactorConfig{}, rnd, nil),
		Settings: Settings{OrderRetention: time.Hour, OutbreakMemory: 48 * time.Hour},
	}
	return h
}

func (h *harness) get(id string) *models.Entity {
	h.t.Helper()
	e, err := h.store.Get(h.ctx, id)
	require.NoError(h.t, err)
	return e
}

func (h *harness) publish(source string, p bus.Payload) {
	h.t.Helper()
	require.NoError(h.t, h.bus.Publish(h.ctx, bus.Event{Source: source, Payload: p}))
}

func (h *harness) mutate(id string, fn func(e *models.Entity)) {
	h.t.Helper()
	_, err := h.store.Mutate(h.ctx, id, func(e *models.Entity) error {
		fn(e)
		return nil
	})
	require.NoError(h.t, err)
}

func dengueOutbreak(zone models.Zone, level models.RiskLevel) bus.OutbreakPredicted {
	return bus.OutbreakPredicted{
		LabID:          "lab-1",
		Zone:           zone,
		Disease:        models.DiseaseDengue,
		CurrentCount:   20,
		ProjectedCount: 29,
		RiskLevel:      level,
		GrowthRate:     0.82,
		Fallback:       true,
	}
}
