package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/agents"
	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/scheduler"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/testutil"
)

func newStore(t *testing.T, entities ...*models.Entity) *store.Store {
	t.Helper()
	db := testutil.NewMigratedDB(t)
	repo := repository.NewEntityRepository(db.DB, database.DialectSQLite)
	for _, e := range entities {
		require.NoError(t, repo.Create(context.Background(), nil, e))
	}
	return store.New(repo)
}

func TestInjector_GrowsTargetedLabs(t *testing.T) {
	ctx := context.Background()
	zone1 := testutil.FixtureLab()
	zone2 := testutil.FixtureLab(func(e *models.Entity) { e.Zone = models.Zone2 })
	st := newStore(t, zone1, zone2)

	s, err := Builtin("dengue")
	require.NoError(t, err)
	s.Zones = []models.Zone{models.Zone1}
	in := NewInjector(s, st, nil, time.Second, nil)
	assert.Equal(t, "scenario-dengue", in.Name())

	for i := 0; i < 5; i++ {
		require.NoError(t, in.Tick(ctx))
	}
	assert.ErrorIs(t, in.Tick(ctx), scheduler.ErrDone)
	assert.ErrorIs(t, in.Tick(ctx), scheduler.ErrDone)
	assert.Equal(t, 6, in.Ticks())

	got, err := st.Get(ctx, zone1.ID)
	require.NoError(t, err)
	dengue := got.Lab.Tests[models.DiseaseDengue]
	// 12 + 2 + 3 + 5 + 6 + 8 + 9
	assert.Equal(t, 45, dengue.Today)
	// 2 + 1 + 1 + 3 + 3 + 4 + 5
	assert.Equal(t, 19, dengue.Positive)
	// rolled on ticks 0 and 3
	assert.Equal(t, []int{10, 11, 12, 14, 28}, dengue.History)

	untouched, err := st.Get(ctx, zone2.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, untouched.Lab.Tests[models.DiseaseDengue].Today)
}

// TestInjectedDengueOutbreak runs the built-in scenario against a lab and
// two hospitals in its zone.
func TestInjectedDengueOutbreak(t *testing.T) {
	ctx := context.Background()
	lab := testutil.FixtureLab()
	h1 := testutil.FixtureHospital()
	h2 := testutil.FixtureHospital(func(e *models.Entity) { e.Name = "Harbor Hospital" })
	st := newStore(t, lab, h1, h2)
	b := bus.New()

	var published int
	b.Subscribe(bus.OutbreakTopic(models.DiseaseDengue), func(context.Context, bus.Event) { published++ })

	rnd := agents.NewRand(7)
	env := &agents.Env{
		Store:   st,
		Bus:     b,
		Rand:    rnd,
		Reactor: agents.NewReactor(ctx, agents.ReactorConfig{}, rnd, nil),
	}
	built, err := agents.Build(ctx, env, agents.Intervals{Hospital: time.Second, Lab: time.Second})
	require.NoError(t, err)
	defer func() {
		for _, a := range built {
			a.Close()
		}
	}()
	var labAgent agents.Agent
	for _, a := range built {
		if a.Type() == models.EntityTypeLab {
			labAgent = a
		}
	}
	require.NotNil(t, labAgent)

	s, err := Builtin("dengue")
	require.NoError(t, err)
	in := NewInjector(s, st, nil, time.Second, nil)

	versions := map[string]int64{}
	for {
		err := in.Tick(ctx)
		require.NoError(t, labAgent.Tick(ctx))
		for _, id := range []string{h1.ID, h2.ID} {
			e, gerr := st.Get(ctx, id)
			require.NoError(t, gerr)
			if e.Hospital.IsPrepared(models.DiseaseDengue) {
				if v, seen := versions[id]; seen {
					assert.Equal(t, v, e.Version, "preparedness written once")
				}
				versions[id] = e.Version
			}
		}
		if err != nil {
			require.ErrorIs(t, err, scheduler.ErrDone)
			break
		}
	}

	assert.Equal(t, 1, published)
	for _, id := range []string{h1.ID, h2.ID} {
		e, err := st.Get(ctx, id)
		require.NoError(t, err)
		p := e.Hospital.Preparedness[models.DiseaseDengue]
		require.NotNil(t, p)
		assert.True(t, p.Prepared)
		assert.True(t, p.StaffAlerted)
	}
}
