package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/healsync/healsync/internal/models"
)

// Intervals are the tick cadences per entity type.
type Intervals struct {
	Hospital time.Duration
	Lab      time.Duration
	Pharmacy time.Duration
	Supplier time.Duration
	City     time.Duration
}

// Build creates and subscribes an actor for every active entity in the
// store. Callers Close the returned agents when the engine stops.
func Build(ctx context.Context, env *Env, iv Intervals) ([]Agent, error) {
	if env == nil || env.Store == nil || env.Bus == nil {
		return nil, fmt.Errorf("agents: store and bus are required")
	}
	env = env.withDefaults()

	entities, err := env.Store.Find(ctx, models.EntityFilter{Status: models.EntityStatusActive})
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}

	agents := make([]Agent, 0, len(entities))
	for _, e := range entities {
		a, err := New(env, e, iv)
		if err != nil {
			for _, built := range agents {
				built.Close()
			}
			return nil, err
		}
		agents = append(agents, a)
	}
	env.Logger.Info("agents built", "count", len(agents))
	return agents, nil
}

// New creates the actor matching an entity's type.
func New(env *Env, e *models.Entity, iv Intervals) (Agent, error) {
	switch e.Type {
	case models.EntityTypeHospital:
		return NewHospital(env, e, iv.Hospital), nil
	case models.EntityTypeLab:
		return NewLab(env, e, iv.Lab), nil
	case models.EntityTypePharmacy:
		return NewPharmacy(env, e, iv.Pharmacy), nil
	case models.EntityTypeSupplier:
		return NewSupplier(env, e, iv.Supplier), nil
	case models.EntityTypeCity:
		return NewCity(env, e, iv.City), nil
	default:
		return nil, fmt.Errorf("no actor for entity type %q", e.Type)
	}
}
