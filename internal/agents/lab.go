package agents

import (
	"context"
	"math"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/services/outbreak"
)

const (
	// LabCapacityThreshold is the utilization above which a lab warns.
	LabCapacityThreshold = 0.85

	driftSpread       = 4
	historyEveryTicks = 6
	minPositiveRatio  = 0.08
	maxPositiveRatio  = 0.25
)

// Lab watches test counts and announces outbreaks in its zone. An outbreak
// is announced once when it triggers; it re-arms only after the counts stop
// growing.
type Lab struct {
	base
	detector *outbreak.Detector
}

// NewLab creates the actor for a lab entity.
func NewLab(env *Env, e *models.Entity, interval time.Duration) *Lab {
	l := &Lab{base: newBase(env, e, interval)}
	l.detector = outbreak.NewDetector(l.env.Scoring, l.env.Logger)
	return l
}

type labDraw struct {
	shift int
	ratio float64
}

// Tick drifts the counters, runs detection and publishes new outbreaks.
func (l *Lab) Tick(ctx context.Context) error {
	e, err := l.snapshot(ctx)
	if err != nil {
		return err
	}

	var draws map[models.Disease]labDraw
	if l.env.Settings.NaturalDrift {
		draws = make(map[models.Disease]labDraw, len(models.AllDiseases))
		for _, d := range models.AllDiseases {
			draws[d] = labDraw{
				shift: l.env.Rand.IntN(2*driftSpread+1) - driftSpread,
				ratio: l.env.Rand.Between(minPositiveRatio, maxPositiveRatio),
			}
		}
	}

	working := e.Clone()
	drift(working.Lab, draws)
	results := l.detector.Detect(ctx, working.Lab)

	var triggered []outbreak.Result
	written, err := l.env.Store.Mutate(ctx, l.id, func(e *models.Entity) error {
		triggered = triggered[:0]
		drift(e.Lab, draws)
		for _, r := range results {
			t := e.Lab.TestsFor(r.Disease)
			t.PositiveRate = r.PositiveRate
			switch {
			case r.Triggered && !t.OutbreakActive:
				t.OutbreakActive = true
				triggered = append(triggered, r)
			case t.OutbreakActive && r.RiskLevel == models.RiskLow:
				t.OutbreakActive = false
			}
		}
		// Diseases with no tests today get no result; release their latch.
		for _, t := range e.Lab.Tests {
			if t.OutbreakActive && t.Today == 0 {
				t.OutbreakActive = false
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Elevated && !r.Triggered {
			l.logger.Info("elevated test trend",
				"disease", r.Disease,
				"current", r.CurrentCount,
				"growth", math.Round(r.GrowthRate*100)/100,
			)
		}
	}

	for _, r := range triggered {
		l.announce(ctx, written, r)
	}

	if u := written.Lab.Utilization(); u > LabCapacityThreshold {
		var today, capacity int
		for _, t := range written.Lab.Tests {
			today += t.Today
			capacity += t.Capacity
		}
		l.logger.Warn("lab near capacity", "utilization", u)
		l.publish(ctx, bus.LabCapacityWarning{
			LabID:         l.id,
			Zone:          l.zone,
			Utilization:   u,
			TotalTests:    today,
			TotalCapacity: capacity,
			QueueLength:   written.Lab.QueueLength,
		})
	}
	return nil
}

func (l *Lab) announce(ctx context.Context, e *models.Entity, r outbreak.Result) {
	p := bus.OutbreakPredicted{
		LabID:          l.id,
		Zone:           e.Zone,
		Disease:        r.Disease,
		CurrentCount:   r.CurrentCount,
		ProjectedCount: r.ProjectedCount,
		RiskLevel:      r.RiskLevel,
		GrowthRate:     r.GrowthRate,
		PositiveRate:   r.PositiveRate,
		Confidence:     r.Confidence,
		Recommendation: r.Recommendation,
		Fallback:       r.Fallback,
	}
	l.logger.Warn("outbreak predicted",
		"disease", r.Disease,
		"risk", r.RiskLevel,
		"current", r.CurrentCount,
		"baseline", r.Baseline,
		"fallback", r.Fallback,
	)
	l.env.Observer.OutbreakPublished(r.Disease, r.Fallback)
	l.emit(ctx, "outbreak_predicted", p)
	l.publish(ctx, p)
}

// drift applies pre-drawn natural variation. Every few ticks the current
// count rolls into history first. A nil draw set leaves the lab unchanged.
func drift(lab *models.LabState, draws map[models.Disease]labDraw) {
	if draws == nil {
		return
	}
	for d, t := range lab.Tests {
		dr, ok := draws[d]
		if !ok {
			continue
		}
		t.TickCount++
		if t.TickCount%historyEveryTicks == 0 {
			t.PushHistory(t.Today, models.NaturalHistoryCap)
		}
		today := t.Today + dr.shift
		if t.Capacity > 0 {
			today = min(today, t.Capacity)
		}
		t.Today = max(0, today)
		t.Positive = int(math.Round(float64(t.Today) * dr.ratio))
	}
}
