package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/services/risk"
	"github.com/healsync/healsync/internal/util"
)

// RedirectThreshold is the occupancy below which a hospital can take
// patients redirected from an overloaded one.
const RedirectThreshold = 0.7

// Alert kinds raised by the city.
const (
	AlertOutbreak          = "outbreak"
	AlertHospitalOverload  = "hospital_overload"
	AlertMedicineShortage  = "medicine_shortage"
	AlertLabCapacity       = "lab_capacity"
	AlertEquipmentShortage = "equipment_shortage"
	AlertCityCrisis        = "city_crisis"
)

// City aggregates zone risk, assesses the crisis level and keeps alerts.
type City struct {
	base
	aggregator *risk.Aggregator
}

// NewCity creates the coordinator actor and subscribes it.
func NewCity(env *Env, e *models.Entity, interval time.Duration) *City {
	c := &City{base: newBase(env, e, interval)}
	c.aggregator = risk.NewAggregator(c.env.Scoring, c.env.Logger)

	for _, t := range bus.OutbreakTopics() {
		c.subscribe(t, c.onOutbreak)
	}
	c.subscribe(bus.TopicHospitalOverloadRisk, c.onOverload)
	c.subscribe(bus.TopicMedicineShortageRisk, c.onShortage)
	c.subscribe(bus.TopicLabCapacityWarning, c.onLabCapacity)
	c.subscribe(bus.TopicEquipmentShortage, c.onEquipmentShortage)
	return c
}

// Tick recomputes city risk and assesses the crisis level. Every HIGH or
// CRITICAL assessment publishes a crisis alert; the alert list only records
// a change of severity.
func (c *City) Tick(ctx context.Context) error {
	e, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	facilities, err := c.env.Store.Find(ctx, models.EntityFilter{Status: models.EntityStatusActive})
	if err != nil {
		return fmt.Errorf("loading facilities: %w", err)
	}

	working := e.Clone()
	risk.Recompute(working.City)
	crisis := c.aggregator.AssessCrisis(ctx, risk.BuildSnapshot(working.City, facilities), c.env.now())
	alertID := util.NewID()

	alarm := crisis.Severity.Alarming()
	var recorded bool
	_, err = c.env.Store.Mutate(ctx, c.id, func(e *models.Entity) error {
		cs := e.City
		prev := cs.LastCrisis
		risk.Recompute(cs)
		assessment := crisis.CrisisAssessment
		cs.LastCrisis = &assessment

		recorded = alarm && (prev == nil || prev.Severity != crisis.Severity)
		if recorded {
			cs.Alerts.Add(models.Alert{
				ID:        alertID,
				Type:      AlertCityCrisis,
				Severity:  severityLevel(crisis.Severity),
				Message:   fmt.Sprintf("City crisis %s (score %.1f): %s", crisis.Severity, crisis.Score, crisis.Advisory),
				Status:    models.AlertActive,
				Timestamp: crisis.At,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("crisis assessed",
		"score", crisis.Score,
		"severity", crisis.Severity,
		"source", crisis.Source,
	)
	c.emit(ctx, "crisis_assessment", crisis.CrisisAssessment)

	if alarm {
		p := bus.CityCrisisAlert{
			Score:           crisis.Score,
			Severity:        crisis.Severity,
			HighRiskZones:   crisis.HighRiskZones,
			Recommendations: crisis.Recommendations,
			Advisory:        crisis.Advisory,
			Fallback:        crisis.Fallback,
		}
		if recorded {
			c.env.Observer.AlertRaised(AlertCityCrisis)
		}
		c.logger.Warn("city crisis", "severity", crisis.Severity, "score", crisis.Score, "zones", crisis.HighRiskZones)
		c.publish(ctx, p)
	}
	return nil
}

func severityLevel(s models.CrisisSeverity) models.RiskLevel {
	return models.ParseRiskLevel(strings.ToLower(string(s)))
}

// raise appends an alert, applying extra to the city state in the same write.
func (c *City) raise(ctx context.Context, a models.Alert, extra func(cs *models.CityState)) error {
	_, err := c.env.Store.Mutate(ctx, c.id, func(e *models.Entity) error {
		if extra != nil {
			extra(e.City)
		}
		e.City.Alerts.Add(a)
		return nil
	})
	if err != nil {
		return err
	}
	c.env.Observer.AlertRaised(a.Type)
	c.logger.Info("alert raised", "type", a.Type, "zone", a.Zone, "severity", a.Severity)
	c.emit(ctx, "alert", a)
	return nil
}

func (c *City) newAlert(kind string, zone models.Zone, severity models.RiskLevel, msg string) models.Alert {
	return models.Alert{
		ID:        util.NewID(),
		Type:      kind,
		Zone:      zone,
		Severity:  severity,
		Message:   msg,
		Status:    models.AlertActive,
		Timestamp: c.env.now(),
	}
}

func (c *City) onOutbreak(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.OutbreakPredicted)
	if !ok {
		return
	}
	c.react(func(ctx context.Context) {
		a := c.newAlert(AlertOutbreak, p.Zone, p.RiskLevel,
			fmt.Sprintf("%s outbreak predicted in %s: %d tests today, %d projected", p.Disease, p.Zone, p.CurrentCount, p.ProjectedCount))
		now := a.Timestamp
		err := c.raise(ctx, a, func(cs *models.CityState) {
			c.aggregator.ApplySignal(cs, p.Zone, p.Disease, p.RiskLevel, now)
			if cs.OutbreakCounts == nil {
				cs.OutbreakCounts = make(map[models.Disease]int)
			}
			cs.OutbreakCounts[p.Disease]++
		})
		c.handleErr(ev.Topic(), err)
	})
}

func (c *City) onOverload(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.HospitalOverloadRisk)
	if !ok {
		return
	}
	c.react(func(ctx context.Context) {
		targets, err := c.redirectTargets(ctx, p.HospitalID)
		if err != nil {
			c.handleErr(ev.Topic(), err)
			return
		}
		msg := fmt.Sprintf("%s at %.0f%% occupancy", nameOr(p.Name, p.HospitalID), p.Occupancy*100)
		if len(targets) > 0 {
			msg += "; redirect patients to " + strings.Join(targets, ", ")
		}
		c.handleErr(ev.Topic(), c.raise(ctx, c.newAlert(AlertHospitalOverload, p.Zone, models.RiskHigh, msg), nil))
		if len(targets) > 0 {
			c.emit(ctx, "redirect_suggestion", map[string]any{
				"hospital_id": p.HospitalID,
				"targets":     targets,
			})
		}
	})
}

// redirectTargets names the hospitals other than exclude with room to spare.
func (c *City) redirectTargets(ctx context.Context, exclude string) ([]string, error) {
	hospitals, err := c.env.Store.Find(ctx, models.EntityFilter{
		Type:   models.EntityTypeHospital,
		Status: models.EntityStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("finding hospitals: %w", err)
	}
	var out []string
	for _, h := range hospitals {
		if h.ID == exclude || h.Hospital == nil {
			continue
		}
		if h.Hospital.Occupancy() < RedirectThreshold {
			out = append(out, h.Name)
		}
	}
	return out, nil
}

func (c *City) onShortage(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.MedicineShortageRisk)
	if !ok {
		return
	}
	c.react(func(ctx context.Context) {
		a := c.newAlert(AlertMedicineShortage, p.Zone, urgencyLevel(p.Urgency),
			fmt.Sprintf("%s low at pharmacy %s: %d left (%.1f days)", p.Medicine, util.ShortID(p.PharmacyID), p.Stock, p.DaysLeft))
		c.handleErr(ev.Topic(), c.raise(ctx, a, nil))
	})
}

func (c *City) onLabCapacity(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.LabCapacityWarning)
	if !ok {
		return
	}
	c.react(func(ctx context.Context) {
		a := c.newAlert(AlertLabCapacity, p.Zone, models.RiskMedium,
			fmt.Sprintf("Lab %s at %.0f%% capacity", util.ShortID(p.LabID), p.Utilization*100))
		c.handleErr(ev.Topic(), c.raise(ctx, a, nil))
	})
}

func (c *City) onEquipmentShortage(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.EquipmentShortage)
	if !ok {
		return
	}
	c.react(func(ctx context.Context) {
		a := c.newAlert(AlertEquipmentShortage, p.Zone, models.RiskHigh,
			fmt.Sprintf("%s short at hospital %s: %d of %d available", p.Equipment, util.ShortID(p.HospitalID), p.Available, p.Total))
		c.handleErr(ev.Topic(), c.raise(ctx, a, nil))
	})
}

func urgencyLevel(u models.Urgency) models.RiskLevel {
	switch u {
	case models.UrgencyHigh:
		return models.RiskHigh
	case models.UrgencyMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return util.ShortID(id)
}
