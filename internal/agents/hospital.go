package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/services/strain"
	"github.com/healsync/healsync/internal/store"
)

// Hospital thresholds.
const (
	OverloadThreshold   = 0.85
	VentilatorShortage  = 0.2
	ICUWarningThreshold = 0.8

	maxIsolationReserve   = 10
	maxSurgeBeds          = 5
	minDischargeRate      = 0.03
	maxDischargeRate      = 0.05
	arrivalShare          = 0.5
	baseERWaitMinutes     = 10
	erWaitPerOccupancy    = 50
	predictedInflowWeight = 0.5
)

// arrivalMix is the share of arrivals by bed category.
var arrivalMix = []struct {
	bed   string
	share float64
}{
	{models.BedGeneral, 0.5},
	{models.BedICU, 0.1},
	{models.BedPediatric, 0.15},
	{models.BedMaternity, 0.15},
	{models.BedIsolation, 0.1},
}

// Hospital simulates patient flow and reacts to outbreaks in its zone.
type Hospital struct {
	base
	strain *strain.Calculator
}

// NewHospital creates the actor for a hospital entity and subscribes it.
func NewHospital(env *Env, e *models.Entity, interval time.Duration) *Hospital {
	h := &Hospital{base: newBase(env, e, interval)}
	h.strain = strain.NewCalculator(h.env.Scoring, h.env.Logger)

	for _, t := range bus.OutbreakTopics() {
		h.subscribe(t, h.onOutbreak)
	}
	h.subscribe(bus.TopicDeliveryComplete, h.onDelivery)
	return h
}

type flowDraw struct {
	categories []float64
	discharge  float64
}

// Tick admits and discharges patients, assesses strain and raises alarms.
func (h *Hospital) Tick(ctx context.Context) error {
	e, err := h.snapshot(ctx)
	if err != nil {
		return err
	}

	inflow := float64(e.Hospital.Flow.InflowPerHour)
	arrivals := int(math.Floor(inflow * h.env.Rand.Between(0.6, 1.4) * arrivalShare))
	draw := flowDraw{
		categories: make([]float64, arrivals),
		discharge:  h.env.Rand.Between(minDischargeRate, maxDischargeRate),
	}
	for i := range draw.categories {
		draw.categories[i] = h.env.Rand.Float64()
	}

	working := e.Clone()
	stepFlow(working.Hospital, draw)
	res := h.strain.Assess(ctx, working.Hospital)
	now := h.env.now()

	var turnedAway int
	written, err := h.env.Store.Mutate(ctx, h.id, func(e *models.Entity) error {
		turnedAway = stepFlow(e.Hospital, draw)
		source := "service"
		if res.Fallback {
			source = "fallback"
		}
		e.Hospital.Strain = &models.StrainAssessment{
			Index:  res.Index,
			Level:  res.Level,
			Source: source,
			At:     now,
		}
		return nil
	})
	if err != nil {
		return err
	}
	if turnedAway > 0 {
		h.logger.Warn("no free beds for arrivals", "turned_away", turnedAway)
	}

	hs := written.Hospital
	occ := hs.Occupancy()
	total, _ := hs.BedTotals()

	if occ > OverloadThreshold {
		p := bus.HospitalOverloadRisk{
			HospitalID:    h.id,
			Name:          written.Name,
			Zone:          h.zone,
			Occupancy:     occ,
			PredictedBeds: int(math.Round(hs.Flow.PredictedBedsUsed)),
			TotalBeds:     total,
			InflowPerHour: hs.Flow.InflowPerHour,
		}
		h.logger.Warn("hospital overload risk", "occupancy", occ)
		h.emit(ctx, "overload_risk", p)
		h.publish(ctx, p)
	}

	if v, ok := hs.Equipment[models.EquipmentVentilators]; ok && v.AvailableRatio() < VentilatorShortage {
		h.logger.Warn("ventilator shortage", "available", v.Available, "total", v.Total)
		h.publish(ctx, bus.EquipmentShortage{
			HospitalID: h.id,
			Zone:       h.zone,
			Equipment:  models.EquipmentVentilators,
			Available:  v.Available,
			Total:      v.Total,
		})
	}

	if icu := hs.ICUUtilization(); icu > ICUWarningThreshold {
		h.logger.Warn("ICU near capacity", "utilization", icu)
	}

	if res.TriggerRequest {
		needs := make([]bus.ResourceNeed, 0, len(res.Needs))
		for _, n := range res.Needs {
			needs = append(needs, bus.ResourceNeed{Item: n.Item, Quantity: n.Quantity})
		}
		p := bus.HospitalResourceRequest{
			HospitalID:      h.id,
			Name:            written.Name,
			Zone:            h.zone,
			StrainIndex:     res.Index,
			StrainLevel:     res.Level,
			Urgency:         res.Urgency,
			Needs:           needs,
			Recommendations: res.Recommendations,
		}
		h.logger.Info("hospital under strain", "index", res.Index, "level", res.Level, "fallback", res.Fallback)
		h.emit(ctx, "resource_request", p)
		h.publish(ctx, p)
	}
	return nil
}

// stepFlow discharges then admits patients using pre-drawn values and
// refreshes the derived flow figures. It returns arrivals with no bed.
func stepFlow(hs *models.HospitalState, draw flowDraw) (turnedAway int) {
	for _, b := range hs.Beds {
		out := int(math.Floor(float64(b.Used) * draw.discharge))
		b.Used -= out
		hs.Flow.DischargesToday += out
	}

	for _, r := range draw.categories {
		b, ok := hs.Beds[pickBed(r)]
		if !ok || b.Free() == 0 {
			b, ok = hs.Beds[models.BedGeneral]
		}
		if !ok || b.Free() == 0 {
			turnedAway++
			continue
		}
		b.Used++
		hs.Flow.AdmissionsToday++
	}

	_, used := hs.BedTotals()
	hs.Flow.ERWaitMinutes = baseERWaitMinutes + hs.Occupancy()*erWaitPerOccupancy
	hs.Flow.PredictedBedsUsed = float64(used) + predictedInflowWeight*float64(hs.Flow.InflowPerHour)
	return turnedAway
}

func pickBed(r float64) string {
	acc := 0.0
	for _, m := range arrivalMix {
		acc += m.share
		if r < acc {
			return m.bed
		}
	}
	return models.BedGeneral
}

func (h *Hospital) onOutbreak(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.OutbreakPredicted)
	if !ok || p.Zone != h.zone {
		return
	}
	h.react(func(ctx context.Context) {
		h.handleErr(ev.Topic(), h.prepare(ctx, p))
	})
}

// prepare readies the hospital for an outbreak once. A repeated report for
// the same disease changes nothing and publishes nothing.
func (h *Hospital) prepare(ctx context.Context, p bus.OutbreakPredicted) error {
	now := h.env.now()

	var isolation, surge int
	changed := false
	_, err := h.env.Store.Mutate(ctx, h.id, func(e *models.Entity) error {
		changed = false
		isolation, surge = 0, 0
		hs := e.Hospital
		if !hs.PreparednessFor(p.Disease).Mark(now) {
			return store.ErrNoChange
		}
		changed = true

		if b, ok := hs.Beds[models.BedIsolation]; ok {
			isolation = min(maxIsolationReserve, b.Free()) / 2
			b.Reserved += isolation
		}
		if b, ok := hs.Beds[models.BedGeneral]; ok {
			surge = min(maxSurgeBeds, b.Free())
			b.Total += surge
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		h.logger.Debug("already prepared", "disease", p.Disease)
		return nil
	}

	h.logger.Info("prepared for outbreak",
		"disease", p.Disease,
		"isolation_reserved", isolation,
		"surge_beds", surge,
	)
	h.emit(ctx, "outbreak_preparedness", map[string]any{
		"disease":            p.Disease,
		"isolation_reserved": isolation,
		"surge_beds":         surge,
	})

	urgency := models.UrgencyMedium
	if p.RiskLevel == models.RiskCritical {
		urgency = models.UrgencyHigh
	}
	h.publish(ctx, bus.MedicineRequest{
		HospitalID:        h.id,
		Zone:              h.zone,
		Disease:           p.Disease,
		Urgency:           urgency,
		EstimatedPatients: p.ProjectedCount,
	})
	return nil
}

func (h *Hospital) onDelivery(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.DeliveryComplete)
	if !ok || p.RequesterID != h.id {
		return
	}
	h.react(func(ctx context.Context) {
		h.handleErr(ev.Topic(), h.receive(ctx, p))
	})
}

// receive adds delivered equipment to the available pool.
func (h *Hospital) receive(ctx context.Context, p bus.DeliveryComplete) error {
	_, err := h.env.Store.Mutate(ctx, h.id, func(e *models.Entity) error {
		if e.Hospital.Equipment == nil {
			e.Hospital.Equipment = make(map[string]*models.EquipmentCount)
		}
		eq, ok := e.Hospital.Equipment[p.Item]
		if !ok {
			eq = &models.EquipmentCount{}
			e.Hospital.Equipment[p.Item] = eq
		}
		eq.Total += p.Quantity
		eq.Available += p.Quantity
		return nil
	})
	if err != nil {
		return fmt.Errorf("receiving order %s: %w", p.OrderID, err)
	}
	h.logger.Info("delivery received", "item", p.Item, "quantity", p.Quantity, "order_id", p.OrderID)
	h.emit(ctx, "delivery_received", p)
	return nil
}
