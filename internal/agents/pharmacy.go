package agents

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/services/demand"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/util"
)

// Demand multipliers applied when an outbreak is reported in the zone.
const (
	criticalOutbreakBoost = 2.5
	highOutbreakBoost     = 2.0
	otherOutbreakBoost    = 1.5
	relatedOutbreakBoost  = 1.3
)

// Pharmacy consumes stock, tracks demand and reorders from its supplier.
type Pharmacy struct {
	base
	demand *demand.Classifier
}

// NewPharmacy creates the actor for a pharmacy entity and subscribes it.
func NewPharmacy(env *Env, e *models.Entity, interval time.Duration) *Pharmacy {
	p := &Pharmacy{base: newBase(env, e, interval)}
	p.demand = demand.NewClassifier(p.env.Scoring, p.env.Logger)

	for _, t := range bus.OutbreakTopics() {
		p.subscribe(t, p.onOutbreak)
	}
	p.subscribe(bus.TopicMedicineRequest, p.onMedicineRequest)
	p.subscribe(bus.TopicDeliveryComplete, p.onDelivery)
	p.subscribe(bus.TopicSupplyUnavailable, p.onUnavailable)
	return p
}

// Tick consumes a tick's worth of stock, classifies demand and reorders.
func (p *Pharmacy) Tick(ctx context.Context) error {
	e, err := p.snapshot(ctx)
	if err != nil {
		return err
	}

	names := medicineNames(e.Pharmacy)
	factors := make(map[string]float64, len(names))
	for _, n := range names {
		factors[n] = p.env.Rand.Between(0.8, 1.2)
	}
	days := p.env.simulated(p.interval).Hours() / 24
	now := p.env.now()
	ttl := p.env.Settings.OutbreakMemory

	working := e.Clone()
	consume(working.Pharmacy, factors, days)
	res := p.demand.Classify(ctx, working.Pharmacy, working.Pharmacy.ActiveOutbreaks(now, ttl))
	if surging := res.Surging(); len(surging) > 0 {
		sort.Strings(surging)
		p.logger.Info("demand surge", "medicines", surging, "fallback", res.Fallback)
	}

	ids := orderIDs(names)
	var (
		orders  []bus.MedicineShortageRisk
		expired []models.PendingOrder
	)
	_, err = p.env.Store.Mutate(ctx, p.id, func(e *models.Entity) error {
		ps := e.Pharmacy
		consume(ps, factors, days)
		ps.ActiveOutbreaks(now, ttl)
		expired = ps.ExpirePending(now, p.env.Settings.PendingTimeout)
		for name, level := range res.Levels {
			if m, ok := ps.Medicines[name]; ok {
				m.DemandLevel = level
			}
		}
		orders = p.reorder(e, ids, now)
		return nil
	})
	if err != nil {
		return err
	}
	for _, o := range expired {
		p.logger.Warn("pending order unanswered, reordering",
			"medicine", o.Medicine,
			"order_id", o.OrderID,
			"supplier_id", o.SupplierID,
		)
	}
	p.sendOrders(ctx, orders)
	return nil
}

// consume draws down stock for the given number of simulated days.
func consume(ps *models.PharmacyState, factors map[string]float64, days float64) {
	if days <= 0 {
		return
	}
	for name, m := range ps.Medicines {
		f, ok := factors[name]
		if !ok {
			f = 1
		}
		used := int(math.Round(m.DailyUsage * days * f))
		m.Stock = max(0, m.Stock-used)
	}
}

// reorder opens an order for every medicine at or below its reorder point
// or in demand surge that has none pending. It mutates e and returns the
// events to publish once the write lands.
func (p *Pharmacy) reorder(e *models.Entity, ids map[string]string, now time.Time) []bus.MedicineShortageRisk {
	ps := e.Pharmacy
	var out []bus.MedicineShortageRisk
	for _, name := range medicineNames(ps) {
		m := ps.Medicines[name]
		if ps.HasPending(name) {
			continue
		}
		if !m.NeedsReorder() && m.DemandLevel != models.DemandSurge {
			continue
		}
		qty := m.ReorderQuantity()
		if qty <= 0 {
			continue
		}
		if m.SupplierID == "" {
			p.logger.Warn("no supplier for medicine", "medicine", name)
			continue
		}
		id, ok := ids[name]
		if !ok {
			continue
		}
		urgency := m.ReorderUrgency()
		if err := ps.AddPending(models.PendingOrder{
			Medicine:    name,
			Quantity:    qty,
			Urgency:     urgency,
			SupplierID:  m.SupplierID,
			OrderID:     id,
			RequestedAt: now,
		}); err != nil {
			continue
		}
		out = append(out, bus.MedicineShortageRisk{
			PharmacyID:    e.ID,
			Zone:          e.Zone,
			Medicine:      name,
			Stock:         m.Stock,
			DaysLeft:      math.Round(m.DaysLeft()*10) / 10,
			ReorderPoint:  m.ReorderPoint,
			Urgency:       urgency,
			Criticality:   m.Criticality,
			OrderQuantity: qty,
			SupplierID:    m.SupplierID,
			OrderID:       id,
		})
	}
	return out
}

func (p *Pharmacy) sendOrders(ctx context.Context, orders []bus.MedicineShortageRisk) {
	for _, o := range orders {
		p.logger.Info("reordering",
			"medicine", o.Medicine,
			"stock", o.Stock,
			"quantity", o.OrderQuantity,
			"urgency", o.Urgency,
			"order_id", o.OrderID,
		)
		p.emit(ctx, "reorder", o)
		p.publish(ctx, o)
	}
}

func (p *Pharmacy) onOutbreak(_ context.Context, ev bus.Event) {
	o, ok := ev.Payload.(bus.OutbreakPredicted)
	if !ok || o.Zone != p.zone {
		return
	}
	p.react(func(ctx context.Context) {
		p.handleErr(ev.Topic(), p.boost(ctx, o))
	})
}

// boost raises daily usage of the medicines an outbreak drives and checks
// stock straight away.
func (p *Pharmacy) boost(ctx context.Context, o bus.OutbreakPredicted) error {
	factor := otherOutbreakBoost
	switch o.RiskLevel {
	case models.RiskCritical:
		factor = criticalOutbreakBoost
	case models.RiskHigh:
		factor = highOutbreakBoost
	}
	primary := o.Disease.PrimaryMedicine()
	now := p.env.now()

	e, err := p.snapshot(ctx)
	if err != nil {
		return err
	}
	ids := orderIDs(medicineNames(e.Pharmacy))

	var orders []bus.MedicineShortageRisk
	_, err = p.env.Store.Mutate(ctx, p.id, func(e *models.Entity) error {
		ps := e.Pharmacy
		ps.NoteOutbreak(o.Disease, now)
		if m, ok := ps.Medicines[primary]; ok {
			m.DailyUsage *= factor
		}
		if primary != models.RelatedMedicine {
			if m, ok := ps.Medicines[models.RelatedMedicine]; ok {
				m.DailyUsage *= relatedOutbreakBoost
			}
		}
		orders = p.reorder(e, ids, now)
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("demand raised for outbreak", "disease", o.Disease, "medicine", primary, "factor", factor)
	p.sendOrders(ctx, orders)
	return nil
}

func (p *Pharmacy) onMedicineRequest(_ context.Context, ev bus.Event) {
	r, ok := ev.Payload.(bus.MedicineRequest)
	if !ok || r.Zone != p.zone {
		return
	}
	p.react(func(ctx context.Context) {
		p.handleErr(ev.Topic(), p.checkStock(ctx))
	})
}

// checkStock reorders whatever is low without consuming anything.
func (p *Pharmacy) checkStock(ctx context.Context) error {
	e, err := p.snapshot(ctx)
	if err != nil {
		return err
	}
	ids := orderIDs(medicineNames(e.Pharmacy))
	now := p.env.now()

	var orders []bus.MedicineShortageRisk
	_, err = p.env.Store.Mutate(ctx, p.id, func(e *models.Entity) error {
		orders = p.reorder(e, ids, now)
		if len(orders) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.sendOrders(ctx, orders)
	return nil
}

func (p *Pharmacy) onDelivery(_ context.Context, ev bus.Event) {
	d, ok := ev.Payload.(bus.DeliveryComplete)
	if !ok || d.RequesterID != p.id {
		return
	}
	p.react(func(ctx context.Context) {
		p.handleErr(ev.Topic(), p.restock(ctx, d))
	})
}

func (p *Pharmacy) restock(ctx context.Context, d bus.DeliveryComplete) error {
	_, err := p.env.Store.Mutate(ctx, p.id, func(e *models.Entity) error {
		ps := e.Pharmacy
		m, ok := ps.Medicines[d.Item]
		if !ok {
			m = &models.Medicine{SupplierID: d.SupplierID}
			if ps.Medicines == nil {
				ps.Medicines = make(map[string]*models.Medicine)
			}
			ps.Medicines[d.Item] = m
		}
		m.Stock += d.Quantity
		ps.RemovePending(d.Item)
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("restocked", "medicine", d.Item, "quantity", d.Quantity, "order_id", d.OrderID)
	p.emit(ctx, "restocked", d)
	return nil
}

func (p *Pharmacy) onUnavailable(_ context.Context, ev bus.Event) {
	u, ok := ev.Payload.(bus.SupplyUnavailable)
	if !ok || u.RequesterID != p.id {
		return
	}
	p.react(func(ctx context.Context) {
		_, err := p.env.Store.Mutate(ctx, p.id, func(e *models.Entity) error {
			if !e.Pharmacy.RemovePending(u.Item) {
				return store.ErrNoChange
			}
			return nil
		})
		if err == nil {
			p.logger.Warn("supply unavailable", "medicine", u.Item, "reason", u.Reason)
		}
		p.handleErr(ev.Topic(), err)
	})
}

func medicineNames(ps *models.PharmacyState) []string {
	names := make([]string, 0, len(ps.Medicines))
	for n := range ps.Medicines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func orderIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	for _, n := range names {
		ids[n] = util.NewID()
	}
	return ids
}
