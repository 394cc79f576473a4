package agents

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/services/prioritizer"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/util"
)

const equipmentReorderShare = 0.5

// Supplier takes orders, dispatches them by priority and completes deliveries.
type Supplier struct {
	base
	prioritizer *prioritizer.Prioritizer
}

// NewSupplier creates the actor for a supplier entity and subscribes it.
func NewSupplier(env *Env, e *models.Entity, interval time.Duration) *Supplier {
	s := &Supplier{base: newBase(env, e, interval)}
	s.prioritizer = prioritizer.New(s.env.Scoring, s.env.Logger)

	s.subscribe(bus.TopicMedicineShortageRisk, s.onShortage)
	s.subscribe(bus.TopicEquipmentShortage, s.onEquipmentShortage)
	s.subscribe(bus.TopicHospitalResourceRequest, s.onResourceRequest)
	s.subscribe(bus.TopicHospitalOverloadRisk, s.onOverload)
	return s
}

// Tick delivers due orders, prunes old ones and dispatches by priority.
func (s *Supplier) Tick(ctx context.Context) error {
	e, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	zones := s.highRiskZones(ctx)
	scores := s.prioritizer.Scores(ctx, e.Supplier, zones)
	now := s.env.now()
	retention := s.env.Settings.OrderRetention

	var (
		delivered []models.Order
		decisions []prioritizer.Decision
		low       []string
	)
	_, err = s.env.Store.Mutate(ctx, s.id, func(e *models.Entity) error {
		delivered, decisions, low = nil, nil, nil
		ss := e.Supplier

		for _, o := range prioritizer.Deliver(ss, now) {
			delivered = append(delivered, *o)
		}
		pruned := ss.PruneDelivered(now, retention)
		ranked := prioritizer.Rank(ss, zones, scores)
		for _, d := range prioritizer.Apply(ss, ranked, now) {
			o := *d.Order
			d.Order = &o
			decisions = append(decisions, d)
		}
		low = ss.LowInventory()

		if len(delivered) == 0 && len(decisions) == 0 && pruned == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, o := range delivered {
		p := bus.DeliveryComplete{
			SupplierID:    s.id,
			OrderID:       o.ID,
			RequesterID:   o.RequesterID,
			RequesterType: o.RequesterType,
			Item:          o.Item,
			Quantity:      o.Quantity,
			Zone:          o.Zone,
		}
		s.logger.Info("order delivered", "order_id", o.ID, "item", o.Item, "quantity", o.Quantity)
		s.emit(ctx, "delivered", p)
		s.publish(ctx, p)
	}

	for _, d := range decisions {
		s.env.Observer.OrderOutcome(string(d.Outcome))
		o := d.Order
		switch d.Outcome {
		case prioritizer.Dispatched:
			p := bus.SupplyConfirmed{
				SupplierID:    s.id,
				OrderID:       o.ID,
				RequesterID:   o.RequesterID,
				RequesterType: o.RequesterType,
				Item:          o.Item,
				Quantity:      o.Quantity,
				Zone:          o.Zone,
				ETAHours:      o.ETAHours,
			}
			s.logger.Info("order dispatched",
				"order_id", o.ID,
				"item", o.Item,
				"quantity", o.Quantity,
				"priority", o.PriorityScore,
				"eta_hours", o.ETAHours,
			)
			s.emit(ctx, "dispatched", p)
			s.publish(ctx, p)
		case prioritizer.Unavailable:
			p := bus.SupplyUnavailable{
				SupplierID:    s.id,
				OrderID:       o.ID,
				RequesterID:   o.RequesterID,
				RequesterType: o.RequesterType,
				Item:          o.Item,
				Zone:          o.Zone,
				Reason:        d.Reason,
			}
			s.logger.Warn("order unavailable", "order_id", o.ID, "item", o.Item, "reason", d.Reason)
			s.emit(ctx, "unavailable", p)
			s.publish(ctx, p)
		case prioritizer.Waiting:
			s.logger.Debug("order waiting", "order_id", o.ID, "reason", d.Reason)
		}
	}

	if len(low) > 0 {
		sort.Strings(low)
		s.logger.Warn("low inventory", "items", low)
		s.emit(ctx, "low_inventory", low)
	}
	return nil
}

// highRiskZones reads the city's current high-risk zones. Without a city
// record no zone gets a bonus.
func (s *Supplier) highRiskZones(ctx context.Context) []models.Zone {
	cities, err := s.env.Store.Find(ctx, models.EntityFilter{Type: models.EntityTypeCity})
	if err != nil {
		s.logger.Warn("reading city risk", "error", err)
		return nil
	}
	for _, c := range cities {
		if c.City != nil {
			return c.City.HighRiskZones()
		}
	}
	return nil
}

func (s *Supplier) onShortage(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.MedicineShortageRisk)
	if !ok || p.SupplierID != s.id {
		return
	}
	s.react(func(ctx context.Context) {
		s.handleErr(ev.Topic(), s.accept(ctx, []*models.Order{{
			ID:            p.OrderID,
			RequesterID:   p.PharmacyID,
			RequesterType: models.EntityTypePharmacy,
			Item:          p.Medicine,
			Quantity:      p.OrderQuantity,
			Urgency:       p.Urgency,
			Criticality:   p.Criticality,
			Zone:          p.Zone,
		}}))
	})
}

func (s *Supplier) onEquipmentShortage(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.EquipmentShortage)
	if !ok {
		return
	}
	qty := int(math.Ceil(float64(p.Total-p.Available) * equipmentReorderShare))
	if qty <= 0 {
		return
	}
	s.react(func(ctx context.Context) {
		if !s.serves(ctx, p.Zone) {
			return
		}
		s.handleErr(ev.Topic(), s.accept(ctx, []*models.Order{{
			ID:            util.NewID(),
			RequesterID:   p.HospitalID,
			RequesterType: models.EntityTypeHospital,
			Item:          p.Equipment,
			Quantity:      qty,
			Urgency:       models.UrgencyHigh,
			Criticality:   models.CriticalityHigh,
			Zone:          p.Zone,
		}}))
	})
}

func (s *Supplier) onResourceRequest(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.HospitalResourceRequest)
	if !ok || len(p.Needs) == 0 {
		return
	}
	orders := make([]*models.Order, 0, len(p.Needs))
	for _, n := range p.Needs {
		orders = append(orders, &models.Order{
			ID:            util.NewID(),
			RequesterID:   p.HospitalID,
			RequesterType: models.EntityTypeHospital,
			Item:          n.Item,
			Quantity:      n.Quantity,
			Urgency:       p.Urgency,
			Criticality:   models.CriticalityHigh,
			Zone:          p.Zone,
		})
	}
	s.react(func(ctx context.Context) {
		if !s.serves(ctx, p.Zone) {
			return
		}
		s.handleErr(ev.Topic(), s.accept(ctx, orders))
	})
}

func (s *Supplier) onOverload(_ context.Context, ev bus.Event) {
	p, ok := ev.Payload.(bus.HospitalOverloadRisk)
	if !ok {
		return
	}
	s.react(func(ctx context.Context) {
		if !s.serves(ctx, p.Zone) {
			return
		}
		e, err := s.snapshot(ctx)
		if err != nil {
			s.handleErr(ev.Topic(), err)
			return
		}
		eta := e.Supplier.Fleet.ETAHours()
		s.logger.Info("standing by for overloaded hospital",
			"hospital_id", p.HospitalID,
			"occupancy", p.Occupancy,
			"vehicles_available", e.Supplier.Fleet.Available,
			"eta_hours", eta,
		)
		s.emit(ctx, "overload_response", map[string]any{
			"hospital_id":        p.HospitalID,
			"vehicles_available": e.Supplier.Fleet.Available,
			"eta_hours":          eta,
		})
	})
}

func (s *Supplier) serves(ctx context.Context, z models.Zone) bool {
	e, err := s.snapshot(ctx)
	if err != nil {
		s.handleErr("", err)
		return false
	}
	return e.Supplier.Serves(z)
}

// accept queues new orders. An order whose ID is already known, or that
// duplicates an open order for the same requester and item, is skipped.
func (s *Supplier) accept(ctx context.Context, orders []*models.Order) error {
	now := s.env.now()
	var added []models.Order
	_, err := s.env.Store.Mutate(ctx, s.id, func(e *models.Entity) error {
		added = added[:0]
		ss := e.Supplier
		for _, o := range orders {
			if ss.OrderByID(o.ID) != nil || ss.OpenOrderFor(o.RequesterID, o.Item) != nil {
				continue
			}
			n := *o
			n.Status = models.OrderRequested
			n.RequestedAt = now
			ss.ActiveOrders = append(ss.ActiveOrders, &n)
			added = append(added, n)
		}
		if len(added) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, o := range added {
		s.logger.Info("order received",
			"order_id", o.ID,
			"requester_id", o.RequesterID,
			"item", o.Item,
			"quantity", o.Quantity,
			"urgency", o.Urgency,
		)
		s.emit(ctx, "order_received", o)
	}
	return nil
}
