// Package prioritizer ranks a supplier's open orders and decides which of
// them the current inventory can serve.
package prioritizer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

// Score components of the local ranking rule.
const (
	HighRiskZoneBonus = 20
	HospitalBonus     = 15
)

var urgencyPoints = map[models.Urgency]float64{
	models.UrgencyHigh:   50,
	models.UrgencyMedium: 30,
	models.UrgencyLow:    10,
}

var criticalityPoints = map[models.Criticality]float64{
	models.CriticalityHigh:   30,
	models.CriticalityMedium: 15,
}

// Scorer is the part of the scoring client the prioritizer uses.
type Scorer interface {
	PrioritizeOrders(ctx context.Context, req scoring.PrioritizeRequest) (*scoring.PrioritizeResult, error)
	Fallback(endpoint string, err error)
}

// Outcome is what happened to an order during Apply.
type Outcome string

const (
	// Dispatched orders left the warehouse.
	Dispatched Outcome = "dispatched"
	// Waiting orders stay requested until stock allows.
	Waiting Outcome = "waiting"
	// Unavailable orders were dropped; the item is out of stock or unknown.
	Unavailable Outcome = "unavailable"
)

// Decision records the outcome for one order.
type Decision struct {
	Order   *models.Order
	Outcome Outcome
	Reason  string
}

// Prioritizer ranks orders through the service with a local fallback.
type Prioritizer struct {
	scorer Scorer
	logger *slog.Logger
}

// New creates a prioritizer. A nil scorer always uses the local rule.
func New(scorer Scorer, logger *slog.Logger) *Prioritizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prioritizer{scorer: scorer, logger: logger.With("component", "prioritizer")}
}

// FallbackScore is the local priority of an order: urgency plus item
// criticality, plus bonuses for high-risk zones and hospital requesters.
func FallbackScore(o *models.Order, highRisk map[models.Zone]bool) float64 {
	score := urgencyPoints[o.Urgency] + criticalityPoints[o.Criticality]
	if highRisk[o.Zone] {
		score += HighRiskZoneBonus
	}
	if o.RequesterType == models.EntityTypeHospital {
		score += HospitalBonus
	}
	return score
}

// Scores asks the service to score the supplier's open orders. It returns
// nil when the service is unavailable; Rank then uses the local rule.
func (p *Prioritizer) Scores(ctx context.Context, s *models.SupplierState, highRiskZones []models.Zone) map[string]float64 {
	open := openOrders(s)
	if len(open) == 0 {
		return nil
	}
	return p.serviceScores(ctx, s, open, zoneSet(highRiskZones))
}

// Rank scores every requested order and returns them highest first. Orders
// missing from scores get the local rule. Ties keep the earlier request
// first. Scores are written to the orders.
func Rank(s *models.SupplierState, highRiskZones []models.Zone, scores map[string]float64) []*models.Order {
	open := openOrders(s)
	if len(open) == 0 {
		return nil
	}

	highRisk := zoneSet(highRiskZones)
	for _, o := range open {
		if v, ok := scores[o.ID]; ok {
			o.PriorityScore = v
			continue
		}
		o.PriorityScore = FallbackScore(o, highRisk)
	}

	sort.SliceStable(open, func(i, j int) bool {
		if open[i].PriorityScore != open[j].PriorityScore {
			return open[i].PriorityScore > open[j].PriorityScore
		}
		return open[i].RequestedAt.Before(open[j].RequestedAt)
	})
	return open
}

func openOrders(s *models.SupplierState) []*models.Order {
	var open []*models.Order
	for _, o := range s.ActiveOrders {
		if o.Status == models.OrderRequested {
			open = append(open, o)
		}
	}
	return open
}

func zoneSet(zones []models.Zone) map[models.Zone]bool {
	set := make(map[models.Zone]bool, len(zones))
	for _, z := range zones {
		set[z] = true
	}
	return set
}

func (p *Prioritizer) serviceScores(ctx context.Context, s *models.SupplierState, open []*models.Order, highRisk map[models.Zone]bool) map[string]float64 {
	if p.scorer == nil {
		return nil
	}

	req := scoring.PrioritizeRequest{
		Inventory:        make(map[string]int, len(s.Inventory)),
		DeliveryCapacity: s.Fleet.Available,
	}
	for item, st := range s.Inventory {
		req.Inventory[item] = st.Stock
	}
	for _, o := range open {
		strain := 40.0
		if highRisk[o.Zone] {
			strain = 80
		}
		req.Orders = append(req.Orders, scoring.OrderLine{
			OrderID:         o.ID,
			RequesterID:     o.RequesterID,
			RequesterType:   string(o.RequesterType),
			Medicine:        o.Item,
			Quantity:        o.Quantity,
			Urgency:         strings.ToUpper(string(o.Urgency)),
			RequesterStrain: strain,
			Zone:            string(o.Zone),
		})
	}

	res, err := p.scorer.PrioritizeOrders(ctx, req)
	if err != nil {
		p.scorer.Fallback(scoring.PathPrioritize, err)
		return nil
	}

	scores := make(map[string]float64, len(res.Prioritized))
	for _, po := range res.Prioritized {
		if po.OrderID != "" {
			scores[po.OrderID] = po.PriorityScore
		}
	}
	return scores
}

// Apply walks ranked orders and dispatches each one the inventory can fully
// cover. Orders for items with no stock are removed from the supplier and
// reported Unavailable; orders short of stock stay requested with a reason.
// Inventory is always checked here regardless of any service verdict.
func Apply(s *models.SupplierState, ranked []*models.Order, now time.Time) []Decision {
	decisions := make([]Decision, 0, len(ranked))
	dropped := make(map[string]bool)

	for _, o := range ranked {
		if o.Status != models.OrderRequested {
			continue
		}

		stock := s.StockOf(o.Item)
		switch {
		case stock <= 0:
			reason := fmt.Sprintf("%s out of stock", o.Item)
			if _, known := s.Inventory[o.Item]; !known {
				reason = fmt.Sprintf("%s not carried", o.Item)
			}
			o.Reason = reason
			dropped[o.ID] = true
			decisions = append(decisions, Decision{Order: o, Outcome: Unavailable, Reason: reason})

		case stock < o.Quantity:
			o.Reason = fmt.Sprintf("insufficient inventory: %d of %d available", stock, o.Quantity)
			decisions = append(decisions, Decision{Order: o, Outcome: Waiting, Reason: o.Reason})

		default:
			eta := s.Fleet.ETAHours()
			deliverAt := now.Add(time.Duration(eta * float64(time.Hour)))
			if err := o.Dispatch(now, eta, deliverAt); err != nil {
				continue
			}
			s.Inventory[o.Item].Stock -= o.Quantity
			o.Vehicle = s.Fleet.Allocate()
			decisions = append(decisions, Decision{Order: o, Outcome: Dispatched})
		}
	}

	if len(dropped) > 0 {
		kept := s.ActiveOrders[:0]
		for _, o := range s.ActiveOrders {
			if !dropped[o.ID] {
				kept = append(kept, o)
			}
		}
		s.ActiveOrders = kept
	}
	return decisions
}

// Deliver completes every dispatched order whose delivery time has passed
// and returns its vehicle, if it had one.
func Deliver(s *models.SupplierState, now time.Time) []*models.Order {
	var delivered []*models.Order
	for _, o := range s.ActiveOrders {
		if !o.DueForDelivery(now) {
			continue
		}
		if err := o.Deliver(now); err != nil {
			continue
		}
		if o.Vehicle {
			s.Fleet.Return()
			o.Vehicle = false
		}
		delivered = append(delivered, o)
	}
	return delivered
}
