package models

import (
	"fmt"
	"math"
	"time"
)

// Medicines stocked by pharmacies.
const (
	MedicineDengue      = "dengueMed"
	MedicineChloroquine = "chloroquine"
	MedicineParacetamol = "paracetamol"
	MedicineOseltamivir = "oseltamivir"
	MedicineCeftriaxone = "ceftriaxone"
)

// RelatedMedicine is the supportive medicine whose demand rises with any outbreak.
const RelatedMedicine = MedicineParacetamol

// DemandLevel classifies medicine consumption pressure.
type DemandLevel string

const (
	DemandLow    DemandLevel = "LOW"
	DemandMedium DemandLevel = "MEDIUM"
	DemandHigh   DemandLevel = "HIGH"
	DemandSurge  DemandLevel = "SURGE"
)

// Valid returns true if the demand level is known.
func (d DemandLevel) Valid() bool {
	switch d {
	case DemandLow, DemandMedium, DemandHigh, DemandSurge:
		return true
	default:
		return false
	}
}

// Medicine is one stocked medicine at a pharmacy.
type Medicine struct {
	Stock        int         `json:"stock"`
	DailyUsage   float64     `json:"daily_usage"`
	ReorderPoint int         `json:"reorder_point"`
	Criticality  Criticality `json:"criticality"`
	SupplierID   string      `json:"supplier_id,omitempty"`
	DemandLevel  DemandLevel `json:"demand_level,omitempty"`
}

// DaysLeft returns stock divided by daily usage. Unused medicine lasts forever.
func (m *Medicine) DaysLeft() float64 {
	if m.DailyUsage <= 0 {
		return math.Inf(1)
	}
	return float64(m.Stock) / m.DailyUsage
}

// NeedsReorder reports whether stock is at or below the reorder point.
func (m *Medicine) NeedsReorder() bool {
	return m.Stock <= m.ReorderPoint
}

// ReorderUrgency grades urgency from days of stock left.
func (m *Medicine) ReorderUrgency() Urgency {
	days := m.DaysLeft()
	switch {
	case days < 2:
		return UrgencyHigh
	case days < 5:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ReorderQuantity sizes a replenishment order, rounded up to tens. High
// criticality medicines target 14 days of cover, others 10, and every
// order covers at least a week.
func (m *Medicine) ReorderQuantity() int {
	target := 10.0
	if m.Criticality == CriticalityHigh {
		target = 14
	}
	need := math.Max(m.DailyUsage*target-float64(m.Stock), m.DailyUsage*7)
	if need <= 0 {
		return 0
	}
	return int(math.Ceil(need/10) * 10)
}

// PendingOrder is an outstanding replenishment request.
type PendingOrder struct {
	Medicine    string    `json:"medicine"`
	Quantity    int       `json:"quantity"`
	Urgency     Urgency   `json:"urgency"`
	SupplierID  string    `json:"supplier_id"`
	OrderID     string    `json:"order_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// PharmacyState is the operational state of a pharmacy.
type PharmacyState struct {
	Medicines     map[string]*Medicine `json:"medicines"`
	PendingOrders []PendingOrder       `json:"pending_orders"`
	// OutbreakAlerts records when each disease was last reported in the
	// pharmacy's zone.
	OutbreakAlerts map[Disease]time.Time `json:"outbreak_alerts,omitempty"`
}

// NoteOutbreak records an outbreak report for a disease.
func (p *PharmacyState) NoteOutbreak(d Disease, now time.Time) {
	if p.OutbreakAlerts == nil {
		p.OutbreakAlerts = make(map[Disease]time.Time)
	}
	p.OutbreakAlerts[d] = now
}

// ActiveOutbreaks lists diseases reported within ttl, in AllDiseases order.
// Older reports are forgotten.
func (p *PharmacyState) ActiveOutbreaks(now time.Time, ttl time.Duration) []Disease {
	var out []Disease
	for _, d := range AllDiseases {
		at, ok := p.OutbreakAlerts[d]
		if !ok {
			continue
		}
		if now.Sub(at) > ttl {
			delete(p.OutbreakAlerts, d)
			continue
		}
		out = append(out, d)
	}
	return out
}

// HasPending reports whether an order for the medicine is open.
func (p *PharmacyState) HasPending(medicine string) bool {
	for _, o := range p.PendingOrders {
		if o.Medicine == medicine {
			return true
		}
	}
	return false
}

// AddPending records a new order. At most one order per medicine may be open.
func (p *PharmacyState) AddPending(o PendingOrder) error {
	if p.HasPending(o.Medicine) {
		return fmt.Errorf("order for %s already pending", o.Medicine)
	}
	p.PendingOrders = append(p.PendingOrders, o)
	return nil
}

// ExpirePending drops orders requested at least maxAge before now and
// returns them. A non-positive maxAge expires nothing.
func (p *PharmacyState) ExpirePending(now time.Time, maxAge time.Duration) []PendingOrder {
	if maxAge <= 0 {
		return nil
	}
	var expired []PendingOrder
	kept := p.PendingOrders[:0]
	for _, o := range p.PendingOrders {
		if now.Sub(o.RequestedAt) >= maxAge {
			expired = append(expired, o)
			continue
		}
		kept = append(kept, o)
	}
	p.PendingOrders = kept
	return expired
}

// RemovePending clears the open order for a medicine and reports whether one existed.
func (p *PharmacyState) RemovePending(medicine string) bool {
	for i, o := range p.PendingOrders {
		if o.Medicine == medicine {
			p.PendingOrders = append(p.PendingOrders[:i], p.PendingOrders[i+1:]...)
			return true
		}
	}
	return false
}
