package models

import "time"

// LowInventoryThreshold is the stock level below which a supplier warns.
const LowInventoryThreshold = 100

// StockItem is one inventory line at a supplier.
type StockItem struct {
	Stock int `json:"stock"`
}

// Fleet tracks delivery vehicles.
type Fleet struct {
	Vehicles         int     `json:"vehicles"`
	Available        int     `json:"available"`
	InTransit        int     `json:"in_transit"`
	AvgDeliveryHours float64 `json:"avg_delivery_hours"`
}

// ETAHours estimates delivery time from the base time plus fleet load.
func (f *Fleet) ETAHours() float64 {
	if f.Vehicles <= 0 {
		return f.AvgDeliveryHours
	}
	return f.AvgDeliveryHours + 0.5*(float64(f.InTransit)/float64(f.Vehicles))
}

// Allocate takes a vehicle out of the yard when one is available.
func (f *Fleet) Allocate() bool {
	if f.Available <= 0 {
		return false
	}
	f.Available--
	f.InTransit++
	return true
}

// Return brings a vehicle back to the yard.
func (f *Fleet) Return() {
	if f.InTransit > 0 {
		f.InTransit--
	}
	if f.Available < f.Vehicles {
		f.Available++
	}
}

// SupplierState is the operational state of a supplier.
type SupplierState struct {
	Inventory    map[string]*StockItem `json:"inventory"`
	Fleet        Fleet                 `json:"fleet"`
	ServiceZones []Zone                `json:"service_zones"`
	ActiveOrders []*Order              `json:"active_orders"`
}

// Serves reports whether the supplier delivers to a zone.
func (s *SupplierState) Serves(z Zone) bool {
	for _, sz := range s.ServiceZones {
		if sz == z {
			return true
		}
	}
	return false
}

// StockOf returns the inventory level for an item; unknown items have none.
func (s *SupplierState) StockOf(item string) int {
	if it, ok := s.Inventory[item]; ok {
		return it.Stock
	}
	return 0
}

// OrderByID finds an active order.
func (s *SupplierState) OrderByID(id string) *Order {
	for _, o := range s.ActiveOrders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// OpenOrderFor returns the undelivered order for a requester and item, if any.
func (s *SupplierState) OpenOrderFor(requesterID, item string) *Order {
	for _, o := range s.ActiveOrders {
		if o.RequesterID == requesterID && o.Item == item && o.Status != OrderDelivered {
			return o
		}
	}
	return nil
}

// PruneDelivered drops delivered orders older than retention and returns
// how many were removed.
func (s *SupplierState) PruneDelivered(now time.Time, retention time.Duration) int {
	kept := s.ActiveOrders[:0]
	removed := 0
	for _, o := range s.ActiveOrders {
		if o.Status == OrderDelivered && o.DeliveredAt != nil && now.Sub(*o.DeliveredAt) >= retention {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	s.ActiveOrders = kept
	return removed
}

// LowInventory lists items below the warning threshold.
func (s *SupplierState) LowInventory() []string {
	var out []string
	for name, it := range s.Inventory {
		if it.Stock < LowInventoryThreshold {
			out = append(out, name)
		}
	}
	return out
}
