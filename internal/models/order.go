package models

import (
	"fmt"
	"time"
)

// OrderStatus is the fulfilment state of a supply order.
type OrderStatus string

const (
	OrderRequested  OrderStatus = "requested"
	OrderDispatched OrderStatus = "dispatched"
	OrderDelivered  OrderStatus = "delivered"
)

// Valid returns true if the order status is known.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderRequested, OrderDispatched, OrderDelivered:
		return true
	default:
		return false
	}
}

// Order is a supply request tracked by a supplier.
type Order struct {
	ID            string      `json:"id"`
	RequesterID   string      `json:"requester_id"`
	RequesterType EntityType  `json:"requester_type"`
	Item          string      `json:"item"`
	Quantity      int         `json:"quantity"`
	Urgency       Urgency     `json:"urgency"`
	Criticality   Criticality `json:"criticality"`
	Zone          Zone        `json:"zone"`
	Status        OrderStatus `json:"status"`
	Reason        string      `json:"reason,omitempty"`
	PriorityScore float64     `json:"priority_score"`
	ETAHours      float64     `json:"eta_hours,omitempty"`
	RequestedAt   time.Time   `json:"requested_at"`
	DispatchedAt  *time.Time  `json:"dispatched_at,omitempty"`
	DeliverAt     *time.Time  `json:"deliver_at,omitempty"`
	DeliveredAt   *time.Time  `json:"delivered_at,omitempty"`
	Vehicle       bool        `json:"vehicle,omitempty"` // holds a fleet vehicle while dispatched
}

// Validate checks if the order data is valid.
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	if o.RequesterID == "" {
		return fmt.Errorf("requester_id is required")
	}
	if o.Item == "" {
		return fmt.Errorf("item is required")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if !o.Urgency.Valid() {
		return fmt.Errorf("invalid urgency: %s", o.Urgency)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid status: %s", o.Status)
	}
	return nil
}

// Dispatch moves a requested order onto the road.
func (o *Order) Dispatch(now time.Time, etaHours float64, deliverAt time.Time) error {
	if o.Status != OrderRequested {
		return fmt.Errorf("order %s: cannot dispatch from %s", o.ID, o.Status)
	}
	o.Status = OrderDispatched
	o.Reason = ""
	o.ETAHours = etaHours
	o.DispatchedAt = &now
	o.DeliverAt = &deliverAt
	return nil
}

// Deliver completes a dispatched order.
func (o *Order) Deliver(now time.Time) error {
	if o.Status != OrderDispatched {
		return fmt.Errorf("order %s: cannot deliver from %s", o.ID, o.Status)
	}
	o.Status = OrderDelivered
	o.DeliveredAt = &now
	return nil
}

// DueForDelivery reports whether a dispatched order has reached its ETA.
func (o *Order) DueForDelivery(now time.Time) bool {
	return o.Status == OrderDispatched && o.DeliverAt != nil && !now.Before(*o.DeliverAt)
}
