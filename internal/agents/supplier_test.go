package agents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/testutil"
)

func shortageFor(supplierID, medicine, orderID string) bus.MedicineShortageRisk {
	return bus.MedicineShortageRisk{
		PharmacyID:    "ph-1",
		Zone:          models.Zone1,
		Medicine:      medicine,
		Stock:         80,
		DaysLeft:      2.7,
		ReorderPoint:  100,
		Urgency:       models.UrgencyMedium,
		Criticality:   models.CriticalityHigh,
		OrderQuantity: 340,
		SupplierID:    supplierID,
		OrderID:       orderID,
	}
}

func TestSupplier_AcceptsOnlyItsOwnOrders(t *testing.T) {
	sup := testutil.FixtureSupplier()
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	h.publish("ph-1", shortageFor("another-supplier", models.MedicineDengue, "ord-0"))
	h.publish("ph-1", shortageFor(sup.ID, models.MedicineDengue, "ord-1"))
	h.publish("ph-1", shortageFor(sup.ID, models.MedicineDengue, "ord-1"))

	orders := h.get(sup.ID).Supplier.ActiveOrders
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].ID)
	assert.Equal(t, models.OrderRequested, orders[0].Status)
	assert.Equal(t, models.EntityTypePharmacy, orders[0].RequesterType)
	assert.True(t, h.clock.Now().Equal(orders[0].RequestedAt))
}

func TestSupplier_FulfilmentRoundTrip(t *testing.T) {
	sup := testutil.FixtureSupplier()
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	h.publish("ph-1", shortageFor(sup.ID, models.MedicineDengue, "ord-1"))
	require.NoError(t, a.Tick(h.ctx))

	confirmed := h.events.of(bus.TopicSupplyConfirmed)
	require.Len(t, confirmed, 1)
	c := confirmed[0].Payload.(bus.SupplyConfirmed)
	assert.Equal(t, "ord-1", c.OrderID)
	assert.Equal(t, "ph-1", c.RequesterID)
	assert.InDelta(t, 2.0, c.ETAHours, 1e-9)

	s := h.get(sup.ID).Supplier
	assert.Equal(t, 5000-340, s.StockOf(models.MedicineDengue))
	assert.Equal(t, 5, s.Fleet.Available)
	assert.Equal(t, 1, h.obs.outcomes["dispatched"])

	h.clock.Advance(3 * time.Hour)
	require.NoError(t, a.Tick(h.ctx))

	delivered := h.events.of(bus.TopicDeliveryComplete)
	require.Len(t, delivered, 1)
	assert.Equal(t, 340, delivered[0].Payload.(bus.DeliveryComplete).Quantity)
	s = h.get(sup.ID).Supplier
	assert.Equal(t, 6, s.Fleet.Available)
	require.Len(t, s.ActiveOrders, 1)
	assert.Equal(t, models.OrderDelivered, s.ActiveOrders[0].Status)

	h.clock.Advance(2 * time.Hour)
	require.NoError(t, a.Tick(h.ctx))
	assert.Empty(t, h.get(sup.ID).Supplier.ActiveOrders, "delivered orders are pruned after retention")
	assert.Len(t, h.events.of(bus.TopicDeliveryComplete), 1)
}

func TestSupplier_UnavailableItem(t *testing.T) {
	sup := testutil.FixtureSupplier(func(e *models.Entity) {
		e.Supplier.Inventory[models.MedicineCeftriaxone].Stock = 0
	})
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	h.publish("ph-1", shortageFor(sup.ID, models.MedicineCeftriaxone, "ord-1"))
	require.NoError(t, a.Tick(h.ctx))

	got := h.events.of(bus.TopicSupplyUnavailable)
	require.Len(t, got, 1)
	p := got[0].Payload.(bus.SupplyUnavailable)
	assert.Equal(t, "ord-1", p.OrderID)
	assert.Equal(t, "ceftriaxone out of stock", p.Reason)
	assert.Empty(t, h.get(sup.ID).Supplier.ActiveOrders)
	assert.Equal(t, 1, h.obs.outcomes["unavailable"])
}

func TestSupplier_WaitsForStock(t *testing.T) {
	sup := testutil.FixtureSupplier(func(e *models.Entity) {
		e.Supplier.Inventory[models.MedicineDengue].Stock = 100
	})
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	h.publish("ph-1", shortageFor(sup.ID, models.MedicineDengue, "ord-1"))
	require.NoError(t, a.Tick(h.ctx))

	assert.Empty(t, h.events.of(bus.TopicSupplyConfirmed))
	orders := h.get(sup.ID).Supplier.ActiveOrders
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderRequested, orders[0].Status)
	assert.Equal(t, "insufficient inventory: 100 of 340 available", orders[0].Reason)
}

func TestSupplier_EquipmentShortageOnlyInServedZones(t *testing.T) {
	sup := testutil.FixtureSupplier(func(e *models.Entity) {
		e.Supplier.ServiceZones = []models.Zone{models.Zone2}
	})
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	shortage := bus.EquipmentShortage{
		HospitalID: "hosp-1",
		Zone:       models.Zone1,
		Equipment:  models.EquipmentVentilators,
		Available:  1,
		Total:      10,
	}
	h.publish("hosp-1", shortage)
	assert.Empty(t, h.get(sup.ID).Supplier.ActiveOrders)

	shortage.Zone = models.Zone2
	h.publish("hosp-1", shortage)
	h.publish("hosp-1", shortage)

	orders := h.get(sup.ID).Supplier.ActiveOrders
	require.Len(t, orders, 1, "an open order for the same item is not duplicated")
	assert.Equal(t, 5, orders[0].Quantity)
	assert.Equal(t, models.UrgencyHigh, orders[0].Urgency)
	assert.Equal(t, models.EntityTypeHospital, orders[0].RequesterType)
}

func TestSupplier_ResourceRequest(t *testing.T) {
	sup := testutil.FixtureSupplier()
	h := newHarness(t, sup)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	req := bus.HospitalResourceRequest{
		HospitalID:  "hosp-1",
		Zone:        models.Zone1,
		StrainIndex: 82,
		StrainLevel: "CRITICAL",
		Urgency:     models.UrgencyHigh,
		Needs: []bus.ResourceNeed{
			{Item: models.EquipmentOxygenCylinders, Quantity: 20},
			{Item: models.EquipmentVentilators, Quantity: 5},
		},
	}
	h.publish("hosp-1", req)
	h.publish("hosp-1", req)

	orders := h.get(sup.ID).Supplier.ActiveOrders
	require.Len(t, orders, 2)
	items := []string{orders[0].Item, orders[1].Item}
	assert.ElementsMatch(t, []string{models.EquipmentOxygenCylinders, models.EquipmentVentilators}, items)
}

func TestSupplier_HighRiskZoneFromCity(t *testing.T) {
	sup := testutil.FixtureSupplier()
	city := testutil.FixtureCity(func(e *models.Entity) {
		zr := models.NewZoneRisk(time.Now())
		zr.Overall = models.RiskHigh
		e.City.RiskZones[models.Zone3] = zr
	})
	h := newHarness(t, sup, city)
	a := NewSupplier(h.env, sup, time.Second)
	defer a.Close()

	assert.Equal(t, []models.Zone{models.Zone3}, a.highRiskZones(h.ctx))
}
