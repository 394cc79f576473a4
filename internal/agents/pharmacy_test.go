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

func lowDengueMed(e *models.Entity) {
	e.Pharmacy.Medicines[models.MedicineDengue].Stock = 80
}

func TestPharmacy_TickReordersOnce(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1", lowDengueMed)
	h := newHarness(t, ph)
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	require.NoError(t, a.Tick(h.ctx))
	require.NoError(t, a.Tick(h.ctx))

	got := h.events.of(bus.TopicMedicineShortageRisk)
	require.Len(t, got, 1)
	p := got[0].Payload.(bus.MedicineShortageRisk)
	assert.Equal(t, models.MedicineDengue, p.Medicine)
	assert.Equal(t, "sup-1", p.SupplierID)
	// 14 days of high-criticality cover: 30*14 - 80 = 340
	assert.Equal(t, 340, p.OrderQuantity)
	assert.Equal(t, models.UrgencyMedium, p.Urgency)
	assert.NotEmpty(t, p.OrderID)

	stored := h.get(ph.ID).Pharmacy
	require.Len(t, stored.PendingOrders, 1)
	assert.Equal(t, p.OrderID, stored.PendingOrders[0].OrderID)
	assert.Equal(t, models.DemandLow, stored.Medicines[models.MedicineParacetamol].DemandLevel)
}

func TestPharmacy_UnansweredOrderIsPlacedAgain(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1", lowDengueMed)
	h := newHarness(t, ph)
	h.env.Settings.PendingTimeout = 6 * time.Hour
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	require.NoError(t, a.Tick(h.ctx))
	h.clock.Advance(5 * time.Hour)
	require.NoError(t, a.Tick(h.ctx))
	require.Len(t, h.events.of(bus.TopicMedicineShortageRisk), 1, "still waiting on the supplier")

	h.clock.Advance(time.Hour)
	require.NoError(t, a.Tick(h.ctx))

	got := h.events.of(bus.TopicMedicineShortageRisk)
	require.Len(t, got, 2)
	first := got[0].Payload.(bus.MedicineShortageRisk)
	second := got[1].Payload.(bus.MedicineShortageRisk)
	assert.Equal(t, models.MedicineDengue, second.Medicine)
	assert.NotEqual(t, first.OrderID, second.OrderID)

	stored := h.get(ph.ID).Pharmacy
	require.Len(t, stored.PendingOrders, 1)
	assert.Equal(t, second.OrderID, stored.PendingOrders[0].OrderID)
	assert.True(t, h.clock.Now().Equal(stored.PendingOrders[0].RequestedAt))
}

func TestPharmacy_TickConsumes(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1")
	h := newHarness(t, ph)
	// a one-hour tick at 24x is one simulated day
	h.env.Settings.TimeScale = 24
	a := NewPharmacy(h.env, ph, time.Hour)
	defer a.Close()

	require.NoError(t, a.Tick(h.ctx))

	m := h.get(ph.ID).Pharmacy.Medicines[models.MedicineParacetamol]
	// 150 a day with a 0.8-1.2 factor
	assert.GreaterOrEqual(t, m.Stock, 1000-180)
	assert.LessOrEqual(t, m.Stock, 1000-120)
}

func TestPharmacy_OutbreakBoostsDemand(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1")
	h := newHarness(t, ph)
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	h.publish("lab-1", dengueOutbreak(models.Zone1, models.RiskHigh))

	stored := h.get(ph.ID).Pharmacy
	assert.InDelta(t, 60, stored.Medicines[models.MedicineDengue].DailyUsage, 1e-9)
	assert.InDelta(t, 195, stored.Medicines[models.MedicineParacetamol].DailyUsage, 1e-9)
	assert.InDelta(t, 20, stored.Medicines[models.MedicineChloroquine].DailyUsage, 1e-9)
	assert.Contains(t, stored.OutbreakAlerts, models.DiseaseDengue)
}

func TestPharmacy_OutbreakBoostFactors(t *testing.T) {
	tests := []struct {
		level models.RiskLevel
		want  float64
	}{
		{models.RiskCritical, 75},
		{models.RiskHigh, 60},
		{models.RiskMedium, 45},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			ph := testutil.FixturePharmacy("sup-1")
			h := newHarness(t, ph)
			a := NewPharmacy(h.env, ph, time.Second)
			defer a.Close()

			h.publish("lab-1", dengueOutbreak(models.Zone1, tt.level))
			assert.InDelta(t, tt.want, h.get(ph.ID).Pharmacy.Medicines[models.MedicineDengue].DailyUsage, 1e-9)
		})
	}
}

func TestPharmacy_MedicineRequestChecksStock(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1", lowDengueMed)
	h := newHarness(t, ph)
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	req := bus.MedicineRequest{
		HospitalID: "hosp-1",
		Zone:       models.Zone1,
		Disease:    models.DiseaseDengue,
		Urgency:    models.UrgencyHigh,
	}
	h.publish("hosp-1", req)
	h.publish("hosp-1", req)

	assert.Len(t, h.events.of(bus.TopicMedicineShortageRisk), 1)

	req.Zone = models.Zone2
	before := h.get(ph.ID).Version
	h.publish("hosp-2", req)
	assert.Equal(t, before, h.get(ph.ID).Version)
}

func TestPharmacy_DeliveryRestocks(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1", lowDengueMed)
	h := newHarness(t, ph)
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	require.NoError(t, a.Tick(h.ctx))
	order := h.events.of(bus.TopicMedicineShortageRisk)[0].Payload.(bus.MedicineShortageRisk)

	h.publish("sup-1", bus.DeliveryComplete{
		SupplierID:    "sup-1",
		OrderID:       order.OrderID,
		RequesterID:   ph.ID,
		RequesterType: models.EntityTypePharmacy,
		Item:          order.Medicine,
		Quantity:      order.OrderQuantity,
		Zone:          models.Zone1,
	})

	stored := h.get(ph.ID).Pharmacy
	assert.Equal(t, 80+340, stored.Medicines[models.MedicineDengue].Stock)
	assert.Empty(t, stored.PendingOrders)
}

func TestPharmacy_UnavailableClearsPending(t *testing.T) {
	ph := testutil.FixturePharmacy("sup-1", lowDengueMed)
	h := newHarness(t, ph)
	a := NewPharmacy(h.env, ph, time.Second)
	defer a.Close()

	require.NoError(t, a.Tick(h.ctx))
	require.Len(t, h.get(ph.ID).Pharmacy.PendingOrders, 1)

	h.publish("sup-1", bus.SupplyUnavailable{
		SupplierID:  "sup-1",
		RequesterID: ph.ID,
		Item:        models.MedicineDengue,
		Reason:      "dengueMed out of stock",
	})
	assert.Empty(t, h.get(ph.ID).Pharmacy.PendingOrders)

	require.NoError(t, a.Tick(h.ctx))
	assert.Len(t, h.events.of(bus.TopicMedicineShortageRisk), 2, "re-orders once the pending order is cleared")
}
