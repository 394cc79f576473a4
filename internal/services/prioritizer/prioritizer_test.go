package prioritizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeScorer struct {
	res       *scoring.PrioritizeResult
	err       error
	req       scoring.PrioritizeRequest
	fallbacks int
}

func (f *fakeScorer) PrioritizeOrders(_ context.Context, req scoring.PrioritizeRequest) (*scoring.PrioritizeResult, error) {
	f.req = req
	return f.res, f.err
}

func (f *fakeScorer) Fallback(string, error) { f.fallbacks++ }

func order(id string, urgency models.Urgency, crit models.Criticality, zone models.Zone, typ models.EntityType, item string, qty int, at time.Duration) *models.Order {
	return &models.Order{
		ID:            id,
		RequesterID:   "req-" + id,
		RequesterType: typ,
		Item:          item,
		Quantity:      qty,
		Urgency:       urgency,
		Criticality:   crit,
		Zone:          zone,
		Status:        models.OrderRequested,
		RequestedAt:   t0.Add(at),
	}
}

func TestFallbackScore(t *testing.T) {
	highRisk := map[models.Zone]bool{models.Zone2: true}

	tests := []struct {
		name  string
		order *models.Order
		want  float64
	}{
		{"high urgency high criticality", order("a", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, "x", 1, 0), 80},
		{"medium medium", order("b", models.UrgencyMedium, models.CriticalityMedium, models.Zone1, models.EntityTypePharmacy, "x", 1, 0), 45},
		{"low low", order("c", models.UrgencyLow, models.CriticalityLow, models.Zone1, models.EntityTypePharmacy, "x", 1, 0), 10},
		{"high risk zone", order("d", models.UrgencyLow, models.CriticalityLow, models.Zone2, models.EntityTypePharmacy, "x", 1, 0), 30},
		{"hospital requester", order("e", models.UrgencyLow, models.CriticalityLow, models.Zone1, models.EntityTypeHospital, "x", 1, 0), 25},
		{"everything", order("f", models.UrgencyHigh, models.CriticalityHigh, models.Zone2, models.EntityTypeHospital, "x", 1, 0), 115},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackScore(tt.order, highRisk))
		})
	}
}

func TestFallbackScoreMonotonic(t *testing.T) {
	urgencies := []models.Urgency{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh}
	crits := []models.Criticality{models.CriticalityLow, models.CriticalityMedium, models.CriticalityHigh}

	for _, c := range crits {
		prev := -1.0
		for _, u := range urgencies {
			score := FallbackScore(order("x", u, c, models.Zone1, models.EntityTypePharmacy, "x", 1, 0), nil)
			assert.Greater(t, score, prev, "urgency %s criticality %s", u, c)
			prev = score

			hosp := FallbackScore(order("x", u, c, models.Zone1, models.EntityTypeHospital, "x", 1, 0), nil)
			assert.Equal(t, score+HospitalBonus, hosp)
		}
	}
}

func TestRankFallback(t *testing.T) {
	s := models.DefaultSupplierState(models.AllZones...)
	s.ActiveOrders = []*models.Order{
		order("late", models.UrgencyMedium, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, models.MedicineDengue, 10, 2*time.Minute),
		order("early", models.UrgencyMedium, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, models.MedicineDengue, 10, time.Minute),
		order("urgent", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, models.MedicineDengue, 10, 3*time.Minute),
		order("zone", models.UrgencyMedium, models.CriticalityHigh, models.Zone3, models.EntityTypePharmacy, models.MedicineDengue, 10, 4*time.Minute),
	}
	dispatched := order("done", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypeHospital, models.MedicineDengue, 10, 0)
	dispatched.Status = models.OrderDispatched
	s.ActiveOrders = append(s.ActiveOrders, dispatched)

	scorer := &fakeScorer{err: errors.New("down")}
	highRisk := []models.Zone{models.Zone3}
	scores := New(scorer, nil).Scores(context.Background(), s, highRisk)
	assert.Nil(t, scores)
	ranked := Rank(s, highRisk, scores)

	ids := make([]string, len(ranked))
	for i, o := range ranked {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"urgent", "zone", "early", "late"}, ids)
	assert.Equal(t, 1, scorer.fallbacks)
	assert.Equal(t, 80.0, ranked[0].PriorityScore)
}

func TestRankUsesServiceScores(t *testing.T) {
	s := models.DefaultSupplierState(models.AllZones...)
	s.ActiveOrders = []*models.Order{
		order("a", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, models.MedicineDengue, 10, 0),
		order("b", models.UrgencyLow, models.CriticalityLow, models.Zone1, models.EntityTypePharmacy, models.MedicineParacetamol, 10, time.Minute),
	}
	scorer := &fakeScorer{res: &scoring.PrioritizeResult{Prioritized: []scoring.PrioritizedOrder{
		{OrderID: "b", PriorityScore: 90},
		{OrderID: "a", PriorityScore: 60},
	}}}

	ranked := Rank(s, nil, New(scorer, nil).Scores(context.Background(), s, nil))
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Zero(t, scorer.fallbacks)
	assert.Equal(t, "HIGH", scorer.req.Orders[0].Urgency)
	assert.Equal(t, 5000, scorer.req.Inventory[models.MedicineDengue])
}

func TestApply(t *testing.T) {
	s := &models.SupplierState{
		Inventory: map[string]*models.StockItem{
			"dengueMed":   {Stock: 100},
			"paracetamol": {Stock: 0},
		},
		Fleet: models.Fleet{Vehicles: 4, Available: 2, InTransit: 2, AvgDeliveryHours: 2},
	}
	first := order("first", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, "dengueMed", 80, 0)
	second := order("second", models.UrgencyMedium, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, "dengueMed", 30, time.Minute)
	empty := order("empty", models.UrgencyMedium, models.CriticalityMedium, models.Zone1, models.EntityTypePharmacy, "paracetamol", 10, time.Minute)
	unknown := order("unknown", models.UrgencyLow, models.CriticalityLow, models.Zone1, models.EntityTypePharmacy, "unobtainium", 1, time.Minute)
	s.ActiveOrders = []*models.Order{first, second, empty, unknown}

	decisions := Apply(s, []*models.Order{first, second, empty, unknown}, t0)
	require.Len(t, decisions, 4)

	assert.Equal(t, Dispatched, decisions[0].Outcome)
	assert.Equal(t, models.OrderDispatched, first.Status)
	assert.InDelta(t, 2.25, first.ETAHours, 1e-9, "base 2h plus 0.5 x 2/4")
	require.NotNil(t, first.DeliverAt)
	assert.Equal(t, t0.Add(135*time.Minute), *first.DeliverAt)
	assert.Equal(t, 20, s.Inventory["dengueMed"].Stock)
	assert.Equal(t, 1, s.Fleet.Available)
	assert.Equal(t, 3, s.Fleet.InTransit)
	assert.True(t, first.Vehicle)

	assert.Equal(t, Waiting, decisions[1].Outcome)
	assert.Equal(t, models.OrderRequested, second.Status)
	assert.Contains(t, second.Reason, "insufficient inventory")

	assert.Equal(t, Unavailable, decisions[2].Outcome)
	assert.Equal(t, Unavailable, decisions[3].Outcome)
	assert.Contains(t, decisions[3].Reason, "not carried")

	assert.Equal(t, []*models.Order{first, second}, s.ActiveOrders)
}

func TestDeliverReturnsOnlyAllocatedVehicles(t *testing.T) {
	s := &models.SupplierState{
		Inventory: map[string]*models.StockItem{"dengueMed": {Stock: 100}},
		Fleet:     models.Fleet{Vehicles: 2, Available: 1, InTransit: 1, AvgDeliveryHours: 2},
	}
	a := order("a", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, "dengueMed", 10, 0)
	b := order("b", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, "dengueMed", 10, time.Minute)
	s.ActiveOrders = []*models.Order{a, b}

	decisions := Apply(s, []*models.Order{a, b}, t0)
	require.Len(t, decisions, 2)
	assert.Equal(t, Dispatched, decisions[1].Outcome)
	assert.True(t, a.Vehicle)
	assert.False(t, b.Vehicle, "no vehicle left in the yard")
	assert.Zero(t, s.Fleet.Available)
	assert.Equal(t, 2, s.Fleet.InTransit)

	delivered := Deliver(s, t0.Add(5*time.Hour))
	require.Len(t, delivered, 2)
	assert.Equal(t, 1, s.Fleet.Available, "only the allocated vehicle comes back")
	assert.Equal(t, 1, s.Fleet.InTransit, "the vehicle already on the road stays out")
}

func TestFulfilmentRoundTrip(t *testing.T) {
	s := models.DefaultSupplierState(models.Zone1)
	before := s.StockOf(models.MedicineDengue)
	o := order("o", models.UrgencyHigh, models.CriticalityHigh, models.Zone1, models.EntityTypePharmacy, models.MedicineDengue, 200, 0)
	s.ActiveOrders = []*models.Order{o}

	ranked := Rank(s, nil, New(nil, nil).Scores(context.Background(), s, nil))
	decisions := Apply(s, ranked, t0)
	require.Len(t, decisions, 1)
	require.Equal(t, Dispatched, decisions[0].Outcome)
	assert.Equal(t, before-200, s.StockOf(models.MedicineDengue))

	assert.Empty(t, Deliver(s, t0.Add(time.Hour)), "not due yet")

	delivered := Deliver(s, t0.Add(3*time.Hour))
	require.Len(t, delivered, 1)
	assert.Equal(t, models.OrderDelivered, o.Status)
	assert.Equal(t, s.Fleet.Vehicles, s.Fleet.Available)
	assert.Zero(t, s.Fleet.InTransit)

	assert.Empty(t, Deliver(s, t0.Add(4*time.Hour)), "delivered orders are not delivered twice")
	assert.Equal(t, 0, s.PruneDelivered(t0.Add(3*time.Hour+time.Minute), time.Hour))
	assert.Equal(t, 1, s.PruneDelivered(t0.Add(5*time.Hour), time.Hour))
	assert.Empty(t, s.ActiveOrders)
}
