package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
	"github.com/healsync/healsync/internal/testutil"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeScorer struct {
	pred      *scoring.CrisisPrediction
	err       error
	req       scoring.CrisisRequest
	fallbacks int
}

func (f *fakeScorer) PredictCrisis(_ context.Context, req scoring.CrisisRequest) (*scoring.CrisisPrediction, error) {
	f.req = req
	return f.pred, f.err
}

func (f *fakeScorer) Fallback(string, error) { f.fallbacks++ }

func TestApplySignal(t *testing.T) {
	city := models.DefaultCityState()
	agg := NewAggregator(nil, nil)

	changed := agg.ApplySignal(city, models.Zone1, models.DiseaseDengue, models.RiskHigh, now)
	assert.True(t, changed)
	require.Contains(t, city.RiskZones, models.Zone1)
	assert.Equal(t, models.RiskMedium, city.RiskZones[models.Zone1].Overall)
	assert.Equal(t, models.RiskLow, city.Overall, "one medium zone is not enough")

	changed = agg.ApplySignal(city, models.Zone1, models.DiseaseDengue, models.RiskHigh, now)
	assert.False(t, changed, "repeating a signal changes nothing")

	agg.ApplySignal(city, models.Zone1, models.DiseaseMalaria, models.RiskCritical, now)
	assert.Equal(t, models.RiskHigh, city.RiskZones[models.Zone1].Overall)
	assert.Equal(t, models.RiskHigh, city.Overall)
	assert.Equal(t, []models.Zone{models.Zone1}, city.HighRiskZones())
}

func TestApplySignalMediumZones(t *testing.T) {
	city := models.DefaultCityState()
	agg := NewAggregator(nil, nil)

	agg.ApplySignal(city, models.Zone2, models.DiseaseTyphoid, models.RiskHigh, now)
	assert.Equal(t, models.RiskLow, city.Overall)
	agg.ApplySignal(city, models.Zone3, models.DiseaseInfluenza, models.RiskHigh, now)
	assert.Equal(t, models.RiskMedium, city.Overall)
}

func TestRecomputeIdempotent(t *testing.T) {
	city := models.DefaultCityState()
	zr := city.ZoneRiskFor(models.Zone4, now)
	zr.Diseases[models.DiseaseDengue] = models.RiskHigh
	zr.Diseases[models.DiseaseCovid] = models.RiskHigh
	zr.AirQuality = "hazardous"

	first := Recompute(city)
	second := Recompute(city)
	assert.Equal(t, models.RiskHigh, first)
	assert.Equal(t, first, second)
	assert.Equal(t, models.RiskHigh, zr.Overall)
}

func TestComponentScores(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"no disease data", DiseaseScore(nil), 0},
		{"few cases", DiseaseScore(map[models.Disease]int{models.DiseaseDengue: 5}), 10},
		{"20 cases", DiseaseScore(map[models.Disease]int{models.DiseaseDengue: 12, models.DiseaseMalaria: 8}), 20},
		{"150 cases", DiseaseScore(map[models.Disease]int{models.DiseaseDengue: 150}), 80},
		{"200 cases", DiseaseScore(map[models.Disease]int{models.DiseaseDengue: 250}), 100},
		{"idle hospitals", CapacityScore(30), 10},
		{"65 percent", CapacityScore(65), 40},
		{"full hospitals", CapacityScore(95), 100},
		{"no medicines", MedicineScore(nil), 0},
		{"healthy stock", MedicineScore(map[string]int{"a": 500, "b": 300}), 0},
		{"one low one critical", MedicineScore(map[string]int{"a": 80, "b": 20}), 80},
		{"all critical", MedicineScore(map[string]int{"a": 0}), 100},
		{"no zones", ZoneScore(nil), 0},
		{"mixed zones", ZoneScore(map[models.Zone]models.RiskLevel{models.Zone1: models.RiskLow, models.Zone2: models.RiskHigh}), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.got, 1e-9)
		})
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, models.CrisisCritical, SeverityFor(70))
	assert.Equal(t, models.CrisisHigh, SeverityFor(69.99))
	assert.Equal(t, models.CrisisHigh, SeverityFor(50))
	assert.Equal(t, models.CrisisMedium, SeverityFor(30))
	assert.Equal(t, models.CrisisLow, SeverityFor(29.9))

	s, ok := ParseSeverity("ELEVATED")
	assert.True(t, ok)
	assert.Equal(t, models.CrisisHigh, s)
	_, ok = ParseSeverity("apocalyptic")
	assert.False(t, ok)
}

func TestFallbackCrisis(t *testing.T) {
	snap := Snapshot{
		DiseaseCases:  map[models.Disease]int{models.DiseaseDengue: 160},
		TotalBeds:     100,
		UsedBeds:      92,
		MedicineStock: map[string]int{"a": 40, "b": 500},
		ZoneRisks:     map[models.Zone]models.RiskLevel{models.Zone1: models.RiskHigh},
		HighRiskZones: []models.Zone{models.Zone1},
	}

	c := FallbackCrisis(snap, now)
	// 0.4*80 + 0.3*100 + 0.2*50 + 0.1*90
	assert.InDelta(t, 81, c.Score, 1e-9)
	assert.Equal(t, models.CrisisCritical, c.Severity)
	assert.True(t, c.Fallback)
	assert.Equal(t, "fallback", c.Source)
	assert.True(t, c.Severity.Alarming())
	assert.NotEmpty(t, c.Recommendations)
	assert.Equal(t, []models.Zone{models.Zone1}, c.HighRiskZones)
}

func TestAssessCrisisService(t *testing.T) {
	scorer := &fakeScorer{pred: &scoring.CrisisPrediction{
		Severity:      "ELEVATED",
		Score:         55.5,
		Advisory:      "prepare",
		HighRiskZones: []string{"Zone-2"},
	}}
	snap := Snapshot{
		DiseaseCases: map[models.Disease]int{models.DiseaseDengue: 40},
		TotalBeds:    200,
		UsedBeds:     150,
		ZoneRisks:    map[models.Zone]models.RiskLevel{models.Zone2: models.RiskHigh},
	}

	c := NewAggregator(scorer, nil).AssessCrisis(context.Background(), snap, now)
	assert.Equal(t, models.CrisisHigh, c.Severity)
	assert.Equal(t, 55.5, c.Score)
	assert.Equal(t, "service", c.Source)
	assert.False(t, c.Fallback)
	assert.Equal(t, "prepare", c.Advisory)
	assert.NotEmpty(t, c.Recommendations, "default recommendations fill gaps")
	assert.Equal(t, []models.Zone{models.Zone2}, c.HighRiskZones)

	assert.Equal(t, 40, scorer.req.DiseaseStats["dengue"])
	assert.Equal(t, 75.0, scorer.req.HospitalCapacity.UtilizationPercent)
	assert.Equal(t, "HIGH", scorer.req.ZoneRisks["Zone-2"])
}

func TestAssessCrisisFallsBack(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("connection refused")}
	c := NewAggregator(scorer, nil).AssessCrisis(context.Background(), Snapshot{}, now)
	assert.True(t, c.Fallback)
	assert.Equal(t, 1, scorer.fallbacks)
	assert.Equal(t, models.CrisisLow, c.Severity)
}

func TestBuildSnapshot(t *testing.T) {
	hospital := testutil.FixtureHospital()
	lab := testutil.FixtureLab()
	low := testutil.FixturePharmacy("sup")
	low.Pharmacy.Medicines[models.MedicineDengue].Stock = 30
	high := testutil.FixturePharmacy("sup")

	city := models.DefaultCityState()
	NewAggregator(nil, nil).ApplySignal(city, models.Zone1, models.DiseaseDengue, models.RiskHigh, now)

	snap := BuildSnapshot(city, []*models.Entity{hospital, lab, low, high})
	total, used := hospital.Hospital.BedTotals()
	assert.Equal(t, total, snap.TotalBeds)
	assert.Equal(t, used, snap.UsedBeds)
	assert.Equal(t, lab.Lab.Tests[models.DiseaseDengue].Positive, snap.DiseaseCases[models.DiseaseDengue])
	assert.Equal(t, 30, snap.MedicineStock[models.MedicineDengue], "lowest stock wins")
	assert.Equal(t, models.RiskMedium, snap.ZoneRisks[models.Zone1])
	assert.Empty(t, snap.HighRiskZones)
}
