package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/testutil"
)

var reportTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestRender_Sections(t *testing.T) {
	supplier := testutil.FixtureSupplier()
	hospital := testutil.FixtureHospital(func(e *models.Entity) {
		e.Hospital.Beds = map[string]*models.BedCount{
			models.BedGeneral: {Total: 80, Used: 72},
			models.BedICU:     {Total: 20, Used: 19},
		}
		e.Hospital.Strain = &models.StrainAssessment{Index: 0.82, Level: "severe"}
	})
	lab := testutil.FixtureLab(func(e *models.Entity) {
		e.Lab.Tests[models.DiseaseDengue].OutbreakActive = true
	})
	pharmacy := testutil.FixturePharmacy(supplier.ID, func(e *models.Entity) {
		e.Pharmacy.Medicines[models.MedicineDengue].Stock = 60
	})
	city := testutil.FixtureCity(func(e *models.Entity) {
		e.City.Overall = models.RiskHigh
		e.City.RiskZones[models.Zone1] = &models.ZoneRisk{
			Diseases: map[models.Disease]models.RiskLevel{models.DiseaseDengue: models.RiskHigh},
			Overall:  models.RiskHigh,
		}
		e.City.LastCrisis = &models.CrisisAssessment{Score: 70, Severity: models.CrisisCritical, Source: "fallback"}
		e.City.Alerts.Add(models.Alert{Type: "outbreak", Severity: models.RiskHigh, Message: "dengue outbreak predicted", Timestamp: reportTime})
	})

	out := New(nil).Render([]*models.Entity{supplier, hospital, lab, pharmacy, city}, reportTime)

	for _, want := range []string{
		"HealSync status",
		"City Health Command",
		"CRITICAL (score 70.0, fallback)",
		"dengue:high",
		"dengue outbreak predicted",
		"Riverside General",
		"91%",
		"95%",
		"severe",
		"Central Diagnostics",
		"Market Street Pharmacy",
		"MedLine Distribution",
	} {
		assert.Contains(t, out, want)
	}

	// Sections appear in a fixed order whatever the input order.
	order := []string{"City Health Command", "Hospitals", "Labs", "Pharmacies", "Suppliers"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		assert.Greater(t, i, last, s)
		last = i
	}
}

func TestRender_OmitsEmptySections(t *testing.T) {
	out := New(nil).Render([]*models.Entity{testutil.FixtureLab()}, reportTime)
	assert.Contains(t, out, "Labs")
	assert.NotContains(t, out, "Hospitals")
	assert.NotContains(t, out, "Suppliers")
}

func TestRender_RecentAlertsOnly(t *testing.T) {
	city := testutil.FixtureCity(func(e *models.Entity) {
		for i := range 8 {
			e.City.Alerts.Add(models.Alert{
				Severity:  models.RiskLow,
				Message:   "alert-" + string(rune('a'+i)),
				Timestamp: reportTime,
			})
		}
	})

	out := New(nil).Render([]*models.Entity{city}, reportTime)
	assert.Contains(t, out, "Recent alerts (8 total)")
	assert.Contains(t, out, "alert-h")
	assert.Contains(t, out, "alert-d")
	assert.NotContains(t, out, "alert-c")
}

func TestRender_AcknowledgedAlerts(t *testing.T) {
	city := testutil.FixtureCity(func(e *models.Entity) {
		e.City.Alerts.Add(models.Alert{ID: "a1b2c3d4-0000", Severity: models.RiskHigh, Message: "open-alert", Status: models.AlertActive, Timestamp: reportTime})
		e.City.Alerts.Add(models.Alert{ID: "e5f6a7b8-0000", Severity: models.RiskHigh, Message: "seen-alert", Status: models.AlertAcknowledged, Timestamp: reportTime})
	})

	out := New(nil).Render([]*models.Entity{city}, reportTime)
	assert.Contains(t, out, "a1b2c3d4")
	assert.Contains(t, out, "seen-alert (ack)")
	assert.NotContains(t, out, "open-alert (ack)")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "85%", percent(0.85))
	assert.Equal(t, "2.5d", days(2.5))
	assert.Equal(t, "-", orDash(""))
}
