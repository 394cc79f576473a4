package risk

import (
	"math"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/models"
)

// Component weights of the crisis prediction score.
const (
	DiseaseWeight  = 0.4
	CapacityWeight = 0.3
	MedicineWeight = 0.2
	ZoneWeight     = 0.1
)

// Medicine stock levels counted as short and critically short.
const (
	lowStock      = 100
	criticalStock = 50
)

type threshold struct {
	min   float64
	score float64
}

var (
	diseaseSteps = []threshold{{200, 100}, {150, 80}, {100, 60}, {50, 40}, {20, 20}}
	// capacity thresholds are bed utilization percentages
	capacitySteps = []threshold{{90, 100}, {80, 80}, {70, 60}, {60, 40}, {50, 20}}

	zoneLevelScore = map[models.RiskLevel]float64{
		models.RiskLow:      10,
		models.RiskMedium:   40,
		models.RiskHigh:     90,
		models.RiskCritical: 100,
	}
)

func step(v float64, steps []threshold, floor float64) float64 {
	for _, s := range steps {
		if v >= s.min {
			return s.score
		}
	}
	return floor
}

// DiseaseScore grades total active cases; no data scores zero.
func DiseaseScore(cases map[models.Disease]int) float64 {
	if len(cases) == 0 {
		return 0
	}
	total := 0
	for _, n := range cases {
		total += n
	}
	return step(float64(total), diseaseSteps, 10)
}

// CapacityScore grades hospital bed utilization, given as a percentage.
func CapacityScore(utilization float64) float64 {
	return step(utilization, capacitySteps, 10)
}

// MedicineScore weighs the share of short medicines (60%) and critically
// short medicines (40%).
func MedicineScore(stock map[string]int) float64 {
	if len(stock) == 0 {
		return 0
	}
	low, critical := 0, 0
	for _, n := range stock {
		if n < lowStock {
			low++
		}
		if n < criticalStock {
			critical++
		}
	}
	total := float64(len(stock))
	score := float64(low)/total*100*0.6 + float64(critical)/total*100*0.4
	return math.Min(100, score)
}

// ZoneScore averages the zones' overall levels.
func ZoneScore(zones map[models.Zone]models.RiskLevel) float64 {
	if len(zones) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range zones {
		sum += zoneLevelScore[l]
	}
	return sum / float64(len(zones))
}

// SeverityFor grades a crisis score.
func SeverityFor(score float64) models.CrisisSeverity {
	switch {
	case score >= 70:
		return models.CrisisCritical
	case score >= 50:
		return models.CrisisHigh
	case score >= 30:
		return models.CrisisMedium
	default:
		return models.CrisisLow
	}
}

// ParseSeverity maps the service's severity vocabulary. ELEVATED is the
// service's name for HIGH.
func ParseSeverity(s string) (models.CrisisSeverity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return models.CrisisCritical, true
	case "HIGH", "ELEVATED":
		return models.CrisisHigh, true
	case "MEDIUM", "MODERATE":
		return models.CrisisMedium, true
	case "LOW":
		return models.CrisisLow, true
	default:
		return "", false
	}
}

// FallbackCrisis computes the crisis score locally.
func FallbackCrisis(snap Snapshot, now time.Time) Crisis {
	disease := DiseaseScore(snap.DiseaseCases)
	capacity := CapacityScore(snap.Utilization())
	medicine := MedicineScore(snap.MedicineStock)
	zone := ZoneScore(snap.ZoneRisks)

	score := clamp(disease*DiseaseWeight + capacity*CapacityWeight + medicine*MedicineWeight + zone*ZoneWeight)
	severity := SeverityFor(score)

	return Crisis{
		CrisisAssessment: models.CrisisAssessment{
			Score:    math.Round(score*100) / 100,
			Severity: severity,
			Components: map[string]float64{
				"disease":  disease,
				"capacity": capacity,
				"medicine": medicine,
				"zone":     zone,
			},
			Source: "fallback",
			At:     now,
		},
		Advisory:        advisories[severity],
		Recommendations: recommendations[severity],
		HighRiskZones:   snap.HighRiskZones,
		Fallback:        true,
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

var advisories = map[models.CrisisSeverity]string{
	models.CrisisCritical: "Critical city health crisis: activate emergency response and coordinate capacity expansion across all facilities.",
	models.CrisisHigh:     "Elevated city-wide strain: hospitals should prepare for increased load and pharmacies should secure stock.",
	models.CrisisMedium:   "Moderate risk: increase surveillance and prepare contingency plans.",
	models.CrisisLow:      "City health status is stable. Continue monitoring.",
}

var recommendations = map[models.CrisisSeverity][]string{
	models.CrisisCritical: {
		"Activate emergency response coordination center",
		"Deploy mobile medical units to affected zones",
		"Request additional medical supplies from state stockpile",
		"Issue public health advisory",
		"Prepare temporary medical facilities",
	},
	models.CrisisHigh: {
		"Increase hospital bed capacity",
		"Accelerate medicine procurement",
		"Enhance inter-facility communication",
		"Prepare isolation wards",
		"Alert public health officials",
	},
	models.CrisisMedium: {
		"Monitor trends closely",
		"Ensure adequate staff availability",
		"Review emergency protocols",
		"Stock essential medicines",
	},
	models.CrisisLow: {
		"Continue routine monitoring",
		"Maintain standard preparedness",
	},
}
