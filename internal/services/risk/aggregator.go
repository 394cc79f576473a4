// Package risk aggregates disease signals into zone and city risk levels
// and scores the city-wide crisis level.
package risk

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

// Scorer is the part of the scoring client the aggregator uses.
type Scorer interface {
	PredictCrisis(ctx context.Context, req scoring.CrisisRequest) (*scoring.CrisisPrediction, error)
	Fallback(endpoint string, err error)
}

// Aggregator maintains a city's risk picture.
type Aggregator struct {
	scorer Scorer
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil scorer always uses the
// local crisis formula.
func NewAggregator(scorer Scorer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{scorer: scorer, logger: logger.With("component", "risk")}
}

// ApplySignal records a disease level for a zone, creating the zone record
// on first use, and recomputes the zone and city levels. It reports whether
// the zone's overall level changed.
func (a *Aggregator) ApplySignal(city *models.CityState, zone models.Zone, disease models.Disease, level models.RiskLevel, now time.Time) bool {
	zr := city.ZoneRiskFor(zone, now)
	before := zr.Overall
	zr.SetLevel(disease, level, now)
	city.Overall = models.CityOverall(city.RiskZones)

	if zr.Overall != before {
		a.logger.Info("zone risk changed",
			"zone", zone, "disease", disease, "from", before, "to", zr.Overall, "city", city.Overall)
		return true
	}
	return false
}

// Recompute refreshes every zone level and the city level from the stored
// disease signals. Running it twice gives the same result.
func Recompute(city *models.CityState) models.RiskLevel {
	for _, zr := range city.RiskZones {
		zr.Recompute()
	}
	city.Overall = models.CityOverall(city.RiskZones)
	return city.Overall
}

// Snapshot is the city-wide input to a crisis assessment.
type Snapshot struct {
	// DiseaseCases is positive tests per disease across all labs.
	DiseaseCases map[models.Disease]int
	TotalBeds    int
	UsedBeds     int
	// MedicineStock is the lowest pharmacy stock seen for each medicine.
	MedicineStock map[string]int
	ZoneRisks     map[models.Zone]models.RiskLevel
	HighRiskZones []models.Zone
}

// Utilization returns used beds as a percentage of total beds.
func (s Snapshot) Utilization() float64 {
	if s.TotalBeds <= 0 {
		return 0
	}
	return float64(s.UsedBeds) / float64(s.TotalBeds) * 100
}

// BuildSnapshot collects crisis inputs from the city record and the
// facilities it oversees.
func BuildSnapshot(city *models.CityState, facilities []*models.Entity) Snapshot {
	snap := Snapshot{
		DiseaseCases:  make(map[models.Disease]int),
		MedicineStock: make(map[string]int),
		ZoneRisks:     make(map[models.Zone]models.RiskLevel),
	}

	for _, e := range facilities {
		switch {
		case e.Hospital != nil:
			total, used := e.Hospital.BedTotals()
			snap.TotalBeds += total
			snap.UsedBeds += used
		case e.Lab != nil:
			for d, t := range e.Lab.Tests {
				snap.DiseaseCases[d] += t.Positive
			}
		case e.Pharmacy != nil:
			for name, m := range e.Pharmacy.Medicines {
				if cur, ok := snap.MedicineStock[name]; !ok || m.Stock < cur {
					snap.MedicineStock[name] = m.Stock
				}
			}
		}
	}

	if city != nil {
		for z, zr := range city.RiskZones {
			snap.ZoneRisks[z] = zr.Overall
		}
		snap.HighRiskZones = city.HighRiskZones()
	}
	return snap
}

// Crisis is a city crisis assessment with its supporting text.
type Crisis struct {
	models.CrisisAssessment
	Advisory        string
	Recommendations []string
	HighRiskZones   []models.Zone
	Fallback        bool
}

// AssessCrisis scores the snapshot through the service, falling back to the
// local weighted formula.
func (a *Aggregator) AssessCrisis(ctx context.Context, snap Snapshot, now time.Time) Crisis {
	if a.scorer != nil {
		pred, err := a.scorer.PredictCrisis(ctx, crisisRequest(snap))
		if err == nil {
			return fromPrediction(pred, snap, now)
		}
		a.scorer.Fallback(scoring.PathCrisis, err)
	}
	return FallbackCrisis(snap, now)
}

func crisisRequest(snap Snapshot) scoring.CrisisRequest {
	req := scoring.CrisisRequest{
		DiseaseStats: make(map[string]int, len(snap.DiseaseCases)),
		HospitalCapacity: scoring.HospitalCapacity{
			TotalBeds:          snap.TotalBeds,
			UsedBeds:           snap.UsedBeds,
			UtilizationPercent: snap.Utilization(),
		},
		MedicineStock: snap.MedicineStock,
		ZoneRisks:     make(map[string]string, len(snap.ZoneRisks)),
	}
	for d, n := range snap.DiseaseCases {
		req.DiseaseStats[string(d)] = n
	}
	for z, l := range snap.ZoneRisks {
		req.ZoneRisks[string(z)] = strings.ToUpper(string(l))
	}
	return req
}

func fromPrediction(pred *scoring.CrisisPrediction, snap Snapshot, now time.Time) Crisis {
	severity, ok := ParseSeverity(pred.Severity)
	if !ok {
		severity = SeverityFor(pred.Score)
	}

	zones := snap.HighRiskZones
	if len(pred.HighRiskZones) > 0 {
		zones = zones[:0:0]
		for _, z := range pred.HighRiskZones {
			zones = append(zones, models.Zone(z))
		}
	}

	recs := pred.Recommendations
	if len(recs) == 0 {
		recs = recommendations[severity]
	}
	advisory := pred.Advisory
	if advisory == "" {
		advisory = advisories[severity]
	}

	return Crisis{
		CrisisAssessment: models.CrisisAssessment{
			Score:    clamp(pred.Score),
			Severity: severity,
			Components: map[string]float64{
				"disease":  pred.Breakdown.DiseaseScore,
				"capacity": pred.Breakdown.CapacityScore,
				"medicine": pred.Breakdown.MedicineScore,
				"zone":     pred.Breakdown.ZoneScore,
			},
			Source: "service",
			At:     now,
		},
		Advisory:        advisory,
		Recommendations: recs,
		HighRiskZones:   zones,
	}
}
