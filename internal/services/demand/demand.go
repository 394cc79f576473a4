// Package demand classifies pharmacy medicine demand.
package demand

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

// OutbreakMultiplier scales consumption of medicines tied to an active outbreak.
const OutbreakMultiplier = 2.0

// Consumption-rate thresholds, as a share of current stock used per day.
const (
	SurgeRate  = 0.8
	HighRate   = 0.6
	MediumRate = 0.4
)

// Scorer is the part of the scoring client the classifier uses.
type Scorer interface {
	ClassifyDemand(ctx context.Context, req scoring.DemandRequest) (*scoring.DemandResult, error)
	Fallback(endpoint string, err error)
}

// Result holds a demand level per medicine.
type Result struct {
	Levels   map[string]models.DemandLevel
	Fallback bool
}

// Surging lists medicines at SURGE demand.
func (r Result) Surging() []string {
	var out []string
	for name, l := range r.Levels {
		if l == models.DemandSurge {
			out = append(out, name)
		}
	}
	return out
}

// Classifier grades medicine demand.
type Classifier struct {
	scorer Scorer
	logger *slog.Logger
}

// NewClassifier creates a classifier. A nil scorer always uses the local rules.
func NewClassifier(scorer Scorer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{scorer: scorer, logger: logger.With("component", "demand")}
}

// RelatedMedicines lists the medicines whose demand rises with a disease.
func RelatedMedicines(d models.Disease) []string {
	primary := d.PrimaryMedicine()
	switch d {
	case models.DiseaseDengue, models.DiseaseInfluenza, models.DiseaseCovid:
		if primary != models.RelatedMedicine {
			return []string{primary, models.RelatedMedicine}
		}
	}
	return []string{primary}
}

// FallbackLevel grades daily usage against stock. An empty shelf is a surge.
func FallbackLevel(stock int, daily float64, outbreak bool) models.DemandLevel {
	rate := 1.0
	if stock > 0 {
		rate = daily / float64(stock)
	}
	if outbreak {
		rate *= OutbreakMultiplier
	}
	rate = math.Min(1, rate)

	switch {
	case rate >= SurgeRate:
		return models.DemandSurge
	case rate >= HighRate:
		return models.DemandHigh
	case rate >= MediumRate:
		return models.DemandMedium
	default:
		return models.DemandLow
	}
}

// Classify grades every medicine the pharmacy stocks.
func (c *Classifier) Classify(ctx context.Context, p *models.PharmacyState, outbreaks []models.Disease) Result {
	if c.scorer != nil {
		res, err := c.scorer.ClassifyDemand(ctx, request(p, outbreaks))
		if err == nil {
			if levels := fromService(res, p); len(levels) > 0 {
				return Result{Levels: levels}
			}
		} else {
			c.scorer.Fallback(scoring.PathDemand, err)
		}
	}

	affected := affectedMedicines(outbreaks)
	levels := make(map[string]models.DemandLevel, len(p.Medicines))
	for name, m := range p.Medicines {
		levels[name] = FallbackLevel(m.Stock, m.DailyUsage, affected[name])
	}
	return Result{Levels: levels, Fallback: true}
}

func affectedMedicines(outbreaks []models.Disease) map[string]bool {
	out := make(map[string]bool)
	for _, d := range outbreaks {
		for _, m := range RelatedMedicines(d) {
			out[m] = true
		}
	}
	return out
}

func request(p *models.PharmacyState, outbreaks []models.Disease) scoring.DemandRequest {
	req := scoring.DemandRequest{
		MedicineStocks:   make(map[string]int, len(p.Medicines)),
		ConsumptionRates: make(map[string]int, len(p.Medicines)),
	}
	for name, m := range p.Medicines {
		req.MedicineStocks[name] = m.Stock
		req.ConsumptionRates[name] = int(math.Round(m.DailyUsage))
	}
	for _, d := range outbreaks {
		req.OutbreakAlerts = append(req.OutbreakAlerts, string(d))
	}
	return req
}

// fromService keeps the verdicts for medicines the pharmacy stocks.
func fromService(res *scoring.DemandResult, p *models.PharmacyState) map[string]models.DemandLevel {
	levels := make(map[string]models.DemandLevel, len(res.Classifications))
	for _, c := range res.Classifications {
		if _, ok := p.Medicines[c.Medicine]; !ok {
			continue
		}
		l := models.DemandLevel(strings.ToUpper(c.DemandLevel))
		if !l.Valid() {
			continue
		}
		levels[c.Medicine] = l
	}
	return levels
}
