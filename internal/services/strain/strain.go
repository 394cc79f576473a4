// Package strain computes the hospital strain index (HSI) and the resource
// request an elevated index raises.
package strain

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

// Strain levels.
const (
	LevelLow      = "LOW"
	LevelMedium   = "MEDIUM"
	LevelElevated = "ELEVATED"
	LevelHigh     = "HIGH"
	LevelCritical = "CRITICAL"
)

// RequestThreshold is the index at which a hospital asks for resources.
const RequestThreshold = 50

// Scorer is the part of the scoring client the calculator uses.
type Scorer interface {
	HospitalStrain(ctx context.Context, req scoring.StrainRequest) (*scoring.StrainResult, error)
	Fallback(endpoint string, err error)
}

// Need is one line of a resource request.
type Need struct {
	Item     string
	Quantity int
}

// Result is a strain assessment.
type Result struct {
	Index           float64
	Level           string
	TriggerRequest  bool
	Urgency         models.Urgency
	Needs           []Need
	Recommendations []string
	Fallback        bool
}

// Calculator assesses hospital strain.
type Calculator struct {
	scorer Scorer
	logger *slog.Logger
}

// NewCalculator creates a calculator. A nil scorer always uses the local index.
func NewCalculator(scorer Scorer, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{scorer: scorer, logger: logger.With("component", "strain")}
}

// Assess scores a hospital through the service, falling back to the local
// weighted index.
func (c *Calculator) Assess(ctx context.Context, h *models.HospitalState) Result {
	req := Request(h)
	if c.scorer != nil {
		res, err := c.scorer.HospitalStrain(ctx, req)
		if err == nil {
			return fromService(res)
		}
		c.scorer.Fallback(scoring.PathStrain, err)
	}
	return Fallback(req)
}

// Request builds the strain inputs from a hospital state.
func Request(h *models.HospitalState) scoring.StrainRequest {
	total, used := h.BedTotals()
	req := scoring.StrainRequest{
		TotalBeds:        total,
		AvailableBeds:    total - used,
		ERWaitTime:       int(math.Round(h.Flow.ERWaitMinutes)),
		IncomingPatients: h.Flow.InflowPerHour,
	}
	if icu, ok := h.Beds[models.BedICU]; ok {
		req.ICUTotal = icu.Total
		req.ICUAvailable = icu.Total - icu.Used
	}
	return req
}

// Fallback computes HSI = 0.4 bed score + 0.3 ICU score + 0.3 ER score.
func Fallback(req scoring.StrainRequest) Result {
	bed := UtilizationScore(percentUsed(req.TotalBeds, req.AvailableBeds))
	icu := UtilizationScore(percentUsed(req.ICUTotal, req.ICUAvailable))
	er := WaitScore(float64(req.ERWaitTime))

	hsi := math.Round((bed*0.4+icu*0.3+er*0.3)*100) / 100
	level := LevelFor(hsi)
	res := Result{
		Index:           hsi,
		Level:           level,
		TriggerRequest:  hsi >= RequestThreshold,
		Urgency:         urgencyFor(level),
		Recommendations: recommendations[level],
		Fallback:        true,
	}
	if res.TriggerRequest {
		res.Needs = needsFor(level)
	}
	return res
}

func percentUsed(total, available int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-available) / float64(total) * 100
}

// UtilizationScore grades a utilization percentage; below 50% it scales
// linearly.
func UtilizationScore(u float64) float64 {
	switch {
	case u >= 95:
		return 100
	case u >= 90:
		return 90
	case u >= 85:
		return 80
	case u >= 75:
		return 65
	case u >= 65:
		return 50
	case u >= 50:
		return 35
	default:
		return u * 0.6
	}
}

// WaitScore grades ER wait minutes; below half an hour it scales linearly.
func WaitScore(minutes float64) float64 {
	switch {
	case minutes >= 180:
		return 100
	case minutes >= 120:
		return 85
	case minutes >= 90:
		return 70
	case minutes >= 60:
		return 55
	case minutes >= 45:
		return 40
	case minutes >= 30:
		return 25
	default:
		return minutes * 0.5
	}
}

// LevelFor grades a strain index.
func LevelFor(hsi float64) string {
	switch {
	case hsi >= 80:
		return LevelCritical
	case hsi >= 65:
		return LevelHigh
	case hsi >= RequestThreshold:
		return LevelElevated
	case hsi >= 35:
		return LevelMedium
	default:
		return LevelLow
	}
}

func urgencyFor(level string) models.Urgency {
	switch level {
	case LevelCritical, LevelHigh:
		return models.UrgencyHigh
	case LevelElevated:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

func needsFor(level string) []Need {
	if level == LevelCritical {
		return []Need{
			{Item: models.EquipmentOxygenCylinders, Quantity: 20},
			{Item: models.EquipmentVentilators, Quantity: 5},
		}
	}
	return []Need{
		{Item: models.EquipmentOxygenCylinders, Quantity: 10},
		{Item: models.EquipmentVentilators, Quantity: 3},
	}
}

// itemAliases maps service item names onto supplier inventory names.
var itemAliases = map[string]string{
	"icu_equipment":    models.EquipmentVentilators,
	"ventilator":       models.EquipmentVentilators,
	"oxygen":           models.EquipmentOxygenCylinders,
	"oxygen_cylinders": models.EquipmentOxygenCylinders,
}

func fromService(res *scoring.StrainResult) Result {
	level := strings.ToUpper(strings.TrimSpace(res.StrainLevel))
	switch level {
	case LevelLow, LevelMedium, LevelElevated, LevelHigh, LevelCritical:
	default:
		level = LevelFor(res.Score)
	}

	out := Result{
		Index:           res.Score,
		Level:           level,
		TriggerRequest:  res.TriggerResourceRequest || res.Score >= RequestThreshold,
		Urgency:         urgencyFor(level),
		Recommendations: res.Recommendations,
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = recommendations[level]
	}
	if !out.TriggerRequest {
		return out
	}

	if res.ResourceRequest != nil {
		for _, it := range res.ResourceRequest.RequestedItems {
			// placeholder quantities decode to zero and are skipped
			if it.Quantity <= 0 {
				continue
			}
			item := it.Item
			if alias, ok := itemAliases[item]; ok {
				item = alias
			}
			out.Needs = append(out.Needs, Need{Item: item, Quantity: int(it.Quantity)})
		}
	}
	if len(out.Needs) == 0 {
		out.Needs = needsFor(level)
	}
	return out
}

var recommendations = map[string][]string{
	LevelCritical: {
		"Activate surge capacity protocols",
		"Contact other hospitals for patient transfers",
		"Deploy additional staff immediately",
		"Defer non-urgent procedures",
	},
	LevelHigh: {
		"Prepare surge capacity",
		"Ensure adequate staffing for the next 48 hours",
		"Review discharge plans to free beds",
	},
	LevelElevated: {
		"Monitor capacity closely",
		"Reserve isolation beds if an outbreak is suspected",
		"Ensure supply chain continuity",
	},
	LevelMedium: {
		"Monitor admission trends",
		"Maintain standard protocols",
	},
	LevelLow: {
		"Continue normal operations",
	},
}
