// Package outbreak detects disease outbreaks from lab test counts. The
// prediction service is consulted first; any failure falls back to a local
// growth rule over the recent test history.
package outbreak

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
)

const (
	// TriggerRatio is how far today's count must exceed the baseline.
	TriggerRatio = 1.5
	// CriticalGrowth is the growth rate at which a trigger becomes critical.
	CriticalGrowth = 1.0
	// DefaultBaseline is sent to the service for diseases with no history.
	DefaultBaseline = 5

	fallbackWindow = 2
	primaryWindow  = 3
)

// Predictor is the part of the scoring client the detector uses.
type Predictor interface {
	PredictOutbreak(ctx context.Context, req scoring.OutbreakRequest) ([]scoring.OutbreakPrediction, error)
	Fallback(endpoint string, err error)
}

// Result is the verdict for one disease.
type Result struct {
	Disease        models.Disease
	CurrentCount   int
	Baseline       float64
	ProjectedCount int
	GrowthRate     float64
	PositiveRate   float64
	RiskLevel      models.RiskLevel
	Triggered      bool
	Elevated       bool
	Confidence     float64
	Recommendation string
	Fallback       bool
}

// Detector evaluates a lab's test counters.
type Detector struct {
	scorer Predictor
	logger *slog.Logger
}

// NewDetector creates a detector. A nil scorer always uses the fallback.
func NewDetector(scorer Predictor, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{scorer: scorer, logger: logger.With("component", "outbreak")}
}

// Detect returns one result per disease with tests today, in disease order.
func (d *Detector) Detect(ctx context.Context, lab *models.LabState) []Result {
	if d.scorer != nil {
		preds, err := d.scorer.PredictOutbreak(ctx, PrimaryRequest(lab))
		if err == nil {
			return fromPredictions(lab, preds)
		}
		d.scorer.Fallback(scoring.PathOutbreak, err)
	}

	var out []Result
	for _, disease := range models.AllDiseases {
		t, ok := lab.Tests[disease]
		if !ok || t.Today == 0 {
			continue
		}
		r := FallbackPredict(t)
		r.Disease = disease
		out = append(out, r)
	}
	return out
}

// PrimaryRequest builds the service request: today's counts against the
// mean of the last three history values.
func PrimaryRequest(lab *models.LabState) scoring.OutbreakRequest {
	req := scoring.OutbreakRequest{
		CurrentTests:  make(map[string]int),
		BaselineTests: make(map[string]int),
		PositiveTests: make(map[string]int),
	}
	for disease, t := range lab.Tests {
		key := string(disease)
		baseline := DefaultBaseline
		if mean, ok := t.MeanOfLast(primaryWindow); ok {
			baseline = int(math.Round(mean))
		}
		req.CurrentTests[key] = t.Today
		req.BaselineTests[key] = baseline
		req.PositiveTests[key] = t.Positive
	}
	return req
}

// FallbackPredict applies the local growth rule. The baseline is the mean of
// the last two history values; fewer than two values never triggers.
func FallbackPredict(t *models.DiseaseTests) Result {
	r := Result{
		CurrentCount:   t.Today,
		ProjectedCount: t.Today,
		PositiveRate:   t.ComputedPositiveRate(),
		RiskLevel:      models.RiskLow,
		Fallback:       true,
	}

	if len(t.History) < fallbackWindow {
		return r
	}
	baseline, ok := t.MeanOfLast(fallbackWindow)
	if !ok || baseline <= 0 {
		return r
	}
	r.Baseline = baseline

	current := float64(t.Today)
	r.GrowthRate = (current - baseline) / baseline
	r.ProjectedCount = max(0, int(math.Round(current+(current-baseline))))

	if current > TriggerRatio*baseline {
		r.Triggered = true
		r.RiskLevel = models.RiskHigh
		if r.GrowthRate >= CriticalGrowth {
			r.RiskLevel = models.RiskCritical
		}
		r.Recommendation = "Outbreak detected, alert hospitals and pharmacies"
	} else if r.GrowthRate > 0 {
		r.RiskLevel = models.RiskMedium
		r.Elevated = current >= baseline*1.25
		r.Recommendation = "Increasing trend, monitor closely"
	}
	return r
}

func fromPredictions(lab *models.LabState, preds []scoring.OutbreakPrediction) []Result {
	byDisease := make(map[models.Disease]scoring.OutbreakPrediction, len(preds))
	for _, p := range preds {
		if d, err := models.ParseDisease(p.Disease); err == nil {
			byDisease[d] = p
		}
	}

	var out []Result
	for _, disease := range models.AllDiseases {
		p, ok := byDisease[disease]
		if !ok {
			continue
		}
		r := Result{
			Disease:        disease,
			CurrentCount:   p.CurrentTests,
			Baseline:       float64(p.BaselineTests),
			ProjectedCount: p.PredictedCases24h,
			PositiveRate:   p.PositiveRate / 100,
			Triggered:      p.TriggerOutbreak,
			Elevated:       strings.EqualFold(p.RiskLevel, "ELEVATED"),
			Confidence:     p.Confidence,
			Recommendation: p.Recommendation,
		}
		if r.CurrentCount == 0 {
			if t, ok := lab.Tests[disease]; ok {
				r.CurrentCount = t.Today
			}
		}
		if p.BaselineTests > 0 {
			r.GrowthRate = float64(r.CurrentCount-p.BaselineTests) / float64(p.BaselineTests)
		}
		level := models.ParseRiskLevel(p.RiskLevel)
		if r.Triggered {
			level = models.RiskHigh
			if r.GrowthRate >= CriticalGrowth {
				level = models.RiskCritical
			}
		}
		r.RiskLevel = level
		out = append(out, r)
	}
	return out
}
