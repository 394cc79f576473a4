package models

import "time"

// ZoneRisk is the aggregated risk picture of one zone. Overall is derived
// from Diseases; AirQuality is informational and never counted.
type ZoneRisk struct {
	Diseases   map[Disease]RiskLevel `json:"diseases"`
	AirQuality string                `json:"air_quality,omitempty"`
	Overall    RiskLevel             `json:"overall"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// NewZoneRisk returns an empty low-risk record.
func NewZoneRisk(now time.Time) *ZoneRisk {
	return &ZoneRisk{
		Diseases:  make(map[Disease]RiskLevel),
		Overall:   RiskLow,
		UpdatedAt: now,
	}
}

// SetLevel records a disease signal and recomputes the overall level.
func (z *ZoneRisk) SetLevel(d Disease, level RiskLevel, now time.Time) {
	if z.Diseases == nil {
		z.Diseases = make(map[Disease]RiskLevel)
	}
	z.Diseases[d] = level
	z.UpdatedAt = now
	z.Recompute()
}

// Recompute derives Overall from the disease levels.
func (z *ZoneRisk) Recompute() {
	z.Overall = ZoneOverall(z.Diseases)
}

// ZoneOverall grades a zone from its disease levels: two or more high
// signals make it high, one high or two medium make it medium.
func ZoneOverall(levels map[Disease]RiskLevel) RiskLevel {
	high, medium := 0, 0
	for _, l := range levels {
		switch l {
		case RiskHigh, RiskCritical:
			high++
		case RiskMedium:
			medium++
		}
	}
	switch {
	case high >= 2:
		return RiskHigh
	case high >= 1 || medium >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CityOverall grades the city: any high zone makes it high, more than one
// medium zone makes it medium.
func CityOverall(zones map[Zone]*ZoneRisk) RiskLevel {
	medium := 0
	for _, z := range zones {
		switch z.Overall {
		case RiskHigh, RiskCritical:
			return RiskHigh
		case RiskMedium:
			medium++
		}
	}
	if medium > 1 {
		return RiskMedium
	}
	return RiskLow
}
