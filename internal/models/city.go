package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxAlerts bounds the city alert list.
const MaxAlerts = 50

// AlertStatus tracks an alert through acknowledgement.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a city-level notification.
type Alert struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Zone      Zone        `json:"zone,omitempty"`
	Severity  RiskLevel   `json:"severity"`
	Message   string      `json:"message"`
	Status    AlertStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// AlertList is a FIFO of alerts capped at MaxAlerts.
type AlertList struct {
	Items []Alert `json:"items"`
}

// Add appends an alert, evicting the oldest entries beyond the cap. It
// returns the number of evicted alerts.
func (l *AlertList) Add(a Alert) int {
	l.Items = append(l.Items, a)
	if over := len(l.Items) - MaxAlerts; over > 0 {
		l.Items = append([]Alert(nil), l.Items[over:]...)
		return over
	}
	return 0
}

// Len returns the number of alerts held.
func (l *AlertList) Len() int {
	return len(l.Items)
}

// Acknowledge marks an alert as seen. id may be the full alert ID or a
// prefix matching exactly one alert.
func (l *AlertList) Acknowledge(id string) error {
	if id == "" {
		return fmt.Errorf("alert id is required")
	}
	match := -1
	for i := range l.Items {
		switch {
		case l.Items[i].ID == id:
			l.Items[i].Status = AlertAcknowledged
			return nil
		case strings.HasPrefix(l.Items[i].ID, id):
			if match >= 0 {
				return fmt.Errorf("alert prefix %s is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 {
		return fmt.Errorf("alert %s not found", id)
	}
	l.Items[match].Status = AlertAcknowledged
	return nil
}

// CrisisSeverity grades the city crisis score.
type CrisisSeverity string

const (
	CrisisLow      CrisisSeverity = "LOW"
	CrisisMedium   CrisisSeverity = "MEDIUM"
	CrisisHigh     CrisisSeverity = "HIGH"
	CrisisCritical CrisisSeverity = "CRITICAL"
)

// Alarming reports whether the severity warrants a city-wide alert.
func (s CrisisSeverity) Alarming() bool {
	return s == CrisisHigh || s == CrisisCritical
}

// CrisisAssessment is the outcome of a city crisis evaluation.
type CrisisAssessment struct {
	Score      float64            `json:"score"`
	Severity   CrisisSeverity     `json:"severity"`
	Components map[string]float64 `json:"components,omitempty"`
	Source     string             `json:"source"`
	At         time.Time          `json:"at"`
}

// CityState is the coordinator's view of the city.
type CityState struct {
	RiskZones      map[Zone]*ZoneRisk `json:"risk_zones"`
	Alerts         AlertList          `json:"alerts"`
	OutbreakCounts map[Disease]int    `json:"outbreak_counts"`
	Overall        RiskLevel          `json:"overall"`
	LastCrisis     *CrisisAssessment  `json:"last_crisis,omitempty"`
}

// ZoneRiskFor returns the zone record, creating it on first use.
func (c *CityState) ZoneRiskFor(z Zone, now time.Time) *ZoneRisk {
	if c.RiskZones == nil {
		c.RiskZones = make(map[Zone]*ZoneRisk)
	}
	zr, ok := c.RiskZones[z]
	if !ok {
		zr = NewZoneRisk(now)
		c.RiskZones[z] = zr
	}
	return zr
}

// HighRiskZones lists zones whose overall level is high or worse.
func (c *CityState) HighRiskZones() []Zone {
	var out []Zone
	for _, z := range AllZones {
		if zr, ok := c.RiskZones[z]; ok && zr.Overall.AtLeast(RiskHigh) {
			out = append(out, z)
		}
	}
	return out
}
