package models

import (
	"fmt"
	"strings"
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPagination returns default pagination settings.
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 25,
	}
}

// Offset calculates the SQL offset for the current page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size as limit.
func (p Pagination) Limit() int {
	if p.PageSize < 1 {
		return 25
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Zone identifies a city district.
type Zone string

const (
	Zone1 Zone = "Zone-1"
	Zone2 Zone = "Zone-2"
	Zone3 Zone = "Zone-3"
	Zone4 Zone = "Zone-4"
)

// AllZones lists the city districts in display order.
var AllZones = []Zone{Zone1, Zone2, Zone3, Zone4}

// Valid returns true if the zone is one of the city districts.
func (z Zone) Valid() bool {
	switch z {
	case Zone1, Zone2, Zone3, Zone4:
		return true
	default:
		return false
	}
}

// Disease is a tracked communicable disease.
type Disease string

const (
	DiseaseDengue    Disease = "dengue"
	DiseaseMalaria   Disease = "malaria"
	DiseaseTyphoid   Disease = "typhoid"
	DiseaseInfluenza Disease = "influenza"
	DiseaseCovid     Disease = "covid"
)

// AllDiseases lists the tracked diseases.
var AllDiseases = []Disease{DiseaseDengue, DiseaseMalaria, DiseaseTyphoid, DiseaseInfluenza, DiseaseCovid}

// Valid returns true if the disease is tracked.
func (d Disease) Valid() bool {
	switch d {
	case DiseaseDengue, DiseaseMalaria, DiseaseTyphoid, DiseaseInfluenza, DiseaseCovid:
		return true
	default:
		return false
	}
}

// PrimaryMedicine returns the medicine most in demand during an outbreak.
func (d Disease) PrimaryMedicine() string {
	switch d {
	case DiseaseDengue:
		return MedicineDengue
	case DiseaseMalaria:
		return MedicineChloroquine
	case DiseaseTyphoid:
		return MedicineCeftriaxone
	case DiseaseInfluenza, DiseaseCovid:
		return MedicineOseltamivir
	default:
		return MedicineParacetamol
	}
}

// ParseDisease parses a disease name case-insensitively.
func ParseDisease(s string) (Disease, error) {
	d := Disease(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown disease: %q", s)
	}
	return d, nil
}

// RiskLevel grades a risk signal.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid returns true if the risk level is known.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// Rank orders risk levels; unknown levels rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// ParseRiskLevel maps the scoring service vocabulary onto RiskLevel.
// ELEVATED is treated as medium.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return RiskCritical
	case "high":
		return RiskHigh
	case "medium", "elevated", "moderate":
		return RiskMedium
	default:
		return RiskLow
	}
}

// Urgency grades how soon a request must be served.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid returns true if the urgency is known.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// Criticality grades how essential an item is.
type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// Valid returns true if the criticality is known.
func (c Criticality) Valid() bool {
	switch c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
		return true
	default:
		return false
	}
}
