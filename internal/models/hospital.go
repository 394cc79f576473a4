package models

import (
	"time"
)

// Bed categories.
const (
	BedGeneral   = "general"
	BedICU       = "icu"
	BedIsolation = "isolation"
	BedPediatric = "pediatric"
	BedMaternity = "maternity"
)

// Equipment kinds.
const (
	EquipmentVentilators     = "ventilators"
	EquipmentOxygenCylinders = "oxygenCylinders"
	EquipmentXRayMachines    = "xrayMachines"
	EquipmentCTScanners      = "ctScanners"
	EquipmentAmbulances      = "ambulances"
)

// BedCount tracks capacity for one bed category.
type BedCount struct {
	Total    int `json:"total"`
	Used     int `json:"used"`
	Reserved int `json:"reserved"`
}

// Free returns the beds neither used nor reserved.
func (b *BedCount) Free() int {
	free := b.Total - b.Used - b.Reserved
	if free < 0 {
		return 0
	}
	return free
}

// Utilization returns used/total, or 0 for an empty category.
func (b *BedCount) Utilization() float64 {
	if b == nil || b.Total <= 0 {
		return 0
	}
	return float64(b.Used) / float64(b.Total)
}

// EquipmentCount tracks one kind of equipment.
type EquipmentCount struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	InUse       int `json:"in_use"`
	Maintenance int `json:"maintenance"`
}

// AvailableRatio returns available/total, or 1 when nothing is tracked.
func (e *EquipmentCount) AvailableRatio() float64 {
	if e == nil || e.Total <= 0 {
		return 1
	}
	return float64(e.Available) / float64(e.Total)
}

// StaffCount tracks one staff role.
type StaffCount struct {
	Total     int `json:"total"`
	OnDuty    int `json:"on_duty"`
	Available int `json:"available"`
}

// PatientFlow captures arrivals, departures and ER pressure.
type PatientFlow struct {
	InflowPerHour     int     `json:"inflow_per_hour"`
	ERWaitMinutes     float64 `json:"er_wait_minutes"`
	AdmissionsToday   int     `json:"admissions_today"`
	DischargesToday   int     `json:"discharges_today"`
	PredictedBedsUsed float64 `json:"predicted_beds_used"`
}

// Preparedness records outbreak readiness for one disease. Flags only ever
// go from false to true.
type Preparedness struct {
	Prepared     bool       `json:"prepared"`
	WardReady    bool       `json:"ward_ready"`
	StaffAlerted bool       `json:"staff_alerted"`
	PreparedAt   *time.Time `json:"prepared_at,omitempty"`
}

// Mark sets every readiness flag and reports whether anything changed.
func (p *Preparedness) Mark(now time.Time) bool {
	if p.Prepared && p.WardReady && p.StaffAlerted {
		return false
	}
	p.Prepared = true
	p.WardReady = true
	p.StaffAlerted = true
	if p.PreparedAt == nil {
		t := now
		p.PreparedAt = &t
	}
	return true
}

// StrainAssessment is the latest hospital strain index.
type StrainAssessment struct {
	Index  float64   `json:"index"`
	Level  string    `json:"level"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// HospitalState is the operational state of a hospital.
type HospitalState struct {
	Beds         map[string]*BedCount       `json:"beds"`
	Equipment    map[string]*EquipmentCount `json:"equipment"`
	Staff        map[string]*StaffCount     `json:"staff"`
	Flow         PatientFlow                `json:"flow"`
	Preparedness map[Disease]*Preparedness  `json:"preparedness"`
	Strain       *StrainAssessment          `json:"strain,omitempty"`
}

// BedTotals sums all bed categories.
func (h *HospitalState) BedTotals() (total, used int) {
	for _, b := range h.Beds {
		total += b.Total
		used += b.Used
	}
	return total, used
}

// Occupancy returns used beds over total beds across categories.
func (h *HospitalState) Occupancy() float64 {
	total, used := h.BedTotals()
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total)
}

// ICUUtilization returns the ICU occupancy ratio.
func (h *HospitalState) ICUUtilization() float64 {
	return h.Beds[BedICU].Utilization()
}

// PreparednessFor returns the record for a disease, creating it if needed.
func (h *HospitalState) PreparednessFor(d Disease) *Preparedness {
	if h.Preparedness == nil {
		h.Preparedness = make(map[Disease]*Preparedness)
	}
	p, ok := h.Preparedness[d]
	if !ok {
		p = &Preparedness{}
		h.Preparedness[d] = p
	}
	return p
}

// IsPrepared reports whether the hospital is prepared for a disease.
func (h *HospitalState) IsPrepared(d Disease) bool {
	p, ok := h.Preparedness[d]
	return ok && p.Prepared
}
