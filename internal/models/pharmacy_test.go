package models

import (
	"math"
	"testing"
	"time"
)

func TestMedicine_ReorderUrgency(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		daily float64
		want  Urgency
	}{
		{"under two days", 50, 30, UrgencyHigh},
		{"under five days", 100, 30, UrgencyMedium},
		{"plenty", 300, 30, UrgencyLow},
		{"unused", 10, 0, UrgencyLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Medicine{Stock: tt.stock, DailyUsage: tt.daily}
			if got := m.ReorderUrgency(); got != tt.want {
				t.Errorf("ReorderUrgency() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMedicine_ReorderQuantity(t *testing.T) {
	tests := []struct {
		name string
		med  Medicine
		want int
	}{
		{"high criticality targets 14 days", Medicine{Stock: 90, DailyUsage: 30, Criticality: CriticalityHigh}, 330},
		{"medium criticality targets 10 days", Medicine{Stock: 280, DailyUsage: 150, Criticality: CriticalityMedium}, 1220},
		{"at least a week of cover", Medicine{Stock: 1000, DailyUsage: 15, Criticality: CriticalityHigh}, 110},
		{"rounded up to tens", Medicine{Stock: 0, DailyUsage: 1.5, Criticality: CriticalityLow}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.med.ReorderQuantity(); got != tt.want {
				t.Errorf("ReorderQuantity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMedicine_DaysLeft(t *testing.T) {
	m := &Medicine{Stock: 10}
	if !math.IsInf(m.DaysLeft(), 1) {
		t.Errorf("expected infinite cover with no usage, got %v", m.DaysLeft())
	}
}

func TestPharmacyState_PendingOrders(t *testing.T) {
	p := &PharmacyState{}

	if err := p.AddPending(PendingOrder{Medicine: MedicineDengue, Quantity: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.AddPending(PendingOrder{Medicine: MedicineDengue, Quantity: 50}); err == nil {
		t.Error("expected error for second pending order of the same medicine")
	}
	if err := p.AddPending(PendingOrder{Medicine: MedicineParacetamol, Quantity: 50}); err != nil {
		t.Errorf("unexpected error for a different medicine: %v", err)
	}

	if !p.RemovePending(MedicineDengue) {
		t.Error("expected pending order to be removed")
	}
	if p.HasPending(MedicineDengue) {
		t.Error("expected no pending dengueMed order")
	}
	if p.RemovePending(MedicineDengue) {
		t.Error("second removal should report nothing removed")
	}
}

func TestPharmacyState_ExpirePending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &PharmacyState{PendingOrders: []PendingOrder{
		{Medicine: MedicineDengue, RequestedAt: now.Add(-7 * time.Hour)},
		{Medicine: MedicineParacetamol, RequestedAt: now.Add(-time.Hour)},
	}}

	if got := p.ExpirePending(now, 0); got != nil {
		t.Errorf("zero max age expired %d orders", len(got))
	}

	expired := p.ExpirePending(now, 6*time.Hour)
	if len(expired) != 1 || expired[0].Medicine != MedicineDengue {
		t.Fatalf("expected the dengueMed order to expire, got %+v", expired)
	}
	if p.HasPending(MedicineDengue) {
		t.Error("expired order should no longer be pending")
	}
	if !p.HasPending(MedicineParacetamol) {
		t.Error("recent order should still be pending")
	}
}

func TestPharmacyState_ActiveOutbreaks(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &PharmacyState{}

	if got := p.ActiveOutbreaks(now, time.Hour); len(got) != 0 {
		t.Fatalf("expected no outbreaks, got %v", got)
	}

	p.NoteOutbreak(DiseaseMalaria, now)
	p.NoteOutbreak(DiseaseDengue, now.Add(-2*time.Hour))
	p.NoteOutbreak(DiseaseCovid, now.Add(-30*time.Minute))

	got := p.ActiveOutbreaks(now, time.Hour)
	if len(got) != 2 || got[0] != DiseaseMalaria || got[1] != DiseaseCovid {
		t.Errorf("ActiveOutbreaks = %v, want [malaria covid]", got)
	}
	if _, ok := p.OutbreakAlerts[DiseaseDengue]; ok {
		t.Error("expired dengue report should be forgotten")
	}
}
