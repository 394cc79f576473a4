package models

import "testing"

func TestDiseaseTests_PushHistory(t *testing.T) {
	dt := &DiseaseTests{History: []int{1, 2, 3}}
	dt.PushHistory(4, 3)

	want := []int{2, 3, 4}
	if len(dt.History) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(dt.History))
	}
	for i := range want {
		if dt.History[i] != want[i] {
			t.Errorf("History[%d] = %d, want %d", i, dt.History[i], want[i])
		}
	}
}

func TestDiseaseTests_MeanOfLast(t *testing.T) {
	dt := &DiseaseTests{History: []int{4, 10, 12}}

	got, ok := dt.MeanOfLast(2)
	if !ok || got != 11 {
		t.Errorf("MeanOfLast(2) = %v, %v; want 11, true", got, ok)
	}

	got, ok = dt.MeanOfLast(5)
	if !ok || got != 26.0/3.0 {
		t.Errorf("MeanOfLast(5) = %v, %v; want mean of all", got, ok)
	}

	empty := &DiseaseTests{}
	if _, ok := empty.MeanOfLast(2); ok {
		t.Error("expected ok=false for empty history")
	}
}

func TestLabState_Utilization(t *testing.T) {
	l := &LabState{Tests: map[Disease]*DiseaseTests{
		DiseaseDengue:  {Today: 40, Capacity: 50},
		DiseaseMalaria: {Today: 45, Capacity: 50},
	}}
	if got := l.Utilization(); got != 0.85 {
		t.Errorf("Utilization() = %v, want 0.85", got)
	}
	if got := (&LabState{}).Utilization(); got != 0 {
		t.Errorf("empty lab utilization = %v, want 0", got)
	}
}
