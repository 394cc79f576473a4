package models

// History bounds for daily test counts.
const (
	NaturalHistoryCap  = 7
	InjectedHistoryCap = 14
)

// DiseaseTests holds test counters for one disease at one lab.
type DiseaseTests struct {
	Today          int     `json:"today"`
	Positive       int     `json:"positive"`
	Capacity       int     `json:"capacity"`
	History        []int   `json:"history"`
	PositiveRate   float64 `json:"positive_rate"`
	TickCount      int     `json:"tick_count"`
	OutbreakActive bool    `json:"outbreak_active"`
}

// PushHistory appends v and drops the oldest entries beyond limit.
func (t *DiseaseTests) PushHistory(v, limit int) {
	t.History = append(t.History, v)
	if limit > 0 && len(t.History) > limit {
		t.History = append([]int(nil), t.History[len(t.History)-limit:]...)
	}
}

// MeanOfLast averages the last n history values. ok is false when the
// history is empty.
func (t *DiseaseTests) MeanOfLast(n int) (mean float64, ok bool) {
	if len(t.History) == 0 || n <= 0 {
		return 0, false
	}
	start := len(t.History) - n
	if start < 0 {
		start = 0
	}
	sum := 0
	for _, v := range t.History[start:] {
		sum += v
	}
	return float64(sum) / float64(len(t.History)-start), true
}

// ComputedPositiveRate returns positive/today, or 0 with no tests.
func (t *DiseaseTests) ComputedPositiveRate() float64 {
	if t.Today <= 0 {
		return 0
	}
	return float64(t.Positive) / float64(t.Today)
}

// LabState is the operational state of a diagnostic lab.
type LabState struct {
	Tests       map[Disease]*DiseaseTests `json:"tests"`
	QueueLength int                       `json:"queue_length"`
}

// TestsFor returns the counters for a disease, creating them if needed.
func (l *LabState) TestsFor(d Disease) *DiseaseTests {
	if l.Tests == nil {
		l.Tests = make(map[Disease]*DiseaseTests)
	}
	t, ok := l.Tests[d]
	if !ok {
		t = &DiseaseTests{}
		l.Tests[d] = t
	}
	return t
}

// Utilization returns total tests today over total capacity.
func (l *LabState) Utilization() float64 {
	today, capacity := 0, 0
	for _, t := range l.Tests {
		today += t.Today
		capacity += t.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return float64(today) / float64(capacity)
}
