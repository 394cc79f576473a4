package scoring

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// OutbreakRequest is the body of POST /predict/outbreak.
type OutbreakRequest struct {
	CurrentTests  map[string]int `json:"current_tests"`
	BaselineTests map[string]int `json:"baseline_tests"`
	PositiveTests map[string]int `json:"positive_tests,omitempty"`
}

// OutbreakPrediction is one disease entry of the outbreak response.
type OutbreakPrediction struct {
	Disease           string  `json:"disease"`
	RiskLevel         string  `json:"risk_level"`
	GrowthRate        float64 `json:"growth_rate"`
	GrowthPercentage  float64 `json:"growth_percentage"`
	PredictedCases24h int     `json:"predicted_cases_24h"`
	CurrentTests      int     `json:"current_tests"`
	BaselineTests     int     `json:"baseline_tests"`
	PositiveRate      float64 `json:"positive_rate"`
	Recommendation    string  `json:"recommendation"`
	TriggerOutbreak   bool    `json:"trigger_outbreak"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// HospitalCapacity summarizes city bed usage for the crisis endpoint.
type HospitalCapacity struct {
	TotalBeds          int     `json:"total_beds"`
	UsedBeds           int     `json:"used_beds"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// CrisisRequest is the body of POST /predict/crisis.
type CrisisRequest struct {
	DiseaseStats     map[string]int    `json:"disease_stats"`
	HospitalCapacity HospitalCapacity  `json:"hospital_capacity"`
	MedicineStock    map[string]int    `json:"medicine_stock"`
	ZoneRisks        map[string]string `json:"zone_risks"`
}

// CrisisBreakdown holds the component scores of a crisis assessment.
type CrisisBreakdown struct {
	DiseaseScore  float64 `json:"disease_score"`
	CapacityScore float64 `json:"capacity_score"`
	MedicineScore float64 `json:"medicine_score"`
	ZoneScore     float64 `json:"zone_score"`
}

// CrisisPrediction is the crisis endpoint response.
type CrisisPrediction struct {
	Severity        string          `json:"severity"`
	Score           float64         `json:"cps_score"`
	TriggerAlert    bool            `json:"trigger_alert"`
	Advisory        string          `json:"advisory"`
	Breakdown       CrisisBreakdown `json:"breakdown"`
	Recommendations []string        `json:"recommendations"`
	HighRiskZones   []string        `json:"high_risk_zones,omitempty"`
}

// StrainRequest is the body of POST /calculate/hospital_strain.
type StrainRequest struct {
	TotalBeds        int `json:"total_beds"`
	AvailableBeds    int `json:"available_beds"`
	ICUTotal         int `json:"icu_total"`
	ICUAvailable     int `json:"icu_available"`
	ERWaitTime       int `json:"er_wait_time"`
	IncomingPatients int `json:"incoming_patients"`
}

// Quantity decodes a number that the service may replace with a
// placeholder string; non-numeric values decode as zero.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.Atoi(string(data))
	if err != nil {
		*q = 0
		return nil
	}
	*q = Quantity(n)
	return nil
}

// RequestedItem is one line of a strain-triggered resource request.
type RequestedItem struct {
	Item     string   `json:"item"`
	Quantity Quantity `json:"quantity"`
}

// ResourceRequest is the supply request attached to an elevated strain.
type ResourceRequest struct {
	Urgency        string          `json:"urgency"`
	RequestedItems []RequestedItem `json:"requested_items"`
	Reason         string          `json:"reason"`
}

// StrainResult is the hospital strain response.
type StrainResult struct {
	Score                  float64          `json:"hsi_score"`
	StrainLevel            string           `json:"strain_level"`
	TriggerResourceRequest bool             `json:"trigger_resource_request"`
	Recommendations        []string         `json:"recommendations"`
	ResourceRequest        *ResourceRequest `json:"resource_request"`
}

// DemandRequest is the body of POST /classify/pharmacy_demand.
type DemandRequest struct {
	MedicineStocks   map[string]int `json:"medicine_stocks"`
	ConsumptionRates map[string]int `json:"consumption_rates"`
	OutbreakAlerts   []string       `json:"outbreak_alerts,omitempty"`
}

// DemandClassification is the verdict for one medicine.
type DemandClassification struct {
	Medicine         string  `json:"medicine"`
	CurrentStock     int     `json:"current_stock"`
	DailyConsumption int     `json:"daily_consumption"`
	ConsumptionRate  float64 `json:"consumption_rate"`
	DemandLevel      string  `json:"demand_level"`
	DaysRemaining    float64 `json:"days_remaining"`
	ReorderPoint     int     `json:"reorder_point"`
	NeedsOrder       bool    `json:"needs_order"`
	OutbreakAffected bool    `json:"outbreak_affected"`
}

// DemandResult is the pharmacy demand response.
type DemandResult struct {
	Classifications   []DemandClassification `json:"classifications"`
	CriticalMedicines []string               `json:"critical_medicines"`
	Recommendations   []string               `json:"recommendations"`
}

// OrderLine is one order submitted for prioritization.
type OrderLine struct {
	OrderID         string  `json:"order_id"`
	RequesterID     string  `json:"requester_id"`
	RequesterType   string  `json:"requester_type"`
	Medicine        string  `json:"medicine"`
	Quantity        int     `json:"quantity"`
	Urgency         string  `json:"urgency"`
	RequesterStrain float64 `json:"requester_strain"`
	Zone            string  `json:"zone"`
}

// PrioritizeRequest is the body of POST /prioritize/orders.
type PrioritizeRequest struct {
	Orders           []OrderLine    `json:"orders"`
	Inventory        map[string]int `json:"inventory"`
	DeliveryCapacity int            `json:"delivery_capacity"`
}

// PrioritizedOrder is an order annotated by the service.
type PrioritizedOrder struct {
	OrderID       string  `json:"order_id"`
	PriorityScore float64 `json:"priority_score"`
	Status        string  `json:"status,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// PrioritizeResult is the prioritization response.
type PrioritizeResult struct {
	Prioritized     []PrioritizedOrder `json:"prioritized_orders"`
	Fulfilled       []PrioritizedOrder `json:"fulfilled_orders"`
	Pending         []PrioritizedOrder `json:"pending_orders"`
	Recommendations []string           `json:"recommendations"`
}

// compile-time check that Quantity satisfies json.Unmarshaler
var _ json.Unmarshaler = (*Quantity)(nil)
