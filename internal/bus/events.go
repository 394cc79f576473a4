package bus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/models"
)

// Topic names an event stream.
type Topic string

const (
	TopicHospitalOverloadRisk    Topic = "HOSPITAL_OVERLOAD_RISK"
	TopicEquipmentShortage       Topic = "EQUIPMENT_SHORTAGE"
	TopicHospitalResourceRequest Topic = "HOSPITAL_RESOURCE_REQUEST"
	TopicMedicineRequest         Topic = "MEDICINE_REQUEST"
	TopicMedicineShortageRisk    Topic = "MEDICINE_SHORTAGE_RISK"
	TopicLabCapacityWarning      Topic = "LAB_CAPACITY_WARNING"
	TopicSupplyConfirmed         Topic = "SUPPLY_CONFIRMED"
	TopicSupplyUnavailable       Topic = "SUPPLY_UNAVAILABLE"
	TopicDeliveryComplete        Topic = "DELIVERY_COMPLETE"
	TopicCityCrisisAlert         Topic = "CITY_CRISIS_ALERT"
)

const outbreakSuffix = "_OUTBREAK_PREDICTED"

// OutbreakTopic returns the per-disease outbreak topic, e.g.
// DENGUE_OUTBREAK_PREDICTED.
func OutbreakTopic(d models.Disease) Topic {
	return Topic(strings.ToUpper(string(d)) + outbreakSuffix)
}

// OutbreakTopics returns the outbreak topic of every known disease.
func OutbreakTopics() []Topic {
	out := make([]Topic, len(models.AllDiseases))
	for i, d := range models.AllDiseases {
		out[i] = OutbreakTopic(d)
	}
	return out
}

// AllTopics returns every topic the engine publishes.
func AllTopics() []Topic {
	return append([]Topic{
		TopicHospitalOverloadRisk,
		TopicEquipmentShortage,
		TopicHospitalResourceRequest,
		TopicMedicineRequest,
		TopicMedicineShortageRisk,
		TopicLabCapacityWarning,
		TopicSupplyConfirmed,
		TopicSupplyUnavailable,
		TopicDeliveryComplete,
		TopicCityCrisisAlert,
	}, OutbreakTopics()...)
}

// Payload is the typed body of an event.
type Payload interface {
	Topic() Topic
	Validate() error
}

// Event is the envelope delivered to handlers.
type Event struct {
	ID         string
	Timestamp  time.Time
	Source     string
	SourceType models.EntityType
	Payload    Payload
}

// Topic returns the payload's topic.
func (e Event) Topic() Topic {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Topic()
}

// OutbreakPredicted announces a triggered outbreak in a lab's zone.
type OutbreakPredicted struct {
	LabID          string
	Zone           models.Zone
	Disease        models.Disease
	CurrentCount   int
	ProjectedCount int
	RiskLevel      models.RiskLevel
	GrowthRate     float64
	PositiveRate   float64
	Confidence     float64
	Recommendation string
	Fallback       bool
}

func (p OutbreakPredicted) Topic() Topic { return OutbreakTopic(p.Disease) }

func (p OutbreakPredicted) Validate() error {
	var errs []error
	if p.LabID == "" {
		errs = append(errs, errors.New("lab id is required"))
	}
	if !p.Zone.Valid() {
		errs = append(errs, fmt.Errorf("invalid zone %q", p.Zone))
	}
	if !p.Disease.Valid() {
		errs = append(errs, fmt.Errorf("invalid disease %q", p.Disease))
	}
	if !p.RiskLevel.Valid() {
		errs = append(errs, fmt.Errorf("invalid risk level %q", p.RiskLevel))
	}
	if p.CurrentCount < 0 || p.ProjectedCount < 0 {
		errs = append(errs, errors.New("counts must not be negative"))
	}
	return errors.Join(errs...)
}

// HospitalOverloadRisk reports bed occupancy above the overload threshold.
type HospitalOverloadRisk struct {
	HospitalID    string
	Name          string
	Zone          models.Zone
	Occupancy     float64
	PredictedBeds int
	TotalBeds     int
	InflowPerHour int
}

func (HospitalOverloadRisk) Topic() Topic { return TopicHospitalOverloadRisk }

func (p HospitalOverloadRisk) Validate() error {
	return joinChecks(
		required("hospital id", p.HospitalID),
		zone(p.Zone),
		ratio("occupancy", p.Occupancy),
	)
}

// EquipmentShortage reports low availability of one equipment kind.
type EquipmentShortage struct {
	HospitalID string
	Zone       models.Zone
	Equipment  string
	Available  int
	Total      int
}

func (EquipmentShortage) Topic() Topic { return TopicEquipmentShortage }

func (p EquipmentShortage) Validate() error {
	var errs []error
	if p.Available < 0 || p.Total < p.Available {
		errs = append(errs, fmt.Errorf("available %d out of range for total %d", p.Available, p.Total))
	}
	return joinChecks(
		required("hospital id", p.HospitalID),
		zone(p.Zone),
		required("equipment", p.Equipment),
		errors.Join(errs...),
	)
}

// ResourceNeed is one item a strained hospital asks suppliers for.
type ResourceNeed struct {
	Item     string
	Quantity int
}

// HospitalResourceRequest asks suppliers for resources under strain.
type HospitalResourceRequest struct {
	HospitalID      string
	Name            string
	Zone            models.Zone
	StrainIndex     float64
	StrainLevel     string
	Urgency         models.Urgency
	Needs           []ResourceNeed
	Recommendations []string
}

func (HospitalResourceRequest) Topic() Topic { return TopicHospitalResourceRequest }

func (p HospitalResourceRequest) Validate() error {
	var errs []error
	for _, n := range p.Needs {
		if n.Item == "" || n.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("invalid need %+v", n))
		}
	}
	return joinChecks(
		required("hospital id", p.HospitalID),
		zone(p.Zone),
		urgency(p.Urgency),
		errors.Join(errs...),
	)
}

// MedicineRequest asks pharmacies in a zone to check stock for a disease.
type MedicineRequest struct {
	HospitalID        string
	Zone              models.Zone
	Disease           models.Disease
	Urgency           models.Urgency
	EstimatedPatients int
}

func (MedicineRequest) Topic() Topic { return TopicMedicineRequest }

func (p MedicineRequest) Validate() error {
	return joinChecks(
		required("hospital id", p.HospitalID),
		zone(p.Zone),
		disease(p.Disease),
		urgency(p.Urgency),
	)
}

// MedicineShortageRisk is a pharmacy's reorder addressed to its supplier.
type MedicineShortageRisk struct {
	PharmacyID    string
	Zone          models.Zone
	Medicine      string
	Stock         int
	DaysLeft      float64
	ReorderPoint  int
	Urgency       models.Urgency
	Criticality   models.Criticality
	OrderQuantity int
	SupplierID    string
	OrderID       string
}

func (MedicineShortageRisk) Topic() Topic { return TopicMedicineShortageRisk }

func (p MedicineShortageRisk) Validate() error {
	var errs []error
	if p.OrderQuantity <= 0 {
		errs = append(errs, fmt.Errorf("order quantity must be positive, got %d", p.OrderQuantity))
	}
	return joinChecks(
		required("pharmacy id", p.PharmacyID),
		required("supplier id", p.SupplierID),
		required("medicine", p.Medicine),
		required("order id", p.OrderID),
		zone(p.Zone),
		urgency(p.Urgency),
		errors.Join(errs...),
	)
}

// LabCapacityWarning reports a lab running near its test capacity.
type LabCapacityWarning struct {
	LabID         string
	Zone          models.Zone
	Utilization   float64
	TotalTests    int
	TotalCapacity int
	QueueLength   int
}

func (LabCapacityWarning) Topic() Topic { return TopicLabCapacityWarning }

func (p LabCapacityWarning) Validate() error {
	return joinChecks(required("lab id", p.LabID), zone(p.Zone))
}

// SupplyConfirmed reports a dispatched order.
type SupplyConfirmed struct {
	SupplierID    string
	OrderID       string
	RequesterID   string
	RequesterType models.EntityType
	Item          string
	Quantity      int
	Zone          models.Zone
	ETAHours      float64
}

func (SupplyConfirmed) Topic() Topic { return TopicSupplyConfirmed }

func (p SupplyConfirmed) Validate() error {
	return joinChecks(
		required("supplier id", p.SupplierID),
		required("order id", p.OrderID),
		required("requester id", p.RequesterID),
		required("item", p.Item),
		positive("quantity", p.Quantity),
	)
}

// SupplyUnavailable reports an order the supplier cannot serve at all.
type SupplyUnavailable struct {
	SupplierID    string
	OrderID       string
	RequesterID   string
	RequesterType models.EntityType
	Item          string
	Zone          models.Zone
	Reason        string
}

func (SupplyUnavailable) Topic() Topic { return TopicSupplyUnavailable }

func (p SupplyUnavailable) Validate() error {
	return joinChecks(
		required("supplier id", p.SupplierID),
		required("requester id", p.RequesterID),
		required("item", p.Item),
	)
}

// DeliveryComplete reports an order delivered to its requester.
type DeliveryComplete struct {
	SupplierID    string
	OrderID       string
	RequesterID   string
	RequesterType models.EntityType
	Item          string
	Quantity      int
	Zone          models.Zone
}

func (DeliveryComplete) Topic() Topic { return TopicDeliveryComplete }

func (p DeliveryComplete) Validate() error {
	return joinChecks(
		required("supplier id", p.SupplierID),
		required("order id", p.OrderID),
		required("requester id", p.RequesterID),
		required("item", p.Item),
		positive("quantity", p.Quantity),
	)
}

// CityCrisisAlert announces a HIGH or CRITICAL crisis assessment.
type CityCrisisAlert struct {
	Score           float64
	Severity        models.CrisisSeverity
	HighRiskZones   []models.Zone
	Recommendations []string
	Advisory        string
	Fallback        bool
}

func (CityCrisisAlert) Topic() Topic { return TopicCityCrisisAlert }

func (p CityCrisisAlert) Validate() error {
	if !p.Severity.Alarming() {
		return fmt.Errorf("severity %q does not warrant an alert", p.Severity)
	}
	if p.Score < 0 || p.Score > 100 {
		return fmt.Errorf("score %.1f out of range", p.Score)
	}
	return nil
}

func joinChecks(errs ...error) error { return errors.Join(errs...) }

func required(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func positive(field string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, v)
	}
	return nil
}

func ratio(field string, v float64) error {
	if v < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}

func zone(z models.Zone) error {
	if !z.Valid() {
		return fmt.Errorf("invalid zone %q", z)
	}
	return nil
}

func disease(d models.Disease) error {
	if !d.Valid() {
		return fmt.Errorf("invalid disease %q", d)
	}
	return nil
}

func urgency(u models.Urgency) error {
	if !u.Valid() {
		return fmt.Errorf("invalid urgency %q", u)
	}
	return nil
}

// ZoneOf returns the zone a payload concerns, or "" for city-wide events.
func ZoneOf(p Payload) models.Zone {
	switch v := p.(type) {
	case OutbreakPredicted:
		return v.Zone
	case HospitalOverloadRisk:
		return v.Zone
	case EquipmentShortage:
		return v.Zone
	case HospitalResourceRequest:
		return v.Zone
	case MedicineRequest:
		return v.Zone
	case MedicineShortageRisk:
		return v.Zone
	case LabCapacityWarning:
		return v.Zone
	case SupplyConfirmed:
		return v.Zone
	case SupplyUnavailable:
		return v.Zone
	case DeliveryComplete:
		return v.Zone
	default:
		return ""
	}
}
