package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies the kind of facility an entity represents.
type EntityType string

const (
	EntityTypeHospital EntityType = "hospital"
	EntityTypeLab      EntityType = "lab"
	EntityTypePharmacy EntityType = "pharmacy"
	EntityTypeSupplier EntityType = "supplier"
	EntityTypeCity     EntityType = "city"
)

// Valid returns true if the entity type is known.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeHospital, EntityTypeLab, EntityTypePharmacy, EntityTypeSupplier, EntityTypeCity:
		return true
	default:
		return false
	}
}

// EntityStatus is the operational status of an entity.
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusInactive EntityStatus = "inactive"
)

// Valid returns true if the status is known.
func (s EntityStatus) Valid() bool {
	return s == EntityStatusActive || s == EntityStatusInactive
}

// Entity is a persisted facility record. Exactly one of the state pointers
// is set, matching Type.
type Entity struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       EntityType   `json:"entity_type"`
	Zone       Zone         `json:"zone"`
	Status     EntityStatus `json:"status"`
	Version    int64        `json:"version"`
	LastActive time.Time    `json:"last_active"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	Hospital *HospitalState `json:"hospital,omitempty"`
	Lab      *LabState      `json:"lab,omitempty"`
	Pharmacy *PharmacyState `json:"pharmacy,omitempty"`
	Supplier *SupplierState `json:"supplier,omitempty"`
	City     *CityState     `json:"city,omitempty"`
}

// Validate checks if the entity data is valid.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid entity_type: %s", e.Type)
	}
	if !e.Zone.Valid() {
		return fmt.Errorf("invalid zone: %s", e.Zone)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	set := 0
	for _, ok := range []bool{e.Hospital != nil, e.Lab != nil, e.Pharmacy != nil, e.Supplier != nil, e.City != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("entity %s must carry exactly one state, has %d", e.ID, set)
	}
	if e.state() == nil {
		return fmt.Errorf("entity %s of type %s carries the wrong state", e.ID, e.Type)
	}
	return nil
}

// state returns the variant matching Type, or nil.
func (e *Entity) state() any {
	switch e.Type {
	case EntityTypeHospital:
		if e.Hospital != nil {
			return e.Hospital
		}
	case EntityTypeLab:
		if e.Lab != nil {
			return e.Lab
		}
	case EntityTypePharmacy:
		if e.Pharmacy != nil {
			return e.Pharmacy
		}
	case EntityTypeSupplier:
		if e.Supplier != nil {
			return e.Supplier
		}
	case EntityTypeCity:
		if e.City != nil {
			return e.City
		}
	}
	return nil
}

// MarshalState encodes the type-specific state as JSON.
func (e *Entity) MarshalState() ([]byte, error) {
	s := e.state()
	if s == nil {
		return nil, fmt.Errorf("entity %s has no %s state", e.ID, e.Type)
	}
	return json.Marshal(s)
}

// UnmarshalState decodes JSON into the state variant selected by Type.
func (e *Entity) UnmarshalState(data []byte) error {
	var target any
	switch e.Type {
	case EntityTypeHospital:
		e.Hospital = &HospitalState{}
		target = e.Hospital
	case EntityTypeLab:
		e.Lab = &LabState{}
		target = e.Lab
	case EntityTypePharmacy:
		e.Pharmacy = &PharmacyState{}
		target = e.Pharmacy
	case EntityTypeSupplier:
		e.Supplier = &SupplierState{}
		target = e.Supplier
	case EntityTypeCity:
		e.City = &CityState{}
		target = e.City
	default:
		return fmt.Errorf("invalid entity_type: %s", e.Type)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s state: %w", e.Type, err)
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	data, err := json.Marshal(e)
	if err != nil {
		panic(fmt.Sprintf("clone entity %s: %v", e.ID, err))
	}
	out := &Entity{}
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("clone entity %s: %v", e.ID, err))
	}
	return out
}

// EntityFilter holds filter options for finding entities.
type EntityFilter struct {
	Type   EntityType
	Zone   Zone
	Status EntityStatus
}
