package testutil

import (
	"github.com/google/uuid"
	"github.com/healsync/healsync/internal/models"
)

func fixtureEntity(typ models.EntityType, name string, zone models.Zone) *models.Entity {
	return &models.Entity{
		ID:     uuid.New().String(),
		Name:   name,
		Type:   typ,
		Zone:   zone,
		Status: models.EntityStatusActive,
	}
}

func apply(e *models.Entity, overrides []func(*models.Entity)) *models.Entity {
	for _, override := range overrides {
		override(e)
	}
	return e
}

// FixtureHospital creates a test hospital in Zone-1.
func FixtureHospital(overrides ...func(*models.Entity)) *models.Entity {
	e := fixtureEntity(models.EntityTypeHospital, "Riverside General", models.Zone1)
	e.Hospital = models.DefaultHospitalState()
	return apply(e, overrides)
}

// FixtureLab creates a test lab in Zone-1 with the reference test counts.
func FixtureLab(overrides ...func(*models.Entity)) *models.Entity {
	e := fixtureEntity(models.EntityTypeLab, "Central Diagnostics", models.Zone1)
	e.Lab = models.DefaultLabState()
	return apply(e, overrides)
}

// FixturePharmacy creates a test pharmacy in Zone-1 ordering from supplierID.
func FixturePharmacy(supplierID string, overrides ...func(*models.Entity)) *models.Entity {
	e := fixtureEntity(models.EntityTypePharmacy, "Market Street Pharmacy", models.Zone1)
	e.Pharmacy = models.DefaultPharmacyState(supplierID)
	return apply(e, overrides)
}

// FixtureSupplier creates a test supplier serving every zone.
func FixtureSupplier(overrides ...func(*models.Entity)) *models.Entity {
	e := fixtureEntity(models.EntityTypeSupplier, "MedLine Distribution", models.Zone1)
	e.Supplier = models.DefaultSupplierState(models.AllZones...)
	return apply(e, overrides)
}

// FixtureCity creates the test city coordinator.
func FixtureCity(overrides ...func(*models.Entity)) *models.Entity {
	e := fixtureEntity(models.EntityTypeCity, "City Health Command", models.Zone1)
	e.City = models.DefaultCityState()
	return apply(e, overrides)
}
