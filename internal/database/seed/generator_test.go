package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/testutil"
)

func testConfig() Config {
	return Config{
		CityName:          "Testville",
		HospitalsPerZone:  2,
		LabsPerZone:       1,
		PharmaciesPerZone: 2,
		Suppliers:         2,
		RandomSeed:        7,
	}
}

func TestGenerate(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()

	summary, err := NewGenerator(db.DB, database.DialectSQLite, testConfig()).Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, Summary{Cities: 1, Hospitals: 8, Labs: 4, Pharmacies: 8, Suppliers: 2}, summary)
	assert.Equal(t, 23, summary.Total())
	db.AssertRowCount(t, "entities", 23)

	repo := repository.NewEntityRepository(db.DB, database.DialectSQLite)
	suppliers, err := repo.Find(ctx, models.EntityFilter{Type: models.EntityTypeSupplier})
	require.NoError(t, err)
	require.Len(t, suppliers, 2)

	// Every zone is served by exactly one supplier.
	servedBy := map[models.Zone]string{}
	for _, s := range suppliers {
		for _, z := range s.Supplier.ServiceZones {
			_, dup := servedBy[z]
			assert.False(t, dup, "zone %s served twice", z)
			servedBy[z] = s.ID
		}
	}
	assert.Len(t, servedBy, len(models.AllZones))

	pharmacies, err := repo.Find(ctx, models.EntityFilter{Type: models.EntityTypePharmacy})
	require.NoError(t, err)
	for _, p := range pharmacies {
		for name, m := range p.Pharmacy.Medicines {
			assert.Equal(t, servedBy[p.Zone], m.SupplierID, "%s %s", p.Name, name)
		}
	}

	hospitals, err := repo.Find(ctx, models.EntityFilter{Type: models.EntityTypeHospital})
	require.NoError(t, err)
	names := map[string]bool{}
	for _, h := range hospitals {
		assert.False(t, names[h.Name], "duplicate name %s", h.Name)
		names[h.Name] = true
		for kind, b := range h.Hospital.Beds {
			assert.LessOrEqual(t, b.Used, b.Total, kind)
		}
		for kind, eq := range h.Hospital.Equipment {
			assert.Equal(t, eq.Total, eq.Available+eq.InUse+eq.Maintenance, kind)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	ids := func() []string {
		db := testutil.NewMigratedDB(t)
		_, err := NewGenerator(db.DB, database.DialectSQLite, testConfig()).Generate(ctx)
		require.NoError(t, err)

		repo := repository.NewEntityRepository(db.DB, database.DialectSQLite)
		all, err := repo.Find(ctx, models.EntityFilter{})
		require.NoError(t, err)
		var out []string
		for _, e := range all {
			out = append(out, e.ID+"/"+e.Name)
		}
		return out
	}

	assert.ElementsMatch(t, ids(), ids())
}

func TestGenerate_AlreadySeeded(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()

	_, err := NewGenerator(db.DB, database.DialectSQLite, testConfig()).Generate(ctx)
	require.NoError(t, err)

	_, err = NewGenerator(db.DB, database.DialectSQLite, testConfig()).Generate(ctx)
	assert.ErrorIs(t, err, ErrAlreadySeeded)
	db.AssertRowCount(t, "entities", 23)
}

func TestNewGenerator_ClampsSuppliers(t *testing.T) {
	cfg := testConfig()
	cfg.Suppliers = 9
	assert.Equal(t, len(models.AllZones), NewGenerator(nil, database.DialectSQLite, cfg).cfg.Suppliers)

	cfg.Suppliers = 0
	assert.Equal(t, 1, NewGenerator(nil, database.DialectSQLite, cfg).cfg.Suppliers)
}
