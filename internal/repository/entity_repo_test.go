package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/testutil"
)

func setupEntityTest(t *testing.T) (*EntityRepository, *testutil.TestDB, context.Context) {
	t.Helper()

	db := testutil.NewMigratedDB(t)
	return NewEntityRepository(db.DB, database.DialectSQLite), db, context.Background()
}

func TestEntityRepository_Create(t *testing.T) {
	repo, db, ctx := setupEntityTest(t)

	t.Run("creates hospital at version 1", func(t *testing.T) {
		h := testutil.FixtureHospital()

		if err := repo.Create(ctx, nil, h); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if h.Version != 1 {
			t.Errorf("expected version 1, got %d", h.Version)
		}
		if h.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
		db.AssertRowCount(t, "entities", 1)
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		e := testutil.FixtureLab(func(e *models.Entity) {
			e.Type = models.EntityTypePharmacy
		})

		if err := repo.Create(ctx, nil, e); err == nil {
			t.Error("expected validation error for lab state on pharmacy entity")
		}
	})

	t.Run("creates within transaction", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx failed: %v", err)
		}

		s := testutil.FixtureSupplier()
		if err := repo.Create(ctx, tx, s); err != nil {
			tx.Rollback()
			t.Fatalf("Create failed: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}

		if _, err := repo.GetByID(ctx, s.ID); !errors.Is(err, ErrEntityNotFound) {
			t.Errorf("expected ErrEntityNotFound after rollback, got %v", err)
		}
	})
}

func TestEntityRepository_GetByID(t *testing.T) {
	repo, _, ctx := setupEntityTest(t)

	lab := testutil.FixtureLab()
	if err := repo.Create(ctx, nil, lab); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("round trips state", func(t *testing.T) {
		got, err := repo.GetByID(ctx, lab.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}

		if got.Lab == nil {
			t.Fatal("expected lab state")
		}
		dengue := got.Lab.TestsFor(models.DiseaseDengue)
		if dengue.Today != 12 {
			t.Errorf("expected dengue today 12, got %d", dengue.Today)
		}
		if len(dengue.History) != 3 || dengue.History[2] != 12 {
			t.Errorf("expected history [10 11 12], got %v", dengue.History)
		}
		if got.Zone != models.Zone1 {
			t.Errorf("expected zone %s, got %s", models.Zone1, got.Zone)
		}
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "does-not-exist")
		if !errors.Is(err, ErrEntityNotFound) {
			t.Errorf("expected ErrEntityNotFound, got %v", err)
		}
	})
}

func TestEntityRepository_UpdateState(t *testing.T) {
	repo, _, ctx := setupEntityTest(t)

	h := testutil.FixtureHospital()
	if err := repo.Create(ctx, nil, h); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("increments version", func(t *testing.T) {
		e, err := repo.GetByID(ctx, h.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		e.Hospital.Flow.InflowPerHour = 42

		if err := repo.UpdateState(ctx, e, e.Version); err != nil {
			t.Fatalf("UpdateState failed: %v", err)
		}
		if e.Version != 2 {
			t.Errorf("expected version 2, got %d", e.Version)
		}

		stored, _ := repo.GetByID(ctx, h.ID)
		if stored.Version != 2 {
			t.Errorf("expected stored version 2, got %d", stored.Version)
		}
		if stored.Hospital.Flow.InflowPerHour != 42 {
			t.Errorf("expected inflow 42, got %v", stored.Hospital.Flow.InflowPerHour)
		}
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		a, _ := repo.GetByID(ctx, h.ID)
		b, _ := repo.GetByID(ctx, h.ID)

		if err := repo.UpdateState(ctx, a, a.Version); err != nil {
			t.Fatalf("first UpdateState failed: %v", err)
		}

		b.Hospital.Flow.ERWaitMinutes = 90
		err := repo.UpdateState(ctx, b, b.Version)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		stored, _ := repo.GetByID(ctx, h.ID)
		if stored.Hospital.Flow.ERWaitMinutes == 90 {
			t.Error("conflicting write should not be stored")
		}
		if stored.Version != a.Version {
			t.Errorf("expected version %d, got %d", a.Version, stored.Version)
		}
	})

	t.Run("missing entity", func(t *testing.T) {
		ghost := testutil.FixtureHospital()
		err := repo.UpdateState(ctx, ghost, 1)
		if !errors.Is(err, ErrEntityNotFound) {
			t.Errorf("expected ErrEntityNotFound, got %v", err)
		}
	})
}

func TestEntityRepository_Find(t *testing.T) {
	repo, _, ctx := setupEntityTest(t)

	supplier := testutil.FixtureSupplier()
	fixtures := []*models.Entity{
		testutil.FixtureHospital(),
		testutil.FixtureHospital(func(e *models.Entity) { e.Zone = models.Zone2 }),
		testutil.FixtureLab(),
		testutil.FixturePharmacy(supplier.ID),
		supplier,
		testutil.FixtureCity(),
	}
	for _, e := range fixtures {
		if err := repo.Create(ctx, nil, e); err != nil {
			t.Fatalf("Create %s failed: %v", e.Type, err)
		}
	}

	tests := []struct {
		name   string
		filter models.EntityFilter
		want   int
	}{
		{"all", models.EntityFilter{}, 6},
		{"hospitals", models.EntityFilter{Type: models.EntityTypeHospital}, 2},
		{"zone 2", models.EntityFilter{Zone: models.Zone2}, 1},
		{"zone 1 hospitals", models.EntityFilter{Type: models.EntityTypeHospital, Zone: models.Zone1}, 1},
		{"inactive", models.EntityFilter{Status: models.EntityStatusInactive}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d entities, got %d", tt.want, len(got))
			}
		})
	}

	t.Run("list paginates", func(t *testing.T) {
		list, err := repo.List(ctx, models.EntityFilter{}, models.Pagination{Page: 2, PageSize: 4})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if list.Total != 6 {
			t.Errorf("expected total 6, got %d", list.Total)
		}
		if len(list.Entities) != 2 {
			t.Errorf("expected 2 entities on page 2, got %d", len(list.Entities))
		}
	})

	t.Run("count by type", func(t *testing.T) {
		counts, err := repo.CountByType(ctx)
		if err != nil {
			t.Fatalf("CountByType failed: %v", err)
		}
		if counts[models.EntityTypeHospital] != 2 {
			t.Errorf("expected 2 hospitals, got %d", counts[models.EntityTypeHospital])
		}
		if counts[models.EntityTypeCity] != 1 {
			t.Errorf("expected 1 city, got %d", counts[models.EntityTypeCity])
		}
	})
}
