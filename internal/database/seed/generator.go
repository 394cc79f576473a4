package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand"
	"slices"

	"github.com/healsync/healsync/internal/config"
	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/util"
)

// ErrAlreadySeeded is returned when the database already holds entities.
var ErrAlreadySeeded = errors.New("database already contains entities")

// Config configures the seed data generator.
type Config struct {
	CityName          string
	HospitalsPerZone  int
	LabsPerZone       int
	PharmaciesPerZone int
	Suppliers         int
	RandomSeed        int64
}

// DefaultConfig returns a default seed configuration.
func DefaultConfig() Config {
	return FromCity(config.Default().City, 2024)
}

// FromCity builds a seed configuration from the city section of the
// application config.
func FromCity(c config.CityConfig, seed int64) Config {
	return Config{
		CityName:          c.Name,
		HospitalsPerZone:  c.HospitalsPerZone,
		LabsPerZone:       c.LabsPerZone,
		PharmaciesPerZone: c.PharmaciesPerZone,
		Suppliers:         c.Suppliers,
		RandomSeed:        seed,
	}
}

// Summary counts what Generate created.
type Summary struct {
	Cities     int
	Hospitals  int
	Labs       int
	Pharmacies int
	Suppliers  int
}

// Total returns the number of entities created.
func (s Summary) Total() int {
	return s.Cities + s.Hospitals + s.Labs + s.Pharmacies + s.Suppliers
}

// Generator generates seed data for a city.
type Generator struct {
	db   *sql.DB
	repo *repository.EntityRepository
	cfg  Config
	rng  *rand.Rand

	// Tracking
	seq       int64
	names     map[string]bool
	suppliers []*models.Entity
	summary   Summary
}

// NewGenerator creates a new seed data generator.
func NewGenerator(db *sql.DB, dialect database.Dialect, cfg Config) *Generator {
	if cfg.Suppliers < 1 {
		cfg.Suppliers = 1
	}
	if cfg.Suppliers > len(models.AllZones) {
		cfg.Suppliers = len(models.AllZones)
	}
	if cfg.CityName == "" {
		cfg.CityName = "HealSync City"
	}
	return &Generator{
		db:    db,
		repo:  repository.NewEntityRepository(db, dialect),
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.RandomSeed)),
		names: make(map[string]bool),
	}
}

// Generate creates the city, its suppliers and every zone's facilities in
// one transaction. Identifiers are derived from the random seed, so the
// same config always yields the same city.
func (g *Generator) Generate(ctx context.Context) (Summary, error) {
	slog.Info("starting seed data generation",
		"city", g.cfg.CityName,
		"zones", len(models.AllZones),
		"suppliers", g.cfg.Suppliers,
	)

	counts, err := g.repo.CountByType(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("checking existing entities: %w", err)
	}
	for _, n := range counts {
		if n > 0 {
			return Summary{}, ErrAlreadySeeded
		}
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := g.generateCity(ctx, tx); err != nil {
		return Summary{}, fmt.Errorf("generating city: %w", err)
	}
	if err := g.generateSuppliers(ctx, tx); err != nil {
		return Summary{}, fmt.Errorf("generating suppliers: %w", err)
	}
	for _, z := range models.AllZones {
		if err := g.generateZone(ctx, tx, z); err != nil {
			return Summary{}, fmt.Errorf("generating %s: %w", z, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("committing transaction: %w", err)
	}

	slog.Info("seed data generation complete",
		"hospitals", g.summary.Hospitals,
		"labs", g.summary.Labs,
		"pharmacies", g.summary.Pharmacies,
		"suppliers", g.summary.Suppliers,
	)
	return g.summary, nil
}

func (g *Generator) generateCity(ctx context.Context, tx *sql.Tx) error {
	e := g.entity(models.EntityTypeCity, g.cfg.CityName+" Health Command", models.Zone1)
	e.City = models.DefaultCityState()
	if err := g.repo.Create(ctx, tx, e); err != nil {
		return err
	}
	g.summary.Cities++
	return nil
}

// generateSuppliers splits the zones between suppliers round robin, so
// every zone has exactly one supplier.
func (g *Generator) generateSuppliers(ctx context.Context, tx *sql.Tx) error {
	n := g.cfg.Suppliers
	served := make([][]models.Zone, n)
	for i, z := range models.AllZones {
		served[i%n] = append(served[i%n], z)
	}

	for i := range n {
		name := g.uniqueName(supplierNames, supplierKinds, "%s %s")
		e := g.entity(models.EntityTypeSupplier, name, served[i][0])
		e.Supplier = models.DefaultSupplierState(served[i]...)
		for _, k := range slices.Sorted(maps.Keys(e.Supplier.Inventory)) {
			item := e.Supplier.Inventory[k]
			item.Stock = g.scale(item.Stock, 0.8, 1.2)
		}
		e.Supplier.Fleet.Vehicles = 4 + g.rng.Intn(5)
		e.Supplier.Fleet.Available = e.Supplier.Fleet.Vehicles
		e.Supplier.Fleet.AvgDeliveryHours = 1.5 + float64(g.rng.Intn(3))*0.5

		if err := g.repo.Create(ctx, tx, e); err != nil {
			return err
		}
		g.suppliers = append(g.suppliers, e)
		g.summary.Suppliers++
	}
	return nil
}

func (g *Generator) generateZone(ctx context.Context, tx *sql.Tx, z models.Zone) error {
	for range g.cfg.HospitalsPerZone {
		if err := g.repo.Create(ctx, tx, g.hospital(z)); err != nil {
			return err
		}
		g.summary.Hospitals++
	}
	for range g.cfg.LabsPerZone {
		if err := g.repo.Create(ctx, tx, g.lab(z)); err != nil {
			return err
		}
		g.summary.Labs++
	}

	supplierID := g.supplierFor(z)
	for range g.cfg.PharmaciesPerZone {
		if err := g.repo.Create(ctx, tx, g.pharmacy(z, supplierID)); err != nil {
			return err
		}
		g.summary.Pharmacies++
	}
	return nil
}

func (g *Generator) hospital(z models.Zone) *models.Entity {
	e := g.entity(models.EntityTypeHospital, g.uniqueName(hospitalNames, hospitalKinds, "%s %s"), z)
	hs := models.DefaultHospitalState()

	size := 0.7 + g.rng.Float64()*0.6
	load := 0.45 + g.rng.Float64()*0.3
	for _, b := range hs.Beds {
		b.Total = max(1, int(math.Round(float64(b.Total)*size)))
		b.Used = min(b.Total, int(math.Round(float64(b.Total)*load)))
	}
	for _, eq := range hs.Equipment {
		eq.Total = max(1, int(math.Round(float64(eq.Total)*size)))
		eq.Maintenance = min(eq.Maintenance, eq.Total)
		eq.InUse = min(eq.Total-eq.Maintenance, int(math.Round(float64(eq.Total)*load)))
		eq.Available = eq.Total - eq.Maintenance - eq.InUse
	}
	for _, s := range hs.Staff {
		s.Total = max(1, int(math.Round(float64(s.Total)*size)))
		s.OnDuty = s.Total * 45 / 100
		s.Available = s.OnDuty / 4
	}
	hs.Flow.InflowPerHour = 5 + float64(g.rng.Intn(8))
	e.Hospital = hs
	return e
}

func (g *Generator) lab(z models.Zone) *models.Entity {
	e := g.entity(models.EntityTypeLab, g.uniqueName(labNames, labKinds, "%s %s"), z)
	ls := models.DefaultLabState()
	for _, d := range slices.Sorted(maps.Keys(ls.Tests)) {
		t := ls.Tests[d]
		shift := g.rng.Intn(5) - 2
		for i := range t.History {
			t.History[i] = max(0, t.History[i]+shift)
		}
		t.Today = max(0, t.Today+shift)
		t.Positive = min(t.Positive, t.Today)
	}
	e.Lab = ls
	return e
}

func (g *Generator) pharmacy(z models.Zone, supplierID string) *models.Entity {
	e := g.entity(models.EntityTypePharmacy, g.uniqueName(pharmacyStreets, pharmacyKinds, "%s %s"), z)
	ps := models.DefaultPharmacyState(supplierID)
	for _, k := range slices.Sorted(maps.Keys(ps.Medicines)) {
		m := ps.Medicines[k]
		m.Stock = g.scale(m.Stock, 0.8, 1.2)
	}
	e.Pharmacy = ps
	return e
}

func (g *Generator) supplierFor(z models.Zone) string {
	for _, s := range g.suppliers {
		if s.Supplier.Serves(z) {
			return s.ID
		}
	}
	return ""
}

func (g *Generator) entity(typ models.EntityType, name string, z models.Zone) *models.Entity {
	g.seq++
	return &models.Entity{
		ID:     util.DeterministicID(g.cfg.RandomSeed*10000 + g.seq),
		Name:   name,
		Type:   typ,
		Zone:   z,
		Status: models.EntityStatusActive,
	}
}

// uniqueName combines a random name and kind, numbering repeats.
func (g *Generator) uniqueName(names, kinds []string, format string) string {
	base := fmt.Sprintf(format, names[g.rng.Intn(len(names))], kinds[g.rng.Intn(len(kinds))])
	name := base
	for i := 2; g.names[name]; i++ {
		name = fmt.Sprintf("%s %d", base, i)
	}
	g.names[name] = true
	return name
}

func (g *Generator) scale(n int, lo, hi float64) int {
	return int(math.Round(float64(n) * (lo + g.rng.Float64()*(hi-lo))))
}
