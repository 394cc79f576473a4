// Package scenario injects synthetic test growth into labs so the outbreak
// path can be exercised end to end. Scenarios are YAML documents; dengue and
// malaria are built in.
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/healsync/healsync/internal/models"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Scenario describes a progressive outbreak. On tick n each targeted lab's
// count grows by floor(BaseGrowth + n*GrowthPerTick).
type Scenario struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description,omitempty"`
	Disease       models.Disease `yaml:"disease"`
	Ticks         int            `yaml:"ticks"`
	BaseGrowth    float64        `yaml:"base_growth"`
	GrowthPerTick float64        `yaml:"growth_per_tick"`
	PositiveShare float64        `yaml:"positive_share"`
	HistoryEvery  int            `yaml:"history_every"`
	// Zones limits injection to labs in these zones; empty means every lab.
	Zones []models.Zone `yaml:"zones,omitempty"`
}

// Validate checks every field and reports all problems at once.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !s.Disease.Valid() {
		errs = append(errs, fmt.Errorf("unknown disease %q", s.Disease))
	}
	if s.Ticks <= 0 {
		errs = append(errs, fmt.Errorf("ticks must be positive, got %d", s.Ticks))
	}
	if s.BaseGrowth < 0 || s.GrowthPerTick < 0 {
		errs = append(errs, errors.New("growth must not be negative"))
	}
	if s.PositiveShare < 0 || s.PositiveShare > 1 {
		errs = append(errs, fmt.Errorf("positive_share must be within [0, 1], got %g", s.PositiveShare))
	}
	if s.HistoryEvery < 0 {
		errs = append(errs, fmt.Errorf("history_every must not be negative, got %d", s.HistoryEvery))
	}
	for _, z := range s.Zones {
		if !z.Valid() {
			errs = append(errs, fmt.Errorf("invalid zone %q", z))
		}
	}
	return errors.Join(errs...)
}

// Growth returns the count added on tick n, counted from zero.
func (s *Scenario) Growth(n int) int {
	return int(s.BaseGrowth + float64(n)*s.GrowthPerTick)
}

// Targets reports whether labs in zone z are part of the scenario.
func (s *Scenario) Targets(z models.Zone) bool {
	if len(s.Zones) == 0 {
		return true
	}
	for _, sz := range s.Zones {
		if sz == z {
			return true
		}
	}
	return false
}

// Decode parses one scenario document. Unknown keys are rejected.
func Decode(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	return &s, nil
}

// LoadFile reads a scenario from a YAML file.
func LoadFile(p string) (*Scenario, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Builtin returns a built-in scenario by name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", strings.ToLower(name)+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return Decode(bytes.NewReader(data))
}

// Names lists the built-in scenarios.
func Names() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
