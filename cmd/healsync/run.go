package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/healsync/healsync/internal/database/seed"
	"github.com/healsync/healsync/internal/engine"
	"github.com/healsync/healsync/internal/metrics"
	"github.com/healsync/healsync/internal/scenario"
)

var (
	scenarioName string
	scenarioFile string
	runFor       time.Duration
	seedIfEmpty  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordination engine",
	Long:  "Start every facility actor and tick them until interrupted. A scenario injects a disease outbreak into lab test counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sc, err := loadScenario()
		if err != nil {
			return err
		}

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		if seedIfEmpty {
			gen := seed.NewGenerator(db.DB, db.Dialect(), seed.FromCity(cfg.City, cfg.Simulation.RandomSeed))
			summary, err := gen.Generate(ctx)
			switch {
			case errors.Is(err, seed.ErrAlreadySeeded):
				slog.Debug("database already seeded")
			case err != nil:
				return fmt.Errorf("generating seed data: %w", err)
			default:
				slog.Info("seeded city", "entities", summary.Total())
			}
		}

		e, err := engine.New(ctx, cfg, db.DB, db.Dialect(), engine.Options{
			Scenario: sc,
			Metrics:  metrics.New(),
			Logger:   slog.Default(),
		})
		if err != nil {
			return err
		}
		defer e.Close()
		if len(e.Agents()) == 0 {
			return errors.New("no active facilities; run 'healsync seed' first or pass --seed")
		}

		if runFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runFor)
			defer cancel()
		}

		slog.Info("HealSync starting",
			"version", Version,
			"build_time", BuildTime,
			"config_path", cfgPath,
			"scenario", scenarioLabel(sc),
		)
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("HealSync shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&scenarioName, "scenario", "", "Built-in outbreak scenario to inject (see 'healsync scenarios')")
	runCmd.Flags().StringVar(&scenarioFile, "scenario-file", "", "Path to a scenario YAML file")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&seedIfEmpty, "seed", false, "Seed the city first when the database is empty")
	runCmd.MarkFlagsMutuallyExclusive("scenario", "scenario-file")

	rootCmd.AddCommand(runCmd)
}

func loadScenario() (*scenario.Scenario, error) {
	switch {
	case scenarioName != "":
		return scenario.Builtin(scenarioName)
	case scenarioFile != "":
		return scenario.LoadFile(scenarioFile)
	default:
		return nil, nil
	}
}

func scenarioLabel(sc *scenario.Scenario) string {
	if sc == nil {
		return "none"
	}
	return sc.Name
}
