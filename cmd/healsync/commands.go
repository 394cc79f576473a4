package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/database/seed"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/report"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/scenario"
	"github.com/healsync/healsync/internal/util"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Manage the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		// openDatabase migrates up on the way in.
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		migrator, err := database.NewMigrator(db)
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}

		switch action {
		case "down":
			result, err := migrator.MigrateDown(ctx)
			if err != nil {
				return fmt.Errorf("rolling back: %w", err)
			}
			slog.Info("rolled back migration", "to_version", result.TargetVersion)
		case "status":
			migrations, err := migrator.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tDESCRIPTION\tAPPLIED")
			for _, m := range migrations {
				applied := "pending"
				if m.Applied {
					applied = util.FormatDateTime(m.AppliedAt)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Description, applied)
			}
			return w.Flush()
		default:
			slog.Info("migrations complete")
		}
		return nil
	},
}

var seedRandom int64

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate the city's facilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		s := seedRandom
		if !cmd.Flags().Changed("random-seed") && cfg.Simulation.RandomSeed != 0 {
			s = cfg.Simulation.RandomSeed
		}
		summary, err := seed.NewGenerator(db.DB, db.Dialect(), seed.FromCity(cfg.City, s)).Generate(ctx)
		if errors.Is(err, seed.ErrAlreadySeeded) {
			slog.Warn("database already contains entities, skipping seed generation")
			return nil
		}
		if err != nil {
			return fmt.Errorf("generating seed data: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d hospitals, %d labs, %d pharmacies, %d suppliers\n",
			summary.Hospitals, summary.Labs, summary.Pharmacies, summary.Suppliers)
		return nil
	},
}

var activityLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of every facility",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		entities, err := repository.NewEntityRepository(db.DB, db.Dialect()).Find(ctx, models.EntityFilter{})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.New(nil).Render(entities, time.Now()))

		if activityLimit <= 0 {
			return nil
		}
		records, err := repository.NewActivityRepository(db.DB, db.Dialect()).Recent(ctx, activityLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nTIME\tACTOR\tTYPE\tENTITY\tZONE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				util.FormatDateTime(r.Timestamp), r.Actor, r.Type, util.ShortID(r.EntityID), r.Zone)
		}
		return w.Flush()
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a database backup now",
	Long:  "Copy the SQLite database into the backup directory, uploading it to S3 when backup.s3 is enabled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		path, err := db.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in outbreak scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDISEASE\tTICKS\tDESCRIPTION")
		for _, name := range scenario.Names() {
			s, err := scenario.Builtin(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Name, s.Disease, s.Ticks, s.Description)
		}
		return w.Flush()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "HealSync version %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	seedCmd.Flags().Int64Var(&seedRandom, "random-seed", 2024, "Seed for facility generation")
	statusCmd.Flags().IntVar(&activityLimit, "activity", 0, "Also list this many recent activity records")

	rootCmd.AddCommand(migrateCmd, seedCmd, statusCmd, backupCmd, scenariosCmd, versionCmd)
}
