package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/util"
)

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge a city alert",
	Long:  "Mark a city alert as seen. The ID may be shortened to the prefix shown by 'healsync status'.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		st := store.New(repository.NewEntityRepository(db.DB, db.Dialect()), store.WithLogger(slog.Default()))
		cities, err := st.Find(ctx, models.EntityFilter{Type: models.EntityTypeCity})
		if err != nil {
			return err
		}
		if len(cities) == 0 {
			return errors.New("no city coordinator; run 'healsync seed' first")
		}

		if _, err := st.Mutate(ctx, cities[0].ID, func(e *models.Entity) error {
			return e.City.Alerts.Acknowledge(args[0])
		}); err != nil {
			return fmt.Errorf("acknowledging alert: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "acknowledged %s\n", args[0])
		return nil
	},
}

var (
	listType     string
	listZone     string
	listPage     int
	listPageSize int
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List facilities page by page",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := models.EntityFilter{
			Type: models.EntityType(listType),
			Zone: models.Zone(listZone),
		}
		if filter.Type != "" && !filter.Type.Valid() {
			return fmt.Errorf("unknown entity type %q", listType)
		}
		if filter.Zone != "" && !filter.Zone.Valid() {
			return fmt.Errorf("unknown zone %q", listZone)
		}

		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		page := models.DefaultPagination()
		page.Page = listPage
		if listPageSize > 0 {
			page.PageSize = listPageSize
		}
		list, err := repository.NewEntityRepository(db.DB, db.Dialect()).List(ctx, filter, page)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tZONE\tNAME\tSTATUS\tVERSION\tUPDATED")
		for _, e := range list.Entities {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				util.ShortID(e.ID), e.Type, e.Zone, e.Name, e.Status, e.Version, util.FormatDateTime(e.UpdatedAt))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "page %d, %d of %d entities\n", max(1, list.Page), len(list.Entities), list.Total)
		return nil
	},
}

func init() {
	entitiesCmd.Flags().StringVar(&listType, "type", "", "Only this entity type (hospital, lab, pharmacy, supplier, city)")
	entitiesCmd.Flags().StringVar(&listZone, "zone", "", "Only this zone (e.g. Zone-1)")
	entitiesCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	entitiesCmd.Flags().IntVar(&listPageSize, "page-size", 25, "Entities per page (max 100)")

	rootCmd.AddCommand(ackCmd, entitiesCmd)
}
