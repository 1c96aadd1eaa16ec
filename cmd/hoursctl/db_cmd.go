package main

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/noah-isme/apprenticeship-hours-api/internal/repository"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/database"
)

func newDBCmd() *cobra.Command {
	var sqlitePath string
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Interact with the hours database",
	}
	cmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "use this SQLite file instead of the configured database")

	open := func() (*sqlx.DB, error) {
		if sqlitePath != "" {
			return database.NewSQLite(sqlitePath)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return database.Open(cfg.Database)
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}

	var resource, resourceID string
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail of a resource",
		Example: `  hoursctl db audit --resource transfer_claim --id 3f0c...
  hoursctl db audit --resource enrollment --id enr-1 --sqlite hours.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			logs, err := repository.NewAuditRepository(db).ListByResource(cmd.Context(), resource, resourceID)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "WHEN\tACTOR\tACTION\tDETAILS")
			for _, l := range logs {
				actor := "-"
				if l.UserID != nil {
					actor = *l.UserID
				}
				details := ""
				if l.NewValues != nil {
					details = strings.TrimSpace(*l.NewValues)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.CreatedAt.UTC().Format("2006-01-02 15:04:05"), actor, l.Action, details)
			}
			return tw.Flush()
		},
	}
	audit.Flags().StringVar(&resource, "resource", "", "resource type, e.g. transfer_claim, hour_entry, timeclock_session")
	audit.Flags().StringVar(&resourceID, "id", "", "resource id")
	_ = audit.MarkFlagRequired("resource")
	_ = audit.MarkFlagRequired("id")

	cmd.AddCommand(migrate, audit)
	return cmd
}
