package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"peakmotif/adapters/db"
	"peakmotif/internal"
	"peakmotif/internal/api"
	"peakmotif/internal/config"
	"peakmotif/internal/migration"
	"peakmotif/ui"
)

// openDB connects to the configured result store and brings its schema up to date
func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite3" {
		conn.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the result store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)).
				WithField("driver", cfg.Database.Driver).
				Info("schema at version %s", migration.NewRunner().Version())
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			runs, err := db.NewResultRepository(conn).ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSTATUS\tPEAKS\tTESTED\tSIGNIFICANT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.CreatedAt, r.Status, r.AdmittedPeaks, r.MotifsTested, r.Significant)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP (HTML reports and a JSON API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			repo := db.NewResultRepository(conn)
			server, err := ui.NewApp(ui.Config{Port: cfg.Server.Port, API: api.NewRouter(repo, logger)}, repo, logger)
			if err != nil {
				return err
			}
			return server.Start()
		},
	}
}
