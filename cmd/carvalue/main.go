package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/carvalue/internal/config"
	"github.com/mtlprog/carvalue/internal/database"
	"github.com/mtlprog/carvalue/internal/export"
	"github.com/mtlprog/carvalue/internal/fx"
	"github.com/mtlprog/carvalue/internal/vehicle"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:   "carvalue",
		Usage:  "vehicle valuation and reference price reconciliation",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, the rate refresher and the reconciliation scheduler",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations and exit",
				Action: migrate,
			},
			{
				Name:  "export",
				Usage: "write the current valuation report to an XLSX file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   "valuations.xlsx",
						Usage:   "output file",
					},
				},
				Action: exportXLSX,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// connect opens the database pool and applies pending migrations.
func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create migrations sub-fs: %w", err)
	}
	applied, err := database.RunMigrations(ctx, pool, migrationsSub)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("migrations applied", "files", applied)
	}

	return pool, nil
}

func migrate(c *cli.Context) error {
	pool, err := connect(c.Context, config.Load())
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

func exportXLSX(c *cli.Context) error {
	cfg := config.Load()

	pool, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	rates := fx.NewProvider(fx.NewClient(cfg.FXURL, cfg.FXRetryBaseDelay, cfg.FXRetryMax), fx.NewPgRateRepository(pool))
	svc := export.NewService(vehicle.NewPgRepository(pool), rates, export.NewXLSXWriter(c.String("out")))
	if err := svc.Export(c.Context); err != nil {
		return err
	}

	slog.Info("valuation report written", "path", c.String("out"))
	return nil
}
