package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/carvalue/internal/api"
	"github.com/mtlprog/carvalue/internal/config"
	"github.com/mtlprog/carvalue/internal/domain"
	"github.com/mtlprog/carvalue/internal/export"
	"github.com/mtlprog/carvalue/internal/fx"
	"github.com/mtlprog/carvalue/internal/pricing"
	"github.com/mtlprog/carvalue/internal/reconcile"
	"github.com/mtlprog/carvalue/internal/vehicle"
	"github.com/mtlprog/carvalue/internal/worker"
)

func serve(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	vehicles := vehicle.NewPgRepository(pool)

	// Rate provider and its refresh loop
	fxClient := fx.NewClient(cfg.FXURL, cfg.FXRetryBaseDelay, cfg.FXRetryMax)
	rates := fx.NewProvider(fxClient, fx.NewPgRateRepository(pool))
	go worker.NewRateWorker(rates, cfg.RateRefreshInterval).Run(ctx)

	// Optional Google Sheets export, refreshed after sweeps and on its own interval
	var hook reconcile.AfterSweepHook
	if cfg.ExportEnabled() {
		writer, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return err
		}
		exportSvc := export.NewService(vehicles, rates, writer)
		hook = exportSvc
		go worker.NewExportWorker(exportSvc, cfg.ExportInterval).Run(ctx)
	} else {
		slog.Info("GOOGLE_SHEETS_ID or GOOGLE_CREDENTIALS_JSON not set, sheet export disabled")
	}

	// Reconciliation scheduler
	if cfg.PricingToken == "" {
		slog.Warn("PRICING_TOKEN not set, pricing provider requests are unauthenticated")
	}
	currency, err := domain.ParseCurrency(cfg.PricingCurrency)
	if err != nil {
		return fmt.Errorf("PRICING_CURRENCY: %w", err)
	}
	prices := pricing.NewClient(cfg.PricingURL, cfg.PricingToken, currency, cfg.PricingRetryMax, cfg.PricingRetryBaseDelay)
	scheduler := reconcile.NewScheduler(prices, vehicles, rates, reconcile.Config{
		PollInterval:         cfg.SyncPollInterval,
		MaterialityThreshold: cfg.SyncMaterialityThreshold,
		ItemDelay:            cfg.SyncItemDelay,
		ProviderTimeout:      cfg.ProviderTimeout,
	}, hook)
	go scheduler.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, sync endpoints are unprotected")
	}

	// Start HTTP server
	srv := api.NewServer(cfg.HTTPPort, api.NewHandler(scheduler, vehicles, rates), api.NewRateHandler(rates), cfg.AdminAPIKey)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			cancelServe()
		}
	}()

	// Wait for shutdown signal
	<-serveCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
