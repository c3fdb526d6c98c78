package worker

import (
	"context"
	"log/slog"
	"time"
)

// Exporter writes the valuation report.
type Exporter interface {
	Export(ctx context.Context) error
}

// ExportWorker periodically rewrites the valuation report so that rate moves show up even when no
// reference price changed.
type ExportWorker struct {
	exporter Exporter
	interval time.Duration
}

// NewExportWorker creates a new ExportWorker.
func NewExportWorker(exporter Exporter, interval time.Duration) *ExportWorker {
	return &ExportWorker{
		exporter: exporter,
		interval: interval,
	}
}

// Run starts the export worker loop. It blocks until the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context) {
	slog.Info("ExportWorker: starting", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ExportWorker: shutting down")
			return
		case <-ticker.C:
			if err := w.exporter.Export(ctx); err != nil {
				slog.Error("ExportWorker: export failed", "error", err)
			} else {
				slog.Info("ExportWorker: export completed")
			}
		}
	}
}
