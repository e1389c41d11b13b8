// Package control holds the API-side batch orchestrators: long loops over
// worklists with fixed inter-call pacing and aggregate results.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// ItemPricer applies price mutations; satisfied by *coupang.Client.
type ItemPricer interface {
	UpdateItemPrice(ctx context.Context, vendorItemID, price int64) error
}

// WorklistStore loads pending price updates; satisfied by *storage.Storage.
type WorklistStore interface {
	UpdateItemsByJobID(ctx context.Context, jobID string) ([]jobs.PriceUpdateItem, error)
}

// ReportWriter renders the finished worklist; satisfied by *report.Writer.
type ReportWriter interface {
	WritePriceReport(jobID string, items []jobs.PriceUpdateItem) (string, error)
}

// Notifier announces finished runs; satisfied by *notify.Notifier.
type Notifier interface {
	Emit(ctx context.Context, channel, event string, payload any) error
}

// PriceResult is the aggregate outcome of one price-control run
type PriceResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// PriceControl walks a stored price-update worklist, applying each change
// through the marketplace API with a fixed pause between calls.
type PriceControl struct {
	pricer   ItemPricer
	store    WorklistStore
	reports  ReportWriter
	notifier Notifier
	delay    time.Duration
	channel  string
	logger   *slog.Logger

	// reporting tracks the fire-and-forget goroutine so tests and shutdown
	// can wait for it
	reporting sync.WaitGroup
}

func NewPriceControl(pricer ItemPricer, store WorklistStore, reports ReportWriter, notifier Notifier, delay time.Duration, channel string, logger *slog.Logger) *PriceControl {
	return &PriceControl{
		pricer:   pricer,
		store:    store,
		reports:  reports,
		notifier: notifier,
		delay:    delay,
		channel:  channel,
		logger:   logger,
	}
}

// Run applies every pending item for the job. An empty worklist is a
// successful no-op. Per-item failures never abort the loop.
func (c *PriceControl) Run(ctx context.Context, jobID string) (*PriceResult, error) {
	items, err := c.store.UpdateItemsByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worklist for %s: %w", jobID, err)
	}
	if len(items) == 0 {
		c.logger.Info("no pending price updates", slog.String("job_id", jobID))
		return &PriceResult{}, nil
	}

	result := &PriceResult{Total: len(items)}
	progressEvery := len(items) / 10
	if progressEvery == 0 {
		progressEvery = 1
	}

	for i := range items {
		item := &items[i]
		if err := c.pricer.UpdateItemPrice(ctx, item.VendorItemID, item.NewPrice); err != nil {
			item.Status = jobs.StatusFailed
			result.Failed++
			c.logger.Warn("price update failed",
				slog.String("job_id", jobID),
				slog.Int64("vendor_item_id", item.VendorItemID),
				slog.Any("error", err),
			)
		} else {
			item.Status = jobs.StatusSuccess
			result.Success++
		}

		if (i+1)%progressEvery == 0 {
			c.logger.Info("price control progress",
				slog.String("job_id", jobID),
				slog.Int("done", i+1),
				slog.Int("total", result.Total),
			)
		}
		if i+1 < len(items) {
			time.Sleep(c.delay)
		}
	}

	c.reporting.Add(1)
	go c.report(jobID, items, result)

	return result, nil
}

// report renders the CSV and emits the notification off the job's critical
// path. Failures here are logged and never reach the caller.
func (c *PriceControl) report(jobID string, items []jobs.PriceUpdateItem, result *PriceResult) {
	defer c.reporting.Done()

	path, err := c.reports.WritePriceReport(jobID, items)
	if err != nil {
		c.logger.Error("failed to write price report",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return
	}

	payload := map[string]any{
		"jobId":   jobID,
		"report":  path,
		"total":   result.Total,
		"success": result.Success,
		"failed":  result.Failed,
	}
	if err := c.notifier.Emit(context.Background(), c.channel, "price-control-finished", payload); err != nil {
		c.logger.Error("failed to emit price report notification",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// Wait blocks until any in-flight report goroutine finishes
func (c *PriceControl) Wait() {
	c.reporting.Wait()
}
