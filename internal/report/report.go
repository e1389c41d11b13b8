// Package report renders price-control worklists to timestamped CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

var header = []string{
	"vendor_item_id",
	"current_price",
	"new_price",
	"winner_price",
	"seller_price",
	"status",
}

// Writer renders worklists under a fixed report directory
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// WritePriceReport renders one row per worklist item and returns the path of
// the created file. The directory is created on demand.
func (w *Writer) WritePriceReport(jobID string, items []jobs.PriceUpdateItem) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	name := fmt.Sprintf("price-report-%s-%s.csv", jobID, w.now().Format("20060102-150405"))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("failed to write report header: %w", err)
	}
	for _, item := range items {
		record := []string{
			strconv.FormatInt(item.VendorItemID, 10),
			strconv.FormatInt(item.CurrentPrice, 10),
			strconv.FormatInt(item.NewPrice, 10),
			strconv.FormatInt(item.WinnerPrice, 10),
			strconv.FormatInt(item.SellerPrice, 10),
			item.Status,
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("failed to write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush report: %w", err)
	}

	return path, nil
}
