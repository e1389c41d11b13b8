package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/daechan-jo/auto-store-services-coupang/internal/coupang"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// ProductCatalog is the open API surface Purge needs. Satisfied by
// *coupang.Client.
type ProductCatalog interface {
	ListProducts(ctx context.Context, jobID, jobType string) ([]coupang.MarketplaceProduct, error)
	StopSale(ctx context.Context, vendorItemID int64) error
	DeleteProduct(ctx context.Context, sellerProductID int64) error
}

// PurgeMatch is one catalog product whose name contained a flagged code.
type PurgeMatch struct {
	SellerProductID   int64  `json:"sellerProductId"`
	SellerProductName string `json:"sellerProductName"`
	Code              string `json:"code"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
}

// Purge pulls the non-conforming product codes off the admin console once,
// releases the browser, then works against the open API: every catalog
// product whose name contains a flagged code is stopped and deleted.
type Purge struct {
	console ComplianceConsole
	catalog ProductCatalog
	jobID   string
	logger  *slog.Logger
}

func NewPurge(console ComplianceConsole, catalog ProductCatalog, jobID string, logger *slog.Logger) *Purge {
	return &Purge{console: console, catalog: catalog, jobID: jobID, logger: logger}
}

// Run takes ownership of releasing the browser session: release runs as soon
// as the scrape is done so the long API phase never holds a browser. It must
// be safe to call more than once.
func (w *Purge) Run(ctx context.Context, release func()) ([]PurgeMatch, error) {
	present, err := w.console.OpenNonConformingView(ctx)
	if err != nil {
		return nil, fmt.Errorf("open non-conforming view: %w", err)
	}
	if !present {
		release()
		w.logger.Info("no non-conforming section, nothing to purge")
		return []PurgeMatch{}, nil
	}

	codes, err := w.console.ExtractProductCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract product codes: %w", err)
	}
	release()

	if len(codes) == 0 {
		return []PurgeMatch{}, nil
	}

	products, err := w.catalog.ListProducts(ctx, w.jobID, jobs.PatternNonConformingPurge)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	matches := make([]PurgeMatch, 0)
	for _, product := range products {
		code, ok := matchCode(product.SellerProductName, codes)
		if !ok {
			continue
		}
		match := PurgeMatch{
			SellerProductID:   product.SellerProductID,
			SellerProductName: product.SellerProductName,
			Code:              code,
			Status:            jobs.StatusSuccess,
		}
		w.removeProduct(ctx, product, &match)
		matches = append(matches, match)
	}
	w.logger.Info("purge finished", "codes", len(codes), "matched", len(matches))
	return matches, nil
}

// removeProduct stops sale on every vendor item, then deletes the product.
// Stop-sale failures are logged and swallowed; a delete failure marks the
// match failed without aborting the rest of the batch.
func (w *Purge) removeProduct(ctx context.Context, product coupang.MarketplaceProduct, match *PurgeMatch) {
	for _, item := range product.Items {
		if err := w.catalog.StopSale(ctx, item.VendorItemID); err != nil {
			w.logger.Warn("stop sale failed",
				"seller_product_id", product.SellerProductID,
				"vendor_item_id", item.VendorItemID,
				"error", err)
		}
	}
	if err := w.catalog.DeleteProduct(ctx, product.SellerProductID); err != nil {
		w.logger.Error("delete product failed",
			"seller_product_id", product.SellerProductID,
			"error", err)
		match.Status = jobs.StatusFailed
		match.Error = err.Error()
	}
}

func matchCode(name string, codes []string) (string, bool) {
	for _, code := range codes {
		if code == "" {
			continue
		}
		if strings.Contains(name, code) {
			return code, true
		}
	}
	return "", false
}
