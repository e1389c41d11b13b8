package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// ReturnChargeUpdater applies return-charge mutations; satisfied by
// *coupang.Client.
type ReturnChargeUpdater interface {
	UpdateReturnCharge(ctx context.Context, sellerProductID, charge int64) error
}

// ShippingResult is the aggregate outcome of one shipping-cost run
type ShippingResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ShippingCostControl sets the configured return charge on every product in
// the payload, pacing the API calls with a fixed pause.
type ShippingCostControl struct {
	updater ReturnChargeUpdater
	charge  int64
	delay   time.Duration
	logger  *slog.Logger
}

func NewShippingCostControl(updater ReturnChargeUpdater, charge int64, delay time.Duration, logger *slog.Logger) *ShippingCostControl {
	return &ShippingCostControl{
		updater: updater,
		charge:  charge,
		delay:   delay,
		logger:  logger,
	}
}

// Run applies the charge per product. Per-item failures are counted, not
// propagated.
func (c *ShippingCostControl) Run(ctx context.Context, products []jobs.ProductRef) (*ShippingResult, error) {
	result := &ShippingResult{Total: len(products)}
	if len(products) == 0 {
		return result, nil
	}

	for i, product := range products {
		if err := c.updater.UpdateReturnCharge(ctx, product.SellerProductID, c.charge); err != nil {
			result.Failed++
			c.logger.Warn("return charge update failed",
				slog.Int64("seller_product_id", product.SellerProductID),
				slog.Any("error", err),
			)
		} else {
			result.Success++
		}
		if i+1 < len(products) {
			time.Sleep(c.delay)
		}
	}

	c.logger.Info("shipping cost control finished",
		slog.Int("total", result.Total),
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
