package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

type invoiceState int

const (
	invoiceFirstPage invoiceState = iota
	invoiceSearch
	invoiceSelect
	invoiceSetCourier
	invoiceSetTracking
	invoiceApply
	invoiceReload
	invoiceNextPage
	invoiceOrderDone
	invoiceOrderFailed
)

// InvoiceUpload attaches a courier and tracking number to each processing
// order on the delivery manager, paging through the table until the receiver
// is found. Orders are processed sequentially and their outcomes are
// independent.
type InvoiceUpload struct {
	console DeliveryConsole
	logger  *slog.Logger
}

func NewInvoiceUpload(console DeliveryConsole, logger *slog.Logger) *InvoiceUpload {
	return &InvoiceUpload{console: console, logger: logger}
}

// Run returns one result per input order, in input order. A failed order
// never aborts the remaining orders: an unlocated receiver and a console
// fault both become that order's result entry. Only a failure to open the
// delivery manager, or context cancellation, ends the batch early.
func (w *InvoiceUpload) Run(ctx context.Context, orders []jobs.InvoiceOrder) ([]jobs.ItemResult, error) {
	if err := w.console.OpenDeliveryManager(ctx); err != nil {
		return nil, fmt.Errorf("open delivery manager: %w", err)
	}

	results := make([]jobs.ItemResult, 0, len(orders))
	for _, order := range orders {
		result, err := w.processOrder(ctx, order)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			w.logger.Error("invoice step failed", "order_id", order.OrderID, "error", err)
			result = jobs.ItemResult{ID: order.OrderID, Status: jobs.StatusError, Error: err.Error()}
		}
		results = append(results, result)
	}
	return results, nil
}

func (w *InvoiceUpload) processOrder(ctx context.Context, order jobs.InvoiceOrder) (jobs.ItemResult, error) {
	state := invoiceFirstPage
	for {
		switch state {
		// every order searches from the first page; the previous order may
		// have left the table paged to the end
		case invoiceFirstPage:
			if err := w.console.FirstPage(ctx); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("return to first page: %w", err)
			}
			state = invoiceSearch

		case invoiceSearch:
			found, err := w.console.LocateOrderRow(ctx, order.Receiver.Name, order.Receiver.SafeNumber)
			if err != nil {
				return jobs.ItemResult{}, fmt.Errorf("locate order %s: %w", order.OrderID, err)
			}
			if found {
				state = invoiceSelect
			} else {
				state = invoiceNextPage
			}

		case invoiceNextPage:
			moved, err := w.console.NextPage(ctx)
			if err != nil {
				return jobs.ItemResult{}, fmt.Errorf("next page: %w", err)
			}
			if moved {
				state = invoiceSearch
			} else {
				state = invoiceOrderFailed
			}

		case invoiceSelect:
			if err := w.console.SelectLocatedRow(ctx); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("select row for %s: %w", order.OrderID, err)
			}
			state = invoiceSetCourier

		case invoiceSetCourier:
			if err := w.console.ChooseRowCourier(ctx, order.Courier.Name); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("choose courier for %s: %w", order.OrderID, err)
			}
			state = invoiceSetTracking

		case invoiceSetTracking:
			if err := w.console.FillTrackingNumber(ctx, order.Courier.TrackingNumber); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("fill tracking for %s: %w", order.OrderID, err)
			}
			state = invoiceApply

		case invoiceApply:
			if err := w.console.ApplyInvoice(ctx); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("apply invoice for %s: %w", order.OrderID, err)
			}
			state = invoiceReload

		case invoiceReload:
			if err := w.console.ReloadTable(ctx); err != nil {
				return jobs.ItemResult{}, fmt.Errorf("reload table: %w", err)
			}
			state = invoiceOrderDone

		case invoiceOrderDone:
			w.logger.Info("invoice applied", "order_id", order.OrderID, "tracking", order.Courier.TrackingNumber)
			return jobs.ItemResult{ID: order.OrderID, Status: jobs.StatusSuccess}, nil

		case invoiceOrderFailed:
			w.logger.Warn("order not found on delivery manager", "order_id", order.OrderID, "receiver", order.Receiver.Name)
			return jobs.ItemResult{ID: order.OrderID, Status: jobs.StatusFailed, Error: "not found"}, nil
		}
	}
}
