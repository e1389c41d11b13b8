// Package workflow holds the browser-driven procedures as explicit state
// machines. Each workflow depends on a narrow semantic console interface,
// satisfied by *browser.WingPage, so the machines are unit-testable without
// a real browser and survive admin-console UI changes.
package workflow

import (
	"context"

	"github.com/daechan-jo/auto-store-services-coupang/internal/browser"
)

// OrderConsole is the order-management surface used by OrderConfirm
type OrderConsole interface {
	OpenOrderManager(ctx context.Context) error
	SelectPaymentCompleteRows(ctx context.Context) (int, error)
	OpenConfirmDialog(ctx context.Context) error
	ChooseCourier(ctx context.Context, courier string) error
	FillConfirmNote(ctx context.Context, note string) error
	SubmitConfirmDialog(ctx context.Context) error
}

// DeliveryConsole is the processing-orders surface used by InvoiceUpload
type DeliveryConsole interface {
	OpenDeliveryManager(ctx context.Context) error
	FirstPage(ctx context.Context) error
	LocateOrderRow(ctx context.Context, receiverName, safeNumber string) (bool, error)
	SelectLocatedRow(ctx context.Context) error
	ChooseRowCourier(ctx context.Context, courier string) error
	FillTrackingNumber(ctx context.Context, trackingNumber string) error
	ApplyInvoice(ctx context.Context) error
	ReloadTable(ctx context.Context) error
	NextPage(ctx context.Context) (bool, error)
}

// InventoryConsole is the listing surface used by DetailCrawl
type InventoryConsole interface {
	OpenInventoryPage(ctx context.Context, page int) error
	ScrollToBottom(ctx context.Context) error
	ExtractProducts(ctx context.Context) ([]browser.ProductSnapshot, error)
}

// ComplianceConsole is the filtered listing surface used by Purge
type ComplianceConsole interface {
	OpenNonConformingView(ctx context.Context) (bool, error)
	ExtractProductCodes(ctx context.Context) ([]string, error)
}
