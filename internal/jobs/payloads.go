package jobs

// Courier identifies the delivery company and tracking number attached to
// an order.
type Courier struct {
	Name           string `json:"name"`
	TrackingNumber string `json:"trackingNumber"`
}

// Receiver holds the two text fields used to locate an order row in the
// delivery console by containment match.
type Receiver struct {
	Name       string `json:"name"`
	SafeNumber string `json:"safeNumber"`
}

// InvoiceOrder is one order in an invoice-upload payload. ShipmentBoxID is
// optional; orders that carry one can fall back to the open API invoice
// endpoint when the console cannot locate their row.
type InvoiceOrder struct {
	OrderID       string   `json:"orderId"`
	ShipmentBoxID int64    `json:"shipmentBoxId,omitempty"`
	Courier       Courier  `json:"courier"`
	Receiver      Receiver `json:"receiver"`
}

// InvoiceUploadData is the data blob of an invoice-upload job.
type InvoiceUploadData struct {
	Orders []InvoiceOrder `json:"orders"`
}

// PriceUpdateItem is one pending price change produced by an external
// pricing decision and applied by the price-control orchestrator. Status is
// filled in during the control loop and retained for reporting.
type PriceUpdateItem struct {
	VendorItemID int64  `json:"vendorItemId" db:"vendor_item_id"`
	NewPrice     int64  `json:"newPrice" db:"new_price"`
	CurrentPrice int64  `json:"currentPrice" db:"current_price"`
	WinnerPrice  int64  `json:"winnerPrice" db:"winner_price"`
	SellerPrice  int64  `json:"sellerPrice" db:"seller_price"`
	JobID        string `json:"jobId" db:"job_id"`
	Status       string `json:"status,omitempty" db:"status"`
}

// SaveUpdateItemsData is the data blob of a save-update-items job.
type SaveUpdateItemsData struct {
	Items []PriceUpdateItem `json:"items"`
}

// ProductRef points at one seller product for single-product operations
// (product-detail, delete-products, shipping-cost-control).
type ProductRef struct {
	SellerProductID int64 `json:"sellerProductId"`
}

// ProductRefsData is the data blob of jobs that operate on a product list.
type ProductRefsData struct {
	Products []ProductRef `json:"products"`
}

// VendorItemsData is the data blob of jobs that operate on vendor items
// (stop-sale).
type VendorItemsData struct {
	VendorItemIDs []int64 `json:"vendorItemIds"`
}

// AcknowledgeOrderData is the data blob of an acknowledge-order job. When no
// shipment box ids are given, a created-at window discovers them from the
// ordersheet listing instead.
type AcknowledgeOrderData struct {
	ShipmentBoxIDs []int64 `json:"shipmentBoxIds,omitempty"`
	CreatedAtFrom  string  `json:"createdAtFrom,omitempty"`
	CreatedAtTo    string  `json:"createdAtTo,omitempty"`
}
