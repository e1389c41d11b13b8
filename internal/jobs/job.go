package jobs

import "encoding/json"

// Recognized job patterns. Each pattern names exactly one operation the
// agent can execute.
const (
	PatternOrderStatusUpdate    = "order-status-update"
	PatternInvoiceUpload        = "invoice-upload"
	PatternDetailCrawl          = "detail-crawl"
	PatternPriceComparisonCrawl = "price-comparison-crawl"
	PatternNonConformingPurge   = "non-conforming-purge"
	PatternListProducts         = "list-products"
	PatternProductDetail        = "product-detail"
	PatternStopSale             = "stop-sale"
	PatternDeleteProducts       = "delete-products"
	PatternPriceControl         = "price-control"
	PatternShippingCostControl  = "shipping-cost-control"
	PatternClearComparisonData  = "clear-comparison-data"
	PatternSaveUpdateItems      = "save-update-items"
	PatternGetComparisonCount   = "get-comparison-count"
	PatternAcknowledgeOrder     = "acknowledge-order"
)

// Result status values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Message is the wire form of an inbound job: {pattern, payload}.
type Message struct {
	Pattern string  `json:"pattern"`
	Payload Payload `json:"payload"`
}

// Payload carries job identity plus the operation-specific data blob.
type Payload struct {
	JobID   string          `json:"jobId"`
	JobType string          `json:"jobType"`
	Store   string          `json:"store,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Descriptor identifies exactly one operation invocation. It is immutable
// once dispatched.
type Descriptor struct {
	Pattern string
	JobID   string
	JobType string
	Store   string
	Data    json.RawMessage
}

// Descriptor flattens the wire message into a dispatchable descriptor.
func (m Message) Descriptor() Descriptor {
	return Descriptor{
		Pattern: m.Pattern,
		JobID:   m.Payload.JobID,
		JobType: m.Payload.JobType,
		Store:   m.Payload.Store,
		Data:    m.Payload.Data,
	}
}

// Queue returns the logical queue this descriptor serializes on. Jobs for
// one store never run concurrently; distinct stores may.
func (d Descriptor) Queue() string {
	return d.Store
}

// Result is the outbound envelope returned to callers for every dispatched
// job: {status: "success", data?} or {status: "error", message}.
type Result struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ItemResult is the per-item outcome of a batch operation. Batch operations
// return one entry per input item, in input order.
type ItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
