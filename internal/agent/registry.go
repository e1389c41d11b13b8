// Package agent runs the job side of the system: it consumes job messages
// from RabbitMQ and maps every known pattern onto a workflow, orchestrator,
// API call, or storage operation.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/daechan-jo/auto-store-services-coupang/internal/browser"
	"github.com/daechan-jo/auto-store-services-coupang/internal/control"
	"github.com/daechan-jo/auto-store-services-coupang/internal/coupang"
	"github.com/daechan-jo/auto-store-services-coupang/internal/dispatch"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
	"github.com/daechan-jo/auto-store-services-coupang/internal/workflow"
)

// Console is the full semantic surface of one WING page. *browser.WingPage
// satisfies it.
type Console interface {
	workflow.OrderConsole
	workflow.DeliveryConsole
	workflow.InventoryConsole
	workflow.ComplianceConsole
}

// Session is one held browser session. Release must be idempotent.
type Session interface {
	Console() Console
	Release()
}

// SessionSource hands out browser sessions keyed by store/job/variant.
type SessionSource interface {
	Acquire(ctx context.Context, key browser.SessionKey) (Session, error)
}

// MarketplaceAPI is the slice of the open API client the registry drives.
type MarketplaceAPI interface {
	ListProducts(ctx context.Context, jobID, jobType string) ([]coupang.MarketplaceProduct, error)
	ListOrderSheets(ctx context.Context, jobID, createdAtFrom, createdAtTo, status string) ([]coupang.OrderSheet, error)
	ProductDetail(ctx context.Context, sellerProductID int64) (*coupang.MarketplaceProduct, error)
	StopSale(ctx context.Context, vendorItemID int64) error
	DeleteProduct(ctx context.Context, sellerProductID int64) error
	AcknowledgeOrders(ctx context.Context, shipmentBoxIDs []int64) error
	SubmitInvoices(ctx context.Context, invoices []coupang.InvoiceSubmission) error
}

// DataStore is the persistence surface the registry drives.
type DataStore interface {
	SaveComparisonProducts(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error
	SaveInventoryProducts(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error
	DeleteComparisonProducts(ctx context.Context, store string) (int64, error)
	CountComparisonProducts(ctx context.Context, store string) (int64, error)
	SaveUpdateItems(ctx context.Context, items []jobs.PriceUpdateItem) error
}

// PriceRunner runs the price-control orchestrator for one job.
type PriceRunner interface {
	Run(ctx context.Context, jobID string) (*control.PriceResult, error)
}

// ShippingRunner runs the shipping-cost orchestrator over a product list.
type ShippingRunner interface {
	Run(ctx context.Context, products []jobs.ProductRef) (*control.ShippingResult, error)
}

// Registry binds every job pattern to its handler.
type Registry struct {
	sessions SessionSource
	api      MarketplaceAPI
	store    DataStore
	price    PriceRunner
	shipping ShippingRunner

	courier     string
	confirmNote string
	logger      *slog.Logger
}

func NewRegistry(sessions SessionSource, api MarketplaceAPI, store DataStore, price PriceRunner, shipping ShippingRunner, courier, confirmNote string, logger *slog.Logger) *Registry {
	return &Registry{
		sessions:    sessions,
		api:         api,
		store:       store,
		price:       price,
		shipping:    shipping,
		courier:     courier,
		confirmNote: confirmNote,
		logger:      logger,
	}
}

// Install registers every pattern on the dispatcher.
func (r *Registry) Install(d *dispatch.Dispatcher) {
	d.Register(jobs.PatternOrderStatusUpdate, r.handleOrderConfirm)
	d.Register(jobs.PatternInvoiceUpload, r.handleInvoiceUpload)
	d.Register(jobs.PatternDetailCrawl, r.handleDetailCrawl)
	d.Register(jobs.PatternPriceComparisonCrawl, r.handleComparisonCrawl)
	d.Register(jobs.PatternNonConformingPurge, r.handlePurge)
	d.Register(jobs.PatternListProducts, r.handleListProducts)
	d.Register(jobs.PatternProductDetail, r.handleProductDetail)
	d.Register(jobs.PatternStopSale, r.handleStopSale)
	d.Register(jobs.PatternDeleteProducts, r.handleDeleteProducts)
	d.Register(jobs.PatternPriceControl, r.handlePriceControl)
	d.Register(jobs.PatternShippingCostControl, r.handleShippingCostControl)
	d.Register(jobs.PatternClearComparisonData, r.handleClearComparisonData)
	d.Register(jobs.PatternSaveUpdateItems, r.handleSaveUpdateItems)
	d.Register(jobs.PatternGetComparisonCount, r.handleGetComparisonCount)
	d.Register(jobs.PatternAcknowledgeOrder, r.handleAcknowledgeOrder)
}

func decode[T any](data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 {
		return out, fmt.Errorf("missing payload data")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode payload data: %w", err)
	}
	return out, nil
}

func success(data any) jobs.Result {
	return jobs.Result{Status: jobs.StatusSuccess, Data: data}
}

// --- browser-driven patterns ---

func (r *Registry) handleOrderConfirm(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	session, err := r.sessions.Acquire(ctx, browser.SessionKey{Store: job.Store, JobID: job.JobID})
	if err != nil {
		return jobs.Result{}, err
	}
	defer session.Release()

	w := workflow.NewOrderConfirm(session.Console(), r.courier, r.confirmNote, r.logger)
	result, err := w.Run(ctx)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(result), nil
}

func (r *Registry) handleInvoiceUpload(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.InvoiceUploadData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}

	session, err := r.sessions.Acquire(ctx, browser.SessionKey{Store: job.Store, JobID: job.JobID})
	if err != nil {
		return jobs.Result{}, err
	}
	defer session.Release()

	w := workflow.NewInvoiceUpload(session.Console(), r.logger)
	results, err := w.Run(ctx, data.Orders)
	if err != nil {
		return jobs.Result{}, err
	}

	// browser work is done; the API retry phase must not hold the session
	session.Release()
	results = r.retryUnlocatedOverAPI(ctx, data.Orders, results)
	return success(results), nil
}

// retryUnlocatedOverAPI resubmits orders the console could not locate
// through the open API invoice endpoint. Only orders carrying a shipment box
// id and a numeric order id have enough identity for the API path; the rest
// keep their not-found result.
func (r *Registry) retryUnlocatedOverAPI(ctx context.Context, orders []jobs.InvoiceOrder, results []jobs.ItemResult) []jobs.ItemResult {
	for i, result := range results {
		if result.Status != jobs.StatusFailed || result.Error != "not found" {
			continue
		}

		order := orders[i]
		if order.ShipmentBoxID == 0 {
			continue
		}
		orderID, err := strconv.ParseInt(order.OrderID, 10, 64)
		if err != nil {
			continue
		}

		submission := coupang.InvoiceSubmission{
			ShipmentBoxID:   order.ShipmentBoxID,
			OrderID:         orderID,
			DeliveryCompany: order.Courier.Name,
			InvoiceNumber:   order.Courier.TrackingNumber,
		}
		if err := r.api.SubmitInvoices(ctx, []coupang.InvoiceSubmission{submission}); err != nil {
			r.logger.Warn("API invoice submission failed",
				slog.String("order_id", order.OrderID),
				slog.Any("error", err),
			)
			results[i].Error = err.Error()
			continue
		}

		r.logger.Info("Invoice submitted over API after console miss",
			slog.String("order_id", order.OrderID),
		)
		results[i] = jobs.ItemResult{ID: order.OrderID, Status: jobs.StatusSuccess}
	}
	return results
}

func (r *Registry) handleDetailCrawl(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	return r.runCrawl(ctx, job, "", sinkFunc(r.store.SaveInventoryProducts))
}

func (r *Registry) handleComparisonCrawl(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	return r.runCrawl(ctx, job, "comparison", sinkFunc(r.store.SaveComparisonProducts))
}

// sinkFunc adapts a storage save-many method to the crawl sink.
type sinkFunc func(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error

func (f sinkFunc) SavePage(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error {
	return f(ctx, store, jobID, products)
}

func (r *Registry) runCrawl(ctx context.Context, job jobs.Descriptor, variant string, sink workflow.ProductSink) (jobs.Result, error) {
	session, err := r.sessions.Acquire(ctx, browser.SessionKey{Store: job.Store, JobID: job.JobID, Variant: variant})
	if err != nil {
		return jobs.Result{}, err
	}
	defer session.Release()

	w := workflow.NewDetailCrawl(session.Console(), sink, job.Store, job.JobID, r.logger)
	result, err := w.Run(ctx)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(result), nil
}

func (r *Registry) handlePurge(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	session, err := r.sessions.Acquire(ctx, browser.SessionKey{Store: job.Store, JobID: job.JobID})
	if err != nil {
		return jobs.Result{}, err
	}
	// the workflow releases the session as soon as the scrape is done;
	// Release is idempotent so this defer only covers early error paths
	defer session.Release()

	w := workflow.NewPurge(session.Console(), r.api, job.JobID, r.logger)
	matches, err := w.Run(ctx, session.Release)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(matches), nil
}

// --- API patterns ---

func (r *Registry) handleListProducts(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	products, err := r.api.ListProducts(ctx, job.JobID, job.JobType)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(products), nil
}

func (r *Registry) handleProductDetail(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	ref, err := decode[jobs.ProductRef](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}
	product, err := r.api.ProductDetail(ctx, ref.SellerProductID)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(product), nil
}

func (r *Registry) handleStopSale(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.VendorItemsData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}

	results := make([]jobs.ItemResult, 0, len(data.VendorItemIDs))
	for _, id := range data.VendorItemIDs {
		result := jobs.ItemResult{ID: fmt.Sprintf("%d", id), Status: jobs.StatusSuccess}
		if err := r.api.StopSale(ctx, id); err != nil {
			result.Status = jobs.StatusFailed
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return success(results), nil
}

func (r *Registry) handleDeleteProducts(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.ProductRefsData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}

	results := make([]jobs.ItemResult, 0, len(data.Products))
	for _, ref := range data.Products {
		result := jobs.ItemResult{ID: fmt.Sprintf("%d", ref.SellerProductID), Status: jobs.StatusSuccess}
		if err := r.api.DeleteProduct(ctx, ref.SellerProductID); err != nil {
			result.Status = jobs.StatusFailed
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return success(results), nil
}

// ordersheet status of orders paid for but not yet confirmed
const statusPaymentComplete = "ACCEPT"

func (r *Registry) handleAcknowledgeOrder(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.AcknowledgeOrderData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}

	boxIDs := data.ShipmentBoxIDs
	if len(boxIDs) == 0 && data.CreatedAtFrom != "" {
		sheets, err := r.api.ListOrderSheets(ctx, job.JobID, data.CreatedAtFrom, data.CreatedAtTo, statusPaymentComplete)
		if err != nil {
			return jobs.Result{}, err
		}
		for _, sheet := range sheets {
			boxIDs = append(boxIDs, sheet.ShipmentBoxID)
		}
	}
	if len(boxIDs) == 0 {
		return success(map[string]int{"acknowledged": 0}), nil
	}

	if err := r.api.AcknowledgeOrders(ctx, boxIDs); err != nil {
		return jobs.Result{}, err
	}
	return success(map[string]int{"acknowledged": len(boxIDs)}), nil
}

// --- orchestrator patterns ---

func (r *Registry) handlePriceControl(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	result, err := r.price.Run(ctx, job.JobID)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(result), nil
}

func (r *Registry) handleShippingCostControl(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.ProductRefsData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}
	result, err := r.shipping.Run(ctx, data.Products)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(result), nil
}

// --- storage patterns ---

func (r *Registry) handleClearComparisonData(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	deleted, err := r.store.DeleteComparisonProducts(ctx, job.Store)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(map[string]int64{"deleted": deleted}), nil
}

func (r *Registry) handleSaveUpdateItems(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	data, err := decode[jobs.SaveUpdateItemsData](job.Data)
	if err != nil {
		return jobs.Result{}, err
	}
	for i := range data.Items {
		data.Items[i].JobID = job.JobID
	}
	if err := r.store.SaveUpdateItems(ctx, data.Items); err != nil {
		return jobs.Result{}, err
	}
	return success(map[string]int{"saved": len(data.Items)}), nil
}

func (r *Registry) handleGetComparisonCount(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
	count, err := r.store.CountComparisonProducts(ctx, job.Store)
	if err != nil {
		return jobs.Result{}, err
	}
	return success(map[string]int64{"count": count}), nil
}

// ManagerSource adapts *browser.Manager to SessionSource.
type ManagerSource struct {
	Manager *browser.Manager
}

func (s ManagerSource) Acquire(ctx context.Context, key browser.SessionKey) (Session, error) {
	session, err := s.Manager.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return managerSession{session}, nil
}

type managerSession struct {
	session *browser.Session
}

func (s managerSession) Console() Console { return s.session.Page() }
func (s managerSession) Release()         { s.session.Release() }
