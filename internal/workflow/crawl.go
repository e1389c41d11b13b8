package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daechan-jo/auto-store-services-coupang/internal/browser"
)

// ProductSink persists one crawled page of inventory rows. The detail crawl
// and the price-comparison crawl share the machine and differ only in sink.
type ProductSink interface {
	SavePage(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error
}

type crawlState int

const (
	crawlOpen crawlState = iota
	crawlScroll
	crawlExtract
	crawlPersist
	crawlDone
)

// CrawlResult reports the page and row totals of a finished crawl.
type CrawlResult struct {
	Pages    int `json:"pages"`
	Products int `json:"products"`
}

// DetailCrawl walks the inventory listing page by page, scrolling each page
// to force lazy rows to render, and hands every page to the sink. An empty
// page terminates the walk.
type DetailCrawl struct {
	console InventoryConsole
	sink    ProductSink
	store   string
	jobID   string
	logger  *slog.Logger

	state    crawlState
	page     int
	products []browser.ProductSnapshot
	result   CrawlResult
}

func NewDetailCrawl(console InventoryConsole, sink ProductSink, store, jobID string, logger *slog.Logger) *DetailCrawl {
	return &DetailCrawl{
		console: console,
		sink:    sink,
		store:   store,
		jobID:   jobID,
		logger:  logger,
		state:   crawlOpen,
		page:    1,
	}
}

func (w *DetailCrawl) Run(ctx context.Context) (*CrawlResult, error) {
	for w.state != crawlDone {
		next, err := w.step(ctx)
		if err != nil {
			return nil, err
		}
		w.state = next
	}
	w.logger.Info("crawl finished", "pages", w.result.Pages, "products", w.result.Products)
	return &w.result, nil
}

func (w *DetailCrawl) step(ctx context.Context) (crawlState, error) {
	switch w.state {
	case crawlOpen:
		if err := w.console.OpenInventoryPage(ctx, w.page); err != nil {
			return w.state, fmt.Errorf("open inventory page %d: %w", w.page, err)
		}
		return crawlScroll, nil

	case crawlScroll:
		if err := w.console.ScrollToBottom(ctx); err != nil {
			return w.state, fmt.Errorf("scroll page %d: %w", w.page, err)
		}
		return crawlExtract, nil

	case crawlExtract:
		products, err := w.console.ExtractProducts(ctx)
		if err != nil {
			return w.state, fmt.Errorf("extract page %d: %w", w.page, err)
		}
		if len(products) == 0 {
			return crawlDone, nil
		}
		w.products = products
		return crawlPersist, nil

	case crawlPersist:
		if err := w.sink.SavePage(ctx, w.store, w.jobID, w.products); err != nil {
			return w.state, fmt.Errorf("persist page %d: %w", w.page, err)
		}
		w.result.Pages++
		w.result.Products += len(w.products)
		w.products = nil
		w.page++
		return crawlOpen, nil

	default:
		return w.state, fmt.Errorf("invalid state %d", w.state)
	}
}
