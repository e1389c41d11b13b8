package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ProductSnapshot is one listing row extracted from the WING inventory
// table. ProductCode is the first whitespace-delimited token of the title.
type ProductSnapshot struct {
	SellerProductID int64
	ProductCode     string
	Winner          bool
	Price           int64
	ShippingCost    int64
}

// WingPage is the chromedp-backed page handle for the WING admin console.
// All selectors and page JS live here; workflows depend only on the
// semantic operations.
type WingPage struct {
	ctx    context.Context
	cfg    Config
	logger *slog.Logger

	// row index located by the last LocateOrderRow call, -1 when none
	locatedRow int
}

// NewWingPage wraps a chromedp browser context
func NewWingPage(ctx context.Context, cfg Config, logger *slog.Logger) *WingPage {
	return &WingPage{
		ctx:        ctx,
		cfg:        cfg,
		logger:     logger,
		locatedRow: -1,
	}
}

// run executes chromedp actions against the page with the per-step wait
// budget applied.
func (w *WingPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(w.ctx, w.cfg.SelectorWait)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// Login runs the WING login flow: navigate, fill credentials, submit, wait
// for the post-login marker.
func (w *WingPage) Login(ctx context.Context) error {
	err := w.run(ctx,
		chromedp.Navigate(w.cfg.LoginURL),
		chromedp.WaitVisible(`#username`, chromedp.ByID),
		chromedp.SendKeys(`#username`, w.cfg.Username, chromedp.ByID),
		chromedp.SendKeys(`#password`, w.cfg.Password, chromedp.ByID),
		chromedp.Click(`#kc-login`, chromedp.ByID),
		chromedp.WaitVisible(`#wing-header .seller-info`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login flow failed: %w", err)
	}
	return nil
}

// ---- order manager -------------------------------------------------------

// OpenOrderManager navigates to the order-management view
func (w *WingPage) OpenOrderManager(ctx context.Context) error {
	err := w.run(ctx,
		chromedp.Navigate(w.cfg.BaseURL+"/order/order-management"),
		chromedp.WaitVisible(`#order-table`, chromedp.ByID),
	)
	if err != nil {
		return fmt.Errorf("failed to open order manager: %w", err)
	}
	return nil
}

// SelectPaymentCompleteRows clears any disabled flag on the
// payment-complete row checkboxes and selects them all, returning how many
// were selected. Zero is not an error.
func (w *WingPage) SelectPaymentCompleteRows(ctx context.Context) (int, error) {
	const js = `(() => {
		const boxes = Array.from(document.querySelectorAll('#order-table tr[data-status="PAYMENT_COMPLETE"] input[type="checkbox"]'));
		boxes.forEach(b => { b.disabled = false; b.checked = true; b.dispatchEvent(new Event('change', {bubbles: true})); });
		return boxes.length;
	})()`

	var count int
	if err := w.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return 0, fmt.Errorf("failed to select payment-complete rows: %w", err)
	}
	return count, nil
}

// OpenConfirmDialog clicks the confirm action and waits for its dialog
func (w *WingPage) OpenConfirmDialog(ctx context.Context) error {
	err := w.run(ctx,
		chromedp.Click(`#btn-order-confirm`, chromedp.ByID),
		chromedp.WaitVisible(`#order-confirm-dialog`, chromedp.ByID),
	)
	if err != nil {
		return fmt.Errorf("failed to open confirm dialog: %w", err)
	}
	return nil
}

// ChooseCourier selects the courier option in the confirm dialog
func (w *WingPage) ChooseCourier(ctx context.Context, courier string) error {
	err := w.run(ctx,
		chromedp.SetValue(`#order-confirm-dialog select[name="deliveryCompany"]`, courier, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to choose courier: %w", err)
	}
	return nil
}

// FillConfirmNote fills the free-text justification in the confirm dialog
func (w *WingPage) FillConfirmNote(ctx context.Context, note string) error {
	err := w.run(ctx,
		chromedp.SendKeys(`#order-confirm-dialog textarea[name="confirmNote"]`, note, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill confirm note: %w", err)
	}
	return nil
}

// SubmitConfirmDialog clicks the final submit control
func (w *WingPage) SubmitConfirmDialog(ctx context.Context) error {
	err := w.run(ctx,
		chromedp.Click(`#order-confirm-dialog .btn-submit`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to submit confirm dialog: %w", err)
	}
	return nil
}

// ---- delivery manager ----------------------------------------------------

// OpenDeliveryManager navigates to the processing-orders view
func (w *WingPage) OpenDeliveryManager(ctx context.Context) error {
	w.locatedRow = -1
	err := w.run(ctx,
		chromedp.Navigate(w.cfg.BaseURL+"/order/delivery-management?status=PROCESSING"),
		chromedp.WaitVisible(`#delivery-table`, chromedp.ByID),
	)
	if err != nil {
		return fmt.Errorf("failed to open delivery manager: %w", err)
	}
	return nil
}

// FirstPage returns the delivery table to its first page. A table without
// pagination, or one already on page one, is left as is.
func (w *WingPage) FirstPage(ctx context.Context) error {
	const js = `(() => {
		const items = document.querySelectorAll('.pagination li');
		if (items.length === 0 || items[0].classList.contains('active')) { return false; }
		const link = items[0].querySelector('a');
		if (!link) { return false; }
		link.click();
		return true;
	})()`

	var moved bool
	if err := w.run(ctx, chromedp.Evaluate(js, &moved)); err != nil {
		return fmt.Errorf("failed to return to first page: %w", err)
	}
	w.locatedRow = -1
	if !moved {
		return nil
	}

	if err := w.run(ctx, chromedp.WaitVisible(`#delivery-table`, chromedp.ByID)); err != nil {
		return fmt.Errorf("first page did not load: %w", err)
	}
	return nil
}

// LocateOrderRow scans the current table for a row whose text contains both
// the receiver name and the safe number. Absence is a control-flow signal,
// not an error.
func (w *WingPage) LocateOrderRow(ctx context.Context, receiverName, safeNumber string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const rows = Array.from(document.querySelectorAll('#delivery-table tbody tr'));
		return rows.findIndex(r => r.innerText.includes(%q) && r.innerText.includes(%q));
	})()`, receiverName, safeNumber)

	var index int
	if err := w.run(ctx, chromedp.Evaluate(js, &index)); err != nil {
		return false, fmt.Errorf("failed to scan delivery table: %w", err)
	}

	w.locatedRow = index
	return index >= 0, nil
}

// SelectLocatedRow selects the checkbox of the row found by the last
// LocateOrderRow call.
func (w *WingPage) SelectLocatedRow(ctx context.Context) error {
	if w.locatedRow < 0 {
		return fmt.Errorf("no located row to select")
	}

	js := fmt.Sprintf(`(() => {
		const row = document.querySelectorAll('#delivery-table tbody tr')[%d];
		const box = row.querySelector('input[type="checkbox"]');
		box.checked = true;
		box.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, w.locatedRow)

	var ok bool
	if err := w.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("failed to select located row: %w", err)
	}
	return nil
}

// ChooseRowCourier picks the courier option of the located row by exact
// trimmed text match. An absent option is a no-op.
func (w *WingPage) ChooseRowCourier(ctx context.Context, courier string) error {
	if w.locatedRow < 0 {
		return fmt.Errorf("no located row")
	}

	js := fmt.Sprintf(`(() => {
		const row = document.querySelectorAll('#delivery-table tbody tr')[%d];
		const select = row.querySelector('select.courier-select');
		const option = Array.from(select.options).find(o => o.textContent.trim() === %q);
		if (!option) { return false; }
		select.value = option.value;
		select.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, w.locatedRow, courier)

	var matched bool
	if err := w.run(ctx, chromedp.Evaluate(js, &matched)); err != nil {
		return fmt.Errorf("failed to choose row courier: %w", err)
	}
	if !matched {
		w.logger.Warn("Courier option not found in row dropdown",
			slog.String("courier", courier),
		)
	}
	return nil
}

// FillTrackingNumber opens the row's tracking-number editor and fills it
func (w *WingPage) FillTrackingNumber(ctx context.Context, trackingNumber string) error {
	if w.locatedRow < 0 {
		return fmt.Errorf("no located row")
	}

	js := fmt.Sprintf(`(() => {
		const row = document.querySelectorAll('#delivery-table tbody tr')[%d];
		row.querySelector('.btn-edit-invoice').click();
		const input = row.querySelector('input.invoice-number');
		input.value = %q;
		input.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, w.locatedRow, trackingNumber)

	var ok bool
	if err := w.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("failed to fill tracking number: %w", err)
	}
	return nil
}

// ApplyInvoice clicks the apply control for the pending invoice edits
func (w *WingPage) ApplyInvoice(ctx context.Context) error {
	err := w.run(ctx,
		chromedp.Click(`#btn-apply-invoice`, chromedp.ByID),
	)
	if err != nil {
		return fmt.Errorf("failed to apply invoice: %w", err)
	}
	return nil
}

// ReloadTable reloads the processing table after an apply
func (w *WingPage) ReloadTable(ctx context.Context) error {
	w.locatedRow = -1
	err := w.run(ctx,
		chromedp.Reload(),
		chromedp.WaitVisible(`#delivery-table`, chromedp.ByID),
	)
	if err != nil {
		return fmt.Errorf("failed to reload delivery table: %w", err)
	}
	return nil
}

// NextPage clicks the next page-index link if one exists. Returns false
// when the current page is the last one.
func (w *WingPage) NextPage(ctx context.Context) (bool, error) {
	const js = `(() => {
		const current = document.querySelector('.pagination .active');
		const next = current ? current.nextElementSibling : null;
		if (!next || !next.querySelector('a')) { return false; }
		next.querySelector('a').click();
		return true;
	})()`

	var advanced bool
	if err := w.run(ctx, chromedp.Evaluate(js, &advanced)); err != nil {
		return false, fmt.Errorf("failed to advance page: %w", err)
	}
	if !advanced {
		return false, nil
	}

	if err := w.run(ctx, chromedp.WaitVisible(`#delivery-table`, chromedp.ByID)); err != nil {
		return false, fmt.Errorf("next page did not load: %w", err)
	}
	w.locatedRow = -1
	return true, nil
}

// ---- inventory -----------------------------------------------------------

// OpenInventoryPage navigates to one page of the inventory listing
func (w *WingPage) OpenInventoryPage(ctx context.Context, page int) error {
	url := fmt.Sprintf("%s/inventory/management?page=%d", w.cfg.BaseURL, page)
	err := w.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to open inventory page %d: %w", page, err)
	}
	return nil
}

// ScrollToBottom performs a full-height incremental scroll with the
// configured step and delay so lazy rows render.
func (w *WingPage) ScrollToBottom(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var atBottom bool
		js := fmt.Sprintf(`(() => {
			window.scrollBy(0, %d);
			return window.scrollY + window.innerHeight >= document.body.scrollHeight;
		})()`, w.cfg.ScrollStep)

		if err := w.run(ctx, chromedp.Evaluate(js, &atBottom)); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if atBottom {
			return nil
		}

		select {
		case <-time.After(w.cfg.ScrollDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// inventoryRow is the raw shape extracted from the page before parsing
type inventoryRow struct {
	SellerProductID string `json:"sellerProductId"`
	Title           string `json:"title"`
	Winner          bool   `json:"winner"`
	Price           string `json:"price"`
	ShippingCost    string `json:"shippingCost"`
}

// ExtractProducts extracts one record per listing row on the current page.
// An empty page returns an empty slice, which crawl loops use as their
// termination signal.
func (w *WingPage) ExtractProducts(ctx context.Context) ([]ProductSnapshot, error) {
	const js = `(() => {
		const rows = Array.from(document.querySelectorAll('#inventory-table tbody tr.product-row'));
		return rows.map(r => ({
			sellerProductId: r.dataset.productId || '',
			title: (r.querySelector('.product-title') || {textContent: ''}).textContent,
			winner: r.querySelector('.winner-badge') !== null,
			price: (r.querySelector('.item-price') || {textContent: ''}).textContent,
			shippingCost: (r.querySelector('.shipping-fee') || {textContent: ''}).textContent,
		}));
	})()`

	var rows []inventoryRow
	if err := w.run(ctx, chromedp.Evaluate(js, &rows)); err != nil {
		return nil, fmt.Errorf("failed to extract inventory rows: %w", err)
	}

	products := make([]ProductSnapshot, 0, len(rows))
	for _, row := range rows {
		products = append(products, ProductSnapshot{
			SellerProductID: parseNumber(row.SellerProductID),
			ProductCode:     firstToken(row.Title),
			Winner:          row.Winner,
			Price:           parseNumber(row.Price),
			ShippingCost:    parseNumber(row.ShippingCost),
		})
	}
	return products, nil
}

// ---- non-conforming view -------------------------------------------------

// OpenNonConformingView navigates to the listing view filtered to the
// non-conforming exposure status. Returns false when the row section never
// appears within the wait budget, which means no non-conforming products.
func (w *WingPage) OpenNonConformingView(ctx context.Context) (bool, error) {
	url := w.cfg.BaseURL + "/inventory/management?exposureStatus=NON_CONFORMING"
	if err := w.run(ctx, chromedp.Navigate(url), chromedp.WaitReady(`body`, chromedp.ByQuery)); err != nil {
		return false, fmt.Errorf("failed to open non-conforming view: %w", err)
	}

	deadline := time.Now().Add(w.cfg.SelectorWait)
	for {
		var present bool
		const js = `document.querySelectorAll('#inventory-table tbody tr.product-row').length > 0`
		if err := w.run(ctx, chromedp.Evaluate(js, &present)); err != nil {
			return false, fmt.Errorf("failed to poll non-conforming rows: %w", err)
		}
		if present {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// ExtractProductCodes extracts the first whitespace-delimited token of each
// row's title.
func (w *WingPage) ExtractProductCodes(ctx context.Context) ([]string, error) {
	const js = `(() => {
		const rows = Array.from(document.querySelectorAll('#inventory-table tbody tr.product-row'));
		return rows.map(r => (r.querySelector('.product-title') || {textContent: ''}).textContent);
	})()`

	var titles []string
	if err := w.run(ctx, chromedp.Evaluate(js, &titles)); err != nil {
		return nil, fmt.Errorf("failed to extract product titles: %w", err)
	}

	codes := make([]string, 0, len(titles))
	for _, title := range titles {
		if code := firstToken(title); code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// firstToken returns the first whitespace-delimited token of s
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseNumber strips currency formatting and parses the remainder, treating
// absent values as 0.
func parseNumber(s string) int64 {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0
	}

	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
