package coupang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrRetriesExhausted is returned when a paginated page fetch fails more
	// times than the retry bound allows. The whole fetch is terminal at that
	// point; accumulated pages are discarded.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// APIError carries the marketplace's error response for a non-2xx reply
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coupang api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// ClientConfig holds open API client tuning
type ClientConfig struct {
	Host           string
	VendorID       string
	MaxPerPage     int
	StatusFilter   string
	RetryAttempts  int
	RetryDelay     time.Duration
	PageThrottle   time.Duration
	RequestTimeout time.Duration
}

// Client wraps the marketplace open API with signing, cursor pagination,
// bounded retry, and page throttling. List fetches are all-or-failed: the
// caller never sees a partial result.
type Client struct {
	http    *http.Client
	signer  *Signer
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	cfg     ClientConfig
}

// NewClient creates an open API client
func NewClient(cfg ClientConfig, signer *Signer, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "coupang-open-api",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// High enough that the per-page retry bound never trips it on
			// an isolated flaky fetch.
			return counts.ConsecutiveFailures > 10
		},
	})

	return &Client{
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		signer:  signer,
		breaker: breaker,
		logger:  logger,
		cfg:     cfg,
	}
}

const (
	productsPath = "/v2/providers/seller_api/apis/api/v1/marketplace/seller-products"
	itemsPath    = "/v2/providers/seller_api/apis/api/v1/marketplace/vendor-items"
)

func (c *Client) ordersheetsPath() string {
	return fmt.Sprintf("/v2/providers/openapi/apis/api/v4/vendors/%s/ordersheets", c.cfg.VendorID)
}

func (c *Client) invoicesPath() string {
	return fmt.Sprintf("/v2/providers/openapi/apis/api/v4/vendors/%s/orders/invoices", c.cfg.VendorID)
}

// ListProducts fetches the seller's full approved product list, following
// the cursor token until the server stops returning one. jobID and jobType
// are used only for log correlation.
func (c *Client) ListProducts(ctx context.Context, jobID, jobType string) ([]MarketplaceProduct, error) {
	var all []MarketplaceProduct
	token := ""
	pages := 0

	for {
		page := PageQuery{
			VendorID:   c.cfg.VendorID,
			NextToken:  token,
			MaxPerPage: c.cfg.MaxPerPage,
			Status:     c.cfg.StatusFilter,
		}

		var resp listProductsResponse
		err := c.withRetry(ctx, "list products page", jobID, func() error {
			body, err := c.doPaged(ctx, http.MethodGet, productsPath, page)
			if err != nil {
				return err
			}
			return json.Unmarshal(body, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}

		all = append(all, resp.Data...)
		pages++

		c.logger.Debug("Fetched product page",
			slog.String("job_id", jobID),
			slog.String("job_type", jobType),
			slog.Int("page", pages),
			slog.Int("page_size", len(resp.Data)),
			slog.Int("total", len(all)),
		)

		if resp.NextToken == "" {
			break
		}
		token = resp.NextToken

		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Info("Product listing complete",
		slog.String("job_id", jobID),
		slog.Int("pages", pages),
		slog.Int("products", len(all)),
	)

	return all, nil
}

// ListOrderSheets fetches order sheets in a created-at window, following
// the cursor token until exhaustion.
func (c *Client) ListOrderSheets(ctx context.Context, jobID, createdAtFrom, createdAtTo, status string) ([]OrderSheet, error) {
	var all []OrderSheet
	token := ""
	pages := 0

	for {
		params := url.Values{}
		params.Set("createdAtFrom", createdAtFrom)
		params.Set("createdAtTo", createdAtTo)
		params.Set("status", status)
		params.Set("maxPerPage", fmt.Sprintf("%d", c.cfg.MaxPerPage))
		if token != "" {
			params.Set("nextToken", token)
		}

		var resp listOrderSheetsResponse
		err := c.withRetry(ctx, "list ordersheets page", jobID, func() error {
			body, err := c.doQuery(ctx, http.MethodGet, c.ordersheetsPath(), params, nil)
			if err != nil {
				return err
			}
			return json.Unmarshal(body, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list ordersheets: %w", err)
		}

		all = append(all, resp.Data...)
		pages++

		if resp.NextToken == "" {
			break
		}
		token = resp.NextToken

		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Info("Ordersheet listing complete",
		slog.String("job_id", jobID),
		slog.Int("pages", pages),
		slog.Int("ordersheets", len(all)),
	)

	return all, nil
}

// ProductDetail fetches one seller product by id
func (c *Client) ProductDetail(ctx context.Context, sellerProductID int64) (*MarketplaceProduct, error) {
	path := fmt.Sprintf("%s/%d", productsPath, sellerProductID)

	body, err := c.doQuery(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get product detail: %w", err)
	}

	var resp productDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse product detail: %w", err)
	}

	return &resp.Data, nil
}

// StopSale stops selling one vendor item. Callers decide whether a failure
// aborts their batch; the purge workflow logs and swallows these.
func (c *Client) StopSale(ctx context.Context, vendorItemID int64) error {
	path := fmt.Sprintf("%s/%d/sales/stop", itemsPath, vendorItemID)

	if _, err := c.doQuery(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("failed to stop sale for vendor item %d: %w", vendorItemID, err)
	}
	return nil
}

// DeleteProduct deletes one seller product
func (c *Client) DeleteProduct(ctx context.Context, sellerProductID int64) error {
	path := fmt.Sprintf("%s/%d", productsPath, sellerProductID)

	if _, err := c.doQuery(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", sellerProductID, err)
	}
	return nil
}

// UpdateItemPrice updates one vendor item's price
func (c *Client) UpdateItemPrice(ctx context.Context, vendorItemID, price int64) error {
	path := fmt.Sprintf("%s/%d/prices/%d", itemsPath, vendorItemID, price)

	if _, err := c.doQuery(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("failed to update price for vendor item %d: %w", vendorItemID, err)
	}
	return nil
}

// UpdateReturnCharge partially updates one seller product's return charge
func (c *Client) UpdateReturnCharge(ctx context.Context, sellerProductID, charge int64) error {
	path := fmt.Sprintf("%s/%d/partial", productsPath, sellerProductID)
	body := map[string]int64{"returnCharge": charge}

	if _, err := c.doQuery(ctx, http.MethodPut, path, nil, body); err != nil {
		return fmt.Errorf("failed to update return charge for product %d: %w", sellerProductID, err)
	}
	return nil
}

// AcknowledgeOrders acknowledges payment-complete order sheets by shipment
// box id.
func (c *Client) AcknowledgeOrders(ctx context.Context, shipmentBoxIDs []int64) error {
	path := c.ordersheetsPath() + "/acknowledgement"
	body := map[string]any{
		"vendorId":       c.cfg.VendorID,
		"shipmentBoxIds": shipmentBoxIDs,
	}

	if _, err := c.doQuery(ctx, http.MethodPut, path, nil, body); err != nil {
		return fmt.Errorf("failed to acknowledge orders: %w", err)
	}
	return nil
}

// SubmitInvoices uploads invoice numbers for order sheets
func (c *Client) SubmitInvoices(ctx context.Context, invoices []InvoiceSubmission) error {
	body := map[string]any{
		"vendorId":                   c.cfg.VendorID,
		"orderSheetInvoiceApplyDtos": invoices,
	}

	if _, err := c.doQuery(ctx, http.MethodPost, c.invoicesPath(), nil, body); err != nil {
		return fmt.Errorf("failed to submit invoices: %w", err)
	}
	return nil
}

// withRetry runs fn up to the retry bound with a fixed inter-attempt delay.
// Exceeding the bound wraps ErrRetriesExhausted so callers can treat the
// enclosing fetch as terminal.
func (c *Client) withRetry(ctx context.Context, op, jobID string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		c.logger.Warn("API call failed",
			slog.String("op", op),
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.RetryAttempts),
			slog.Any("error", lastErr),
		)

		if attempt < c.cfg.RetryAttempts {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrRetriesExhausted, op, c.cfg.RetryAttempts, lastErr)
}

// throttle waits the fixed inter-page delay
func (c *Client) throttle(ctx context.Context) error {
	select {
	case <-time.After(c.cfg.PageThrottle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doPaged issues one signed request using the fixed paging parameter set
func (c *Client) doPaged(ctx context.Context, method, path string, page PageQuery) ([]byte, error) {
	header, query := c.signer.SignPaged(method, path, page)
	return c.execute(ctx, method, path, query, header, nil)
}

// doQuery issues one signed request with a bespoke (possibly empty) query
func (c *Client) doQuery(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	header, query := c.signer.SignQuery(method, path, params)
	return c.execute(ctx, method, path, query, header, body)
}

func (c *Client) execute(ctx context.Context, method, path, query string, header SignedHeader, body any) ([]byte, error) {
	reqURL := c.cfg.Host + path
	if query != "" {
		reqURL += "?" + query
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", header.Authorization)
	req.Header.Set("X-Coupang-Date", header.Date)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var parsed struct {
				Code    json.Number `json:"code"`
				Message string      `json:"message"`
			}
			if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr == nil {
				apiErr.Code = parsed.Code.String()
				apiErr.Message = parsed.Message
			}
			return nil, apiErr
		}

		return respBody, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
