package coupang

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, host string) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		Host:           host,
		VendorID:       "A01234567",
		MaxPerPage:     10,
		StatusFilter:   "APPROVED",
		RetryAttempts:  3,
		RetryDelay:     time.Millisecond,
		PageThrottle:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, NewSigner("ak", "sk"), discardLogger())
}

func TestClient_ListProducts_Pagination(t *testing.T) {
	var mu sync.Mutex
	seenTokens := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Coupang-Date"))

		token := r.URL.Query().Get("nextToken")
		mu.Lock()
		seenTokens = append(seenTokens, token)
		mu.Unlock()

		switch token {
		case "":
			fmt.Fprint(w, `{"code":"SUCCESS","nextToken":"t2","data":[{"sellerProductId":1,"sellerProductName":"A100-Blue Widget"},{"sellerProductId":2,"sellerProductName":"B200 Gadget"}]}`)
		case "t2":
			fmt.Fprint(w, `{"code":"SUCCESS","nextToken":"t3","data":[{"sellerProductId":3,"sellerProductName":"C300 Thing"}]}`)
		case "t3":
			fmt.Fprint(w, `{"code":"SUCCESS","nextToken":"","data":[{"sellerProductId":4,"sellerProductName":"D400 Object"}]}`)
		default:
			t.Errorf("unexpected token %q", token)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	products, err := c.ListProducts(context.Background(), "job-1", "cron")

	require.NoError(t, err)
	// Sum of page lengths, accumulated in order
	require.Len(t, products, 4)
	assert.Equal(t, int64(1), products[0].SellerProductID)
	assert.Equal(t, int64(4), products[3].SellerProductID)

	// No cursor is visited twice
	assert.Equal(t, []string{"", "t2", "t3"}, seenTokens)
}

func TestClient_ListProducts_RetryThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"code":"ERROR","message":"boom"}`)
			return
		}
		fmt.Fprint(w, `{"code":"SUCCESS","nextToken":"","data":[{"sellerProductId":1}]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	products, err := c.ListProducts(context.Background(), "job-1", "cron")

	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, 3, calls)
}

func TestClient_ListProducts_AllOrFailed(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("nextToken") == "" {
			fmt.Fprint(w, `{"code":"SUCCESS","nextToken":"t2","data":[{"sellerProductId":1}]}`)
			return
		}
		// Second page always fails; terminal after the retry bound, and the
		// first page is discarded with it.
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	products, err := c.ListProducts(context.Background(), "job-1", "cron")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Nil(t, products)
	// 1 first-page call + 3 bounded attempts on the second page
	assert.Equal(t, 4, calls)
}

func TestClient_ListOrderSheets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/vendors/A01234567/ordersheets")
		assert.Equal(t, "ACCEPT", r.URL.Query().Get("status"))
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("createdAtFrom"))
		fmt.Fprint(w, `{"code":200,"nextToken":"","data":[{"shipmentBoxId":11,"orderId":99,"status":"ACCEPT"}]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	sheets, err := c.ListOrderSheets(context.Background(), "job-1", "2026-08-01", "2026-08-27", "ACCEPT")

	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, int64(11), sheets[0].ShipmentBoxID)
}

func TestClient_Mutations(t *testing.T) {
	type capture struct {
		method string
		path   string
	}
	var got capture
	var status int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = capture{method: r.Method, path: r.URL.Path}
		w.WriteHeader(status)
		fmt.Fprint(w, `{"code":"SUCCESS"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	ctx := context.Background()

	t.Run("stop sale", func(t *testing.T) {
		status = http.StatusOK
		require.NoError(t, c.StopSale(ctx, 42))
		assert.Equal(t, http.MethodPut, got.method)
		assert.Equal(t, itemsPath+"/42/sales/stop", got.path)
	})

	t.Run("delete product", func(t *testing.T) {
		status = http.StatusOK
		require.NoError(t, c.DeleteProduct(ctx, 7))
		assert.Equal(t, http.MethodDelete, got.method)
		assert.Equal(t, productsPath+"/7", got.path)
	})

	t.Run("update item price", func(t *testing.T) {
		status = http.StatusOK
		require.NoError(t, c.UpdateItemPrice(ctx, 42, 19900))
		assert.Equal(t, http.MethodPut, got.method)
		assert.Equal(t, itemsPath+"/42/prices/19900", got.path)
	})

	t.Run("update return charge", func(t *testing.T) {
		status = http.StatusOK
		require.NoError(t, c.UpdateReturnCharge(ctx, 7, 5000))
		assert.Equal(t, http.MethodPut, got.method)
		assert.Equal(t, productsPath+"/7/partial", got.path)
	})

	t.Run("mutation failure propagates", func(t *testing.T) {
		status = http.StatusBadRequest
		err := c.StopSale(ctx, 42)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_SubmitInvoices(t *testing.T) {
	type invoiceBody struct {
		VendorID string              `json:"vendorId"`
		DTOs     []InvoiceSubmission `json:"orderSheetInvoiceApplyDtos"`
	}

	t.Run("posts the submission batch", func(t *testing.T) {
		var got invoiceBody
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/providers/openapi/apis/api/v4/vendors/A01234567/orders/invoices", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			fmt.Fprint(w, `{"code":"SUCCESS"}`)
		}))
		defer srv.Close()

		c := testClient(t, srv.URL)
		err := c.SubmitInvoices(context.Background(), []InvoiceSubmission{{
			ShipmentBoxID:   55,
			OrderID:         7700,
			DeliveryCompany: "CJGLS",
			InvoiceNumber:   "999",
		}})

		require.NoError(t, err)
		assert.Equal(t, "A01234567", got.VendorID)
		require.Len(t, got.DTOs, 1)
		assert.Equal(t, int64(55), got.DTOs[0].ShipmentBoxID)
		assert.Equal(t, "999", got.DTOs[0].InvoiceNumber)
	})

	t.Run("failure propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":"ERROR","message":"duplicate invoice"}`)
		}))
		defer srv.Close()

		c := testClient(t, srv.URL)
		err := c.SubmitInvoices(context.Background(), []InvoiceSubmission{{ShipmentBoxID: 55}})

		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_ProductDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, productsPath+"/7", r.URL.Path)
		fmt.Fprint(w, `{"code":"SUCCESS","data":{"sellerProductId":7,"sellerProductName":"A100-Blue Widget","items":[{"vendorItemId":70,"salePrice":19900}]}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	product, err := c.ProductDetail(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), product.SellerProductID)
	require.Len(t, product.Items, 1)
	assert.Equal(t, int64(70), product.Items[0].VendorItemID)
}
