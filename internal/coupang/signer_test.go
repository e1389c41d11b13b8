package coupang

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSigner(at time.Time) *Signer {
	s := NewSigner("test-access", "test-secret")
	s.now = func() time.Time { return at }
	return s
}

func TestSigner_TimestampFormat(t *testing.T) {
	at := time.Date(2026, 8, 27, 14, 30, 45, 0, time.UTC)
	s := fixedSigner(at)

	header, _ := s.SignQuery("GET", "/v2/test", nil)

	assert.Equal(t, "260827T143045Z", header.Date)
	assert.Contains(t, header.Authorization, "signed-date=260827T143045Z")
}

func TestSigner_AuthorizationShape(t *testing.T) {
	s := fixedSigner(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	header, _ := s.SignQuery("GET", "/v2/test", nil)

	assert.True(t, strings.HasPrefix(header.Authorization, "CEA algorithm=HmacSHA256, access-key=test-access, signed-date="))
	assert.Contains(t, header.Authorization, ", signature=")

	// Signature must be lowercase hex of a SHA-256 MAC
	parts := strings.Split(header.Authorization, "signature=")
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 64)
	assert.Equal(t, strings.ToLower(parts[1]), parts[1])
}

func TestSigner_Deterministic(t *testing.T) {
	at := time.Date(2026, 8, 27, 14, 30, 45, 0, time.UTC)

	a, _ := fixedSigner(at).SignQuery("GET", "/v2/products", url.Values{"status": {"APPROVED"}})
	b, _ := fixedSigner(at).SignQuery("GET", "/v2/products", url.Values{"status": {"APPROVED"}})

	assert.Equal(t, a, b)
}

func TestSigner_TimestampChangesSignature(t *testing.T) {
	a, _ := fixedSigner(time.Date(2026, 8, 27, 14, 30, 45, 0, time.UTC)).SignQuery("GET", "/v2/products", nil)
	b, _ := fixedSigner(time.Date(2026, 8, 27, 14, 30, 46, 0, time.UTC)).SignQuery("GET", "/v2/products", nil)

	assert.NotEqual(t, a.Date, b.Date)
	assert.NotEqual(t, a.Authorization, b.Authorization)
}

func TestSigner_SignPaged_FixedParameterOrder(t *testing.T) {
	s := fixedSigner(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC))

	_, query := s.SignPaged("GET", "/v2/products", PageQuery{
		VendorID:   "A01234567",
		NextToken:  "",
		MaxPerPage: 50,
		Status:     "APPROVED",
	})

	// All paging keys are always present, in fixed order, even when empty.
	assert.Equal(t, "vendorId=A01234567&nextToken=&maxPerPage=50&status=APPROVED", query)
}

func TestSigner_SignQuery_Canonicalization(t *testing.T) {
	s := fixedSigner(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC))

	t.Run("empty params produce empty query", func(t *testing.T) {
		_, query := s.SignQuery("GET", "/v2/products", nil)
		assert.Equal(t, "", query)
	})

	t.Run("params encode with sorted keys", func(t *testing.T) {
		_, query := s.SignQuery("GET", "/v2/orders", url.Values{
			"status":        {"ACCEPT"},
			"createdAtFrom": {"2026-08-01"},
		})
		assert.Equal(t, "createdAtFrom=2026-08-01&status=ACCEPT", query)
	})

	t.Run("query participates in the signature", func(t *testing.T) {
		a, _ := s.SignQuery("GET", "/v2/orders", url.Values{"status": {"ACCEPT"}})
		b, _ := s.SignQuery("GET", "/v2/orders", url.Values{"status": {"INSTRUCT"}})
		assert.NotEqual(t, a.Authorization, b.Authorization)
	})
}

func TestSigner_MethodAndPathParticipate(t *testing.T) {
	s := fixedSigner(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC))

	get, _ := s.SignQuery("GET", "/v2/products", nil)
	put, _ := s.SignQuery("PUT", "/v2/products", nil)
	other, _ := s.SignQuery("GET", "/v2/orders", nil)

	assert.NotEqual(t, get.Authorization, put.Authorization)
	assert.NotEqual(t, get.Authorization, other.Authorization)
}
