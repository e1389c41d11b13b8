package coupang

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// timestampLayout is the truncated ISO8601 variant the marketplace expects:
// separators stripped, second resolution, trailing Z. Always UTC.
const timestampLayout = "060102T150405Z"

const signatureAlgorithm = "HmacSHA256"

// Signer computes time-bound CEA authorization headers for open API calls.
// Every call produces a fresh timestamp/signature pair; the marketplace
// rejects stale timestamps, so nothing is cached.
type Signer struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

// NewSigner creates a signer for the given key pair
func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		now:       time.Now,
	}
}

// SignedHeader carries the two headers a signed request must send
type SignedHeader struct {
	Authorization string
	Date          string
}

// PageQuery is the fixed paging parameter set for cursor-paginated list
// endpoints. The canonical query always contains all four keys in this
// order, even when a value is empty.
type PageQuery struct {
	VendorID   string
	NextToken  string
	MaxPerPage int
	Status     string
}

func (q PageQuery) encode() string {
	return fmt.Sprintf("vendorId=%s&nextToken=%s&maxPerPage=%d&status=%s",
		q.VendorID, q.NextToken, q.MaxPerPage, q.Status)
}

// SignPaged signs a request that uses the fixed paging parameter set
func (s *Signer) SignPaged(method, path string, page PageQuery) (SignedHeader, string) {
	query := page.encode()
	return s.sign(method, path, query), query
}

// SignQuery signs a request with an arbitrary parameter map. The canonical
// query is the sorted-key RFC 3986 encoding; an empty map canonicalizes to
// the empty string.
func (s *Signer) SignQuery(method, path string, params url.Values) (SignedHeader, string) {
	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}
	return s.sign(method, path, query), query
}

func (s *Signer) sign(method, path, query string) SignedHeader {
	signedDate := s.now().UTC().Format(timestampLayout)
	message := signedDate + method + path + query

	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(message))
	signature := hex.EncodeToString(mac.Sum(nil))

	authorization := fmt.Sprintf("CEA algorithm=%s, access-key=%s, signed-date=%s, signature=%s",
		signatureAlgorithm, s.accessKey, signedDate, signature)

	return SignedHeader{
		Authorization: authorization,
		Date:          signedDate,
	}
}
