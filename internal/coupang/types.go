package coupang

// MarketplaceProduct is one seller product as the open API reports it. The
// API is authoritative for identity; price and winner snapshots come from
// the WING scrape instead.
type MarketplaceProduct struct {
	SellerProductID   int64         `json:"sellerProductId"`
	SellerProductName string        `json:"sellerProductName"`
	StatusName        string        `json:"statusName"`
	SalePrice         int64         `json:"salePrice"`
	Items             []ProductItem `json:"items"`
}

// ProductItem is one vendor item (option) of a seller product
type ProductItem struct {
	VendorItemID int64  `json:"vendorItemId"`
	ItemName     string `json:"itemName"`
	SalePrice    int64  `json:"salePrice"`
}

// OrderSheet is one order sheet row from the vendor order listing
type OrderSheet struct {
	ShipmentBoxID int64  `json:"shipmentBoxId"`
	OrderID       int64  `json:"orderId"`
	Status        string `json:"status"`
	OrderedAt     string `json:"orderedAt"`
	Receiver      struct {
		Name       string `json:"name"`
		SafeNumber string `json:"safeNumber"`
	} `json:"receiver"`
}

// InvoiceSubmission is one invoice record for the orders/invoices endpoint
type InvoiceSubmission struct {
	ShipmentBoxID     int64  `json:"shipmentBoxId"`
	OrderID           int64  `json:"orderId"`
	DeliveryCompany   string `json:"deliveryCompanyCode"`
	InvoiceNumber     string `json:"invoiceNumber"`
	VendorItemID      int64  `json:"vendorItemId"`
	SplitShipping     bool   `json:"splitShipping"`
	PreSplitShipped   bool   `json:"preSplitShipped"`
	EstimatedShipDate string `json:"estimatedShippingDate,omitempty"`
}

// listProductsResponse is the wire shape of the paginated product listing
type listProductsResponse struct {
	Code      string               `json:"code"`
	Message   string               `json:"message"`
	NextToken string               `json:"nextToken"`
	Data      []MarketplaceProduct `json:"data"`
}

// listOrderSheetsResponse is the wire shape of the paginated order listing
type listOrderSheetsResponse struct {
	Code      int64        `json:"code"`
	Message   string       `json:"message"`
	NextToken string       `json:"nextToken"`
	Data      []OrderSheet `json:"data"`
}

// productDetailResponse wraps a single product detail payload
type productDetailResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Data    MarketplaceProduct `json:"data"`
}
