package valueobjects

import "strings"

// StockStatus is the normalized availability of a product page.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusUnknown    StockStatus = "unknown"
)

// ParseStockStatus normalizes free-form availability text from site parsers
// into a StockStatus. Unrecognized values map to unknown.
func ParseStockStatus(s string) StockStatus {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", "_"))) {
	case "in_stock", "instock":
		return StockStatusInStock
	case "out_of_stock", "outofstock", "sold_out":
		return StockStatusOutOfStock
	default:
		return StockStatusUnknown
	}
}

// Snapshot is one normalized observation of a tracked product page:
// what the page said about the product at a point in time.
type Snapshot struct {
	Product     string
	Price       *float64
	StockStatus StockStatus
	ImageURL    string
}

// HasPrice reports whether a usable price was extracted.
func (s Snapshot) HasPrice() bool {
	return s.Price != nil && *s.Price > 0
}

// PriceOrZero returns the price, or 0 when none was extracted.
func (s Snapshot) PriceOrZero() float64 {
	if s.Price == nil {
		return 0
	}
	return *s.Price
}
