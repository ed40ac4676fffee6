package fetch

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"

	"watchtower-backend/domain/core/valueobjects"
)

// The product pages carry their data in three places, from most to least
// reliable: JSON-LD product blocks, inline tracking JSON, and raw markup.
// The parser tries all of them and keeps the best of what it finds.
var (
	jsonLDPattern = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

	// Inline tracking JSON carries prices as quoted or bare numbers.
	salePricePattern = regexp.MustCompile(`"pdt_sale_price"\s*:\s*"?([0-9][0-9.,]*)`)
	pdtPricePattern  = regexp.MustCompile(`"pdt_price"\s*:\s*"?([0-9][0-9.,]*)`)
	listPricePattern = regexp.MustCompile(`"pdt_list_price"\s*:\s*"?([0-9][0-9.,]*)`)
	pdtNamePattern   = regexp.MustCompile(`"pdt_name"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	// Markup fallbacks for redesigned pages.
	priceClassPattern = regexp.MustCompile(`(?is)class="[^"]*pdp-price[^"]*"[^>]*>\s*[^0-9<]*([0-9][0-9.,]*)`)
	titlePattern      = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

	soldOutPattern   = regexp.MustCompile(`(?i)sold\s*out|out\s*of\s*stock|currently\s*unavailable`)
	addToCartPattern = regexp.MustCompile(`(?i)add\s*to\s*cart|buy\s*now`)
)

// ldProduct is the subset of a JSON-LD Product block the parser reads.
type ldProduct struct {
	Type   json.RawMessage `json:"@type"`
	Name   string          `json:"name"`
	Image  json.RawMessage `json:"image"`
	Offers json.RawMessage `json:"offers"`
}

type ldOffer struct {
	Price        json.RawMessage `json:"price"`
	LowPrice     json.RawMessage `json:"lowPrice"`
	Availability string          `json:"availability"`
}

// ParseProductPage extracts a snapshot from raw product page HTML. It
// returns false when the page carries neither a product name nor a price,
// which means the markup is not a product page the parser understands.
func ParseProductPage(page string) (valueobjects.Snapshot, bool) {
	snap := valueobjects.Snapshot{StockStatus: valueobjects.StockStatusUnknown}

	var prices []float64

	for _, match := range jsonLDPattern.FindAllStringSubmatch(page, -1) {
		for _, product := range decodeProducts(match[1]) {
			if snap.Product == "" && product.Name != "" {
				snap.Product = html.UnescapeString(product.Name)
			}
			if snap.ImageURL == "" {
				snap.ImageURL = firstImage(product.Image)
			}
			for _, offer := range decodeOffers(product.Offers) {
				if p, ok := rawPrice(offer.LowPrice); ok {
					prices = append(prices, p)
				} else if p, ok := rawPrice(offer.Price); ok {
					prices = append(prices, p)
				}
				switch {
				case strings.Contains(offer.Availability, "InStock"):
					snap.StockStatus = valueobjects.StockStatusInStock
				case strings.Contains(offer.Availability, "OutOfStock"),
					strings.Contains(offer.Availability, "SoldOut"):
					snap.StockStatus = valueobjects.StockStatusOutOfStock
				}
			}
		}
	}

	// Tracking JSON: sale price beats nominal price, list price is only a
	// last resort since it is the pre-discount number.
	if found := matchPrices(salePricePattern, page); len(found) > 0 {
		prices = append(prices, found...)
	} else if found := matchPrices(pdtPricePattern, page); len(found) > 0 {
		prices = append(prices, found...)
	} else if len(prices) == 0 {
		prices = append(prices, matchPrices(listPricePattern, page)...)
	}

	if len(prices) == 0 {
		prices = matchPrices(priceClassPattern, page)
	}

	// Several sellers may list the same product; the cheapest live offer is
	// the one buyers see first.
	if len(prices) > 0 {
		min := prices[0]
		for _, p := range prices[1:] {
			if p < min {
				min = p
			}
		}
		snap.Price = &min
	}

	if snap.Product == "" {
		if m := pdtNamePattern.FindStringSubmatch(page); m != nil {
			if name, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
				snap.Product = strings.TrimSpace(name)
			}
		}
	}
	if snap.Product == "" {
		if m := titlePattern.FindStringSubmatch(page); m != nil {
			snap.Product = strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}

	if snap.StockStatus == valueobjects.StockStatusUnknown {
		switch {
		case soldOutPattern.MatchString(page):
			snap.StockStatus = valueobjects.StockStatusOutOfStock
		case addToCartPattern.MatchString(page):
			snap.StockStatus = valueobjects.StockStatusInStock
		}
	}

	if snap.Product == "" && snap.Price == nil {
		return valueobjects.Snapshot{}, false
	}
	return snap, true
}

// decodeProducts handles the three shapes a JSON-LD block takes: a single
// object, an array, or an object with an @graph array.
func decodeProducts(block string) []ldProduct {
	block = strings.TrimSpace(block)

	var single ldProduct
	if err := json.Unmarshal([]byte(block), &single); err == nil && isProductType(single.Type) {
		return []ldProduct{single}
	}

	var list []ldProduct
	if err := json.Unmarshal([]byte(block), &list); err == nil {
		return filterProducts(list)
	}

	var graph struct {
		Graph []ldProduct `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(block), &graph); err == nil {
		return filterProducts(graph.Graph)
	}

	return nil
}

func filterProducts(candidates []ldProduct) []ldProduct {
	var out []ldProduct
	for _, c := range candidates {
		if isProductType(c.Type) {
			out = append(out, c)
		}
	}
	return out
}

func isProductType(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == "Product"
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, s := range list {
			if s == "Product" {
				return true
			}
		}
	}
	return false
}

// decodeOffers handles offers as a single object or an array.
func decodeOffers(raw json.RawMessage) []ldOffer {
	if len(raw) == 0 {
		return nil
	}

	var single ldOffer
	if err := json.Unmarshal(raw, &single); err == nil {
		return []ldOffer{single}
	}

	var list []ldOffer
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

// firstImage handles image as a string or an array of strings.
func firstImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// rawPrice parses a JSON price that may be a number or a numeric string.
func rawPrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n > 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parsePrice(s)
	}
	return 0, false
}

func matchPrices(pattern *regexp.Regexp, page string) []float64 {
	var out []float64
	for _, m := range pattern.FindAllStringSubmatch(page, -1) {
		if p, ok := parsePrice(m[1]); ok {
			out = append(out, p)
		}
	}
	return out
}

// parsePrice normalizes "1,299.00" style strings.
func parsePrice(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}
