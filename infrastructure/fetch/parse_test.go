package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtower-backend/domain/core/valueobjects"
)

func TestParseProductPage_JSONLD(t *testing.T) {
	page := `<html><head>
		<script type="application/ld+json">
		{
			"@type": "Product",
			"name": "Wireless Mouse M185",
			"image": "https://img.example.com/m185.jpg",
			"offers": {"price": "123.45", "availability": "https://schema.org/InStock"}
		}
		</script>
	</head><body></body></html>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, "Wireless Mouse M185", snap.Product)
	assert.Equal(t, "https://img.example.com/m185.jpg", snap.ImageURL)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 123.45, *snap.Price)
	assert.Equal(t, valueobjects.StockStatusInStock, snap.StockStatus)
}

func TestParseProductPage_JSONLDGraph(t *testing.T) {
	page := `<script type="application/ld+json">
	{
		"@graph": [
			{"@type": "BreadcrumbList"},
			{
				"@type": ["Product", "Thing"],
				"name": "Standing Desk",
				"image": ["https://img.example.com/desk-1.jpg", "https://img.example.com/desk-2.jpg"],
				"offers": [
					{"lowPrice": 4200, "availability": "https://schema.org/InStock"},
					{"price": 4500}
				]
			}
		]
	}
	</script>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, "Standing Desk", snap.Product)
	assert.Equal(t, "https://img.example.com/desk-1.jpg", snap.ImageURL)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 4200.0, *snap.Price)
}

func TestParseProductPage_TrackingJSONSalePriceWins(t *testing.T) {
	page := `<script>
		var pdpTrackingData = {"pdt_name": "USB-C Hub 7-in-1", "pdt_price": "99.00", "pdt_sale_price": "89.00", "pdt_list_price": "129.00"};
	</script>
	<button>Add to Cart</button>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, "USB-C Hub 7-in-1", snap.Product)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 89.0, *snap.Price)
	assert.Equal(t, valueobjects.StockStatusInStock, snap.StockStatus)
}

func TestParseProductPage_NominalPriceWithoutSale(t *testing.T) {
	page := `{"pdt_name": "Desk Lamp", "pdt_price": "59.90", "pdt_list_price": "79.90"}`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 59.9, *snap.Price)
}

func TestParseProductPage_ListPriceLastResort(t *testing.T) {
	page := `{"pdt_name": "Desk Lamp", "pdt_list_price": "79.90"}`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 79.9, *snap.Price)
}

func TestParseProductPage_MarkupFallback(t *testing.T) {
	page := `<html><head><title>Ergonomic Chair - Best Deals</title></head>
	<body>
		<span class="pdp-price pdp-price_type_normal pdp-price_color_orange">$1,299.00</span>
		<button class="add-to-cart">Buy Now</button>
	</body></html>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, "Ergonomic Chair - Best Deals", snap.Product)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 1299.0, *snap.Price)
	assert.Equal(t, valueobjects.StockStatusInStock, snap.StockStatus)
}

func TestParseProductPage_SoldOutHeuristic(t *testing.T) {
	page := `{"pdt_name": "Limited Sneakers", "pdt_price": "250.00"}
	<div class="quantity-content-default">Sold Out</div>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, valueobjects.StockStatusOutOfStock, snap.StockStatus)
}

func TestParseProductPage_CheapestSellerWins(t *testing.T) {
	page := `<script type="application/ld+json">
	[
		{"@type": "Product", "name": "Power Bank", "offers": [{"price": 120}, {"price": 100}, {"price": 115}]}
	]
	</script>`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	require.True(t, snap.HasPrice())
	assert.Equal(t, 100.0, *snap.Price)
}

func TestParseProductPage_EscapedName(t *testing.T) {
	page := `{"pdt_name": "Mug \"Best Dad\" 350ml", "pdt_price": "12.00"}`

	snap, ok := ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, `Mug "Best Dad" 350ml`, snap.Product)
}

func TestParseProductPage_NotAProductPage(t *testing.T) {
	page := `<html><body><h1>404</h1><p>We can't find that page.</p></body></html>`

	_, ok := ParseProductPage(page)
	assert.False(t, ok)
}
