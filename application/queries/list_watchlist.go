package queries

// ListWatchlistQuery represents a query for the current watchlist
type ListWatchlistQuery struct {
	// IncludeErrored keeps errored entries in the listing. Removed entries
	// are never returned.
	IncludeErrored bool
}

// Validate validates the ListWatchlistQuery
func (q ListWatchlistQuery) Validate() error {
	return nil
}

// WatchlistRow is one entry in a watchlist listing
type WatchlistRow struct {
	URL         string   `json:"url"`
	RawURL      string   `json:"rawUrl"`
	Product     string   `json:"product,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	StockStatus string   `json:"stockStatus,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Status      string   `json:"status"`
	LastError   string   `json:"lastError,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// ListWatchlistResult represents the result of listing the watchlist
type ListWatchlistResult struct {
	Rows  []WatchlistRow `json:"rows"`
	Total int            `json:"total"`
}
