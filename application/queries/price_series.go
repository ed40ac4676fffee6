package queries

import "errors"

// PriceSeriesQuery represents a query for bucketed price history of one entry
type PriceSeriesQuery struct {
	URL string
	// Range is one of day, week or month; empty defaults to week.
	Range string
}

// Validate validates the PriceSeriesQuery
func (q PriceSeriesQuery) Validate() error {
	if q.URL == "" {
		return errors.New("url is required")
	}
	switch q.Range {
	case "", "day", "week", "month":
		return nil
	default:
		return errors.New("range must be day, week or month")
	}
}

// SeriesPoint is one bucket of a price series
type SeriesPoint struct {
	Timestamp string  `json:"ts"`
	Price     float64 `json:"price"`
}

// PriceSeriesResult represents the result of a price series query
type PriceSeriesResult struct {
	URL    string        `json:"url"`
	Range  string        `json:"range"`
	Points []SeriesPoint `json:"points"`
}
