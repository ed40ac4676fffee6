package queries

import "errors"

const (
	// DefaultAlertLimit applies when a listing asks for no explicit limit.
	DefaultAlertLimit = 50
	// MaxAlertLimit caps one page of alerts.
	MaxAlertLimit = 200
)

// ListAlertsQuery represents a query for recent alerts, newest first
type ListAlertsQuery struct {
	// URL filters to the alerts of one entry when set.
	URL string
	// UnreadOnly drops acknowledged alerts.
	UnreadOnly bool
	// Limit caps the page size; zero means DefaultAlertLimit.
	Limit int
	// Cursor resumes a previous page.
	Cursor string
}

// Validate validates the ListAlertsQuery
func (q ListAlertsQuery) Validate() error {
	if q.Limit < 0 || q.Limit > MaxAlertLimit {
		return errors.New("limit out of range")
	}
	return nil
}

// AlertView is one alert in a listing
type AlertView struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Kind      string       `json:"kind"`
	Severity  string       `json:"severity"`
	Payload   AlertPayload `json:"payload"`
	IsRead    bool         `json:"isRead"`
	CreatedAt string       `json:"createdAt"`
}

// AlertPayload carries the before/after values the rule compared
type AlertPayload struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// ListAlertsResult represents one page of alerts
type ListAlertsResult struct {
	Alerts     []AlertView `json:"alerts"`
	NextCursor string      `json:"nextCursor,omitempty"`
}
