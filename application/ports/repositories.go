package ports

import (
	"context"
	"time"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	"watchtower-backend/domain/events"
)

// EntryRepository defines the interface for watchlist entry persistence.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation.
type EntryRepository interface {
	// Create persists a brand new entry. The write must be conditional on
	// the key not existing yet, so two concurrent tracks of the same fresh
	// URL resolve to exactly one creation; the loser gets a conflict.
	Create(ctx context.Context, entry *entities.Entry) error

	// Save persists an entry (create or update). Implementations must apply
	// newer-wins semantics: a write carrying an older observation watermark
	// than the stored row loses without clobbering it.
	Save(ctx context.Context, entry *entities.Entry) error

	// GetByKey retrieves an entry by its canonical key.
	GetByKey(ctx context.Context, key valueobjects.CanonicalURL) (*entities.Entry, error)

	// List retrieves all live entries ordered by creation time.
	List(ctx context.Context) ([]*entities.Entry, error)

	// ListLiveKeys returns the canonical keys of all live entries. Used by
	// the scheduler to re-enqueue refresh work.
	ListLiveKeys(ctx context.Context) ([]valueobjects.CanonicalURL, error)

	// Delete removes an entry's stored row. Soft removal goes through
	// Save with a removed entry; Delete is for hard cleanup only.
	Delete(ctx context.Context, key valueobjects.CanonicalURL) error
}

// AlertPage is one page of an alert listing.
type AlertPage struct {
	Alerts     []*entities.Alert
	NextCursor string
}

// AlertQuery narrows an alert listing.
type AlertQuery struct {
	// EntryKey filters to one entry when non-zero.
	EntryKey valueobjects.CanonicalURL

	// UnreadOnly drops alerts already acknowledged.
	UnreadOnly bool

	// Limit caps the page size. Implementations clamp it to [1, 200] and
	// default it to 50 when zero.
	Limit int

	// Cursor resumes a previous listing. Empty starts from the newest alert.
	Cursor string
}

// AlertRepository defines the interface for alert persistence.
type AlertRepository interface {
	// Save persists an alert. Alerts are immutable except for the read flag.
	Save(ctx context.Context, alert *entities.Alert) error

	// GetByID retrieves an alert by its ID.
	GetByID(ctx context.Context, id string) (*entities.Alert, error)

	// List retrieves alerts newest first, paginated by cursor.
	List(ctx context.Context, query AlertQuery) (*AlertPage, error)
}

// ConnectionRepository defines the interface for delivery channel registration.
// In-process deployments back it with memory; the Lambda deployment backs it
// with DynamoDB so every instance sees the same registry.
type ConnectionRepository interface {
	// Save registers or refreshes a connection.
	Save(ctx context.Context, conn *entities.Connection) error

	// GetByID retrieves a connection by its connection ID.
	GetByID(ctx context.Context, connectionID string) (*entities.Connection, error)

	// List retrieves every registered connection.
	List(ctx context.Context) ([]*entities.Connection, error)

	// Delete unregisters a connection. Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, connectionID string) error

	// DeleteIdle unregisters connections whose last ping is older than the
	// cutoff and returns the IDs it removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

// SeriesRange selects the time window and bucket width of a price series.
type SeriesRange string

const (
	SeriesRangeDay   SeriesRange = "day"
	SeriesRangeWeek  SeriesRange = "week"
	SeriesRangeMonth SeriesRange = "month"
)

// Window returns the lookback window and bucket width for the range.
// Unknown ranges fall back to day.
func (r SeriesRange) Window() (window, bucket time.Duration) {
	switch r {
	case SeriesRangeWeek:
		return 7 * 24 * time.Hour, 6 * time.Hour
	case SeriesRangeMonth:
		return 30 * 24 * time.Hour, 24 * time.Hour
	default:
		return 24 * time.Hour, time.Hour
	}
}

// PricePoint is one bucket of a price history series.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

// ObservationLog records price observations for history queries. It is
// append-only; rows age out via TTL rather than explicit deletes.
type ObservationLog interface {
	// Append records a successful observation's price for its entry.
	Append(ctx context.Context, key valueobjects.CanonicalURL, price float64, observedAt time.Time) error

	// Series retrieves bucketed price history for an entry over a range.
	Series(ctx context.Context, key valueobjects.CanonicalURL, rng SeriesRange) ([]PricePoint, error)
}

// EventPublisher defines the interface for publishing domain events to the
// event bus.
type EventPublisher interface {
	// Publish sends a single event.
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events.
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
