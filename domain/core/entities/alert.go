package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "watchtower-backend/pkg/errors"
)

// AlertKind identifies which detection rule produced an alert
type AlertKind string

const (
	AlertKindPriceJump  AlertKind = "price_jump"
	AlertKindStockout   AlertKind = "stockout"
	AlertKindTrendSpike AlertKind = "trend_spike"
)

// AlertSeverity grades how notable a change is
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// AlertPayload carries the before/after values that triggered the rule.
type AlertPayload struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// Alert records one notable change on a tracked entry. Alerts are immutable
// except for the read flag and are retained for audit.
type Alert struct {
	id        string
	entryKey  string
	kind      AlertKind
	severity  AlertSeverity
	payload   AlertPayload
	createdAt time.Time
	isRead    bool
}

// NewAlert creates an alert for a fired detection rule.
func NewAlert(entryKey string, kind AlertKind, severity AlertSeverity, payload AlertPayload) (*Alert, error) {
	if entryKey == "" {
		return nil, pkgerrors.NewValidationError("alert entry key cannot be empty")
	}

	return &Alert{
		id:        uuid.New().String(),
		entryKey:  entryKey,
		kind:      kind,
		severity:  severity,
		payload:   payload,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructAlert rebuilds an alert from persisted state.
func ReconstructAlert(id, entryKey string, kind AlertKind, severity AlertSeverity, payload AlertPayload, createdAt time.Time, isRead bool) *Alert {
	return &Alert{
		id:        id,
		entryKey:  entryKey,
		kind:      kind,
		severity:  severity,
		payload:   payload,
		createdAt: createdAt,
		isRead:    isRead,
	}
}

func (a *Alert) ID() string              { return a.id }
func (a *Alert) EntryKey() string        { return a.entryKey }
func (a *Alert) Kind() AlertKind         { return a.kind }
func (a *Alert) Severity() AlertSeverity { return a.severity }
func (a *Alert) Payload() AlertPayload   { return a.payload }
func (a *Alert) CreatedAt() time.Time    { return a.createdAt }
func (a *Alert) IsRead() bool            { return a.isRead }

// MarkRead flags the alert as acknowledged. Marking twice is a no-op.
func (a *Alert) MarkRead() {
	a.isRead = true
}
