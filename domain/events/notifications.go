package events

import (
	"encoding/json"
	"fmt"
)

// Wire types for live push messages. Clients switch on the "type" field.
const (
	TypeRowUpserted  = "watchlist.row_upserted"
	TypeAlertCreated = "alerts.created"
	TypeJobFailed    = "watchlist.job_failed"
)

// Notification is the tagged union of messages pushed to live subscribers.
// Exactly one concrete variant exists per wire type; dispatch is a single
// switch on the concrete type rather than ad hoc string comparison.
type Notification interface {
	NotificationType() string
}

// EntryRow is the wire representation of a watchlist row inside a push
// message.
type EntryRow struct {
	URL         string   `json:"url"`
	Product     string   `json:"product"`
	Price       *float64 `json:"price"`
	StockStatus string   `json:"stock_status"`
	ImageURL    string   `json:"image_url,omitempty"`
	Status      string   `json:"status"`
	UpdatedAt   int64    `json:"updated_at"`
}

// RowUpserted announces that an entry's snapshot changed.
type RowUpserted struct {
	Row EntryRow `json:"row"`
}

func (RowUpserted) NotificationType() string { return TypeRowUpserted }

// AlertRecord is the wire representation of an alert inside a push message.
type AlertRecord struct {
	ID        string      `json:"id"`
	EntryKey  string      `json:"entry_key"`
	Kind      string      `json:"kind"`
	Severity  string      `json:"severity"`
	Before    interface{} `json:"before,omitempty"`
	After     interface{} `json:"after,omitempty"`
	CreatedAt int64       `json:"created_at"`
}

// AlertCreatedPush announces a persisted alert.
type AlertCreatedPush struct {
	Alert AlertRecord `json:"alert"`
}

func (AlertCreatedPush) NotificationType() string { return TypeAlertCreated }

// JobFailed tells subscribers a tracked URL could not be refreshed, so UIs
// can stop showing an "adding..." placeholder.
type JobFailed struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

func (JobFailed) NotificationType() string { return TypeJobFailed }

// envelope is the outer JSON shape on the wire.
type envelope struct {
	Type string `json:"type"`
	RowUpserted
	AlertCreatedPush
	JobFailed
}

// EncodeNotification marshals a notification into its wire envelope.
func EncodeNotification(n Notification) ([]byte, error) {
	switch v := n.(type) {
	case RowUpserted:
		return json.Marshal(struct {
			Type string   `json:"type"`
			Row  EntryRow `json:"row"`
		}{TypeRowUpserted, v.Row})
	case AlertCreatedPush:
		return json.Marshal(struct {
			Type  string      `json:"type"`
			Alert AlertRecord `json:"alert"`
		}{TypeAlertCreated, v.Alert})
	case JobFailed:
		return json.Marshal(struct {
			Type   string `json:"type"`
			URL    string `json:"url"`
			Reason string `json:"reason"`
		}{TypeJobFailed, v.URL, v.Reason})
	default:
		return nil, fmt.Errorf("unknown notification type %T", n)
	}
}

// DecodeNotification parses a wire envelope back into its typed variant.
func DecodeNotification(data []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed notification: %w", err)
	}

	switch env.Type {
	case TypeRowUpserted:
		return RowUpserted{Row: env.Row}, nil
	case TypeAlertCreated:
		return AlertCreatedPush{Alert: env.Alert}, nil
	case TypeJobFailed:
		return JobFailed{URL: env.URL, Reason: env.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", env.Type)
	}
}
