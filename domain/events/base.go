package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Entry Events

// EntryTracked is raised when a URL is accepted onto the watchlist
type EntryTracked struct {
	BaseEvent
	Key    string `json:"key"`
	UserID string `json:"user_id,omitempty"`
}

// NewEntryTracked creates an EntryTracked event
func NewEntryTracked(key, userID string, timestamp time.Time) EntryTracked {
	return EntryTracked{
		BaseEvent: BaseEvent{
			AggregateID: key,
			EventType:   "entry.tracked",
			Timestamp:   timestamp,
			Version:     1,
		},
		Key:    key,
		UserID: userID,
	}
}

// EntryRemoved is raised when a watchlist entry is soft-deleted
type EntryRemoved struct {
	BaseEvent
	Key string `json:"key"`
}

// NewEntryRemoved creates an EntryRemoved event
func NewEntryRemoved(key string, timestamp time.Time) EntryRemoved {
	return EntryRemoved{
		BaseEvent: BaseEvent{
			AggregateID: key,
			EventType:   "entry.removed",
			Timestamp:   timestamp,
			Version:     1,
		},
		Key: key,
	}
}

// AlertCreated is raised when a detection rule fires and the alert has been
// durably persisted
type AlertCreated struct {
	BaseEvent
	AlertID  string `json:"alert_id"`
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
}

// NewAlertCreated creates an AlertCreated event
func NewAlertCreated(alertID, key, kind, severity string, timestamp time.Time) AlertCreated {
	return AlertCreated{
		BaseEvent: BaseEvent{
			AggregateID: alertID,
			EventType:   "alert.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		AlertID:  alertID,
		Key:      key,
		Kind:     kind,
		Severity: severity,
	}
}
