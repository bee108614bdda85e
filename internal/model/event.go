package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeFileAdded         EventType = "file_added"
	EventTypeFileRejected      EventType = "file_rejected"
	EventTypeFileRemoved       EventType = "file_removed"
	EventTypeExchangeFailed    EventType = "exchange_failed"
	EventTypeResponseDiscarded EventType = "response_discarded"
)

// SessionEvent is a notable session state transition published to observers.
type SessionEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
