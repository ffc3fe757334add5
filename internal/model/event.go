package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names an audited step of a session.
type EventKind string

const (
	EventRedeemed      EventKind = "redeemed"
	EventStarted       EventKind = "started"
	EventBlockSelected EventKind = "block_selected"
	EventAnswered      EventKind = "answered"
	EventFinished      EventKind = "finished"
)

// SessionEvent is an append-only audit record.
type SessionEvent struct {
	SessionID uuid.UUID              `json:"session_id"`
	Kind      EventKind              `json:"kind"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
