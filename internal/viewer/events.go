package viewer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of viewer session event
type EventType string

const (
	EventSessionOpened EventType = "session.opened"
	EventSessionClosed EventType = "session.closed"
	EventStatusChanged EventType = "session.status"
	EventOCRProgress   EventType = "ocr.progress"
	EventOCRResult     EventType = "ocr.result"
	EventOCRFailed     EventType = "ocr.failed"
)

// SessionEvent represents something that happened inside a viewer session
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// NewSessionEvent creates a new session event
func NewSessionEvent(eventType EventType, sessionID string) *SessionEvent {
	return &SessionEvent{
		ID:        fmt.Sprintf("evt_%s", uuid.New().String()[:8]),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// With adds a metadata entry and returns the event for chaining.
func (e *SessionEvent) With(key string, value interface{}) *SessionEvent {
	e.Metadata[key] = value
	return e
}
