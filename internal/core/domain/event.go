package domain

import (
	"fmt"
	"time"
)

// EventName identifies a document lifecycle transition
type EventName string

const (
	EventPublish         EventName = "publish"
	EventUpdate          EventName = "update"
	EventUpdateDebounced EventName = "update.debounced"
	EventDelete          EventName = "delete"
	EventArchive         EventName = "archive"
	EventIndex           EventName = "index"
)

// IsValid returns true if this is a known event name
func (n EventName) IsValid() bool {
	switch n {
	case EventPublish, EventUpdate, EventUpdateDebounced, EventDelete, EventArchive, EventIndex:
		return true
	default:
		return false
	}
}

// IsRemoval returns true for events that remove a document from the index
func (n EventName) IsRemoval() bool {
	return n == EventDelete || n == EventArchive
}

// EventData carries optional event flags
type EventData struct {
	// Force bypasses debounce and staleness checks
	Force bool `json:"force,omitempty"`
}

// LifecycleEvent is a notification from the host about a document change.
type LifecycleEvent struct {
	Name         EventName `json:"name"`
	DocumentID   string    `json:"documentId"`
	TeamID       string    `json:"teamId"`
	CollectionID string    `json:"collectionId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Data         EventData `json:"data"`
}

// Validate checks the event has the fields every handler relies on.
func (e *LifecycleEvent) Validate() error {
	if !e.Name.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Name)
	}
	if e.DocumentID == "" {
		return fmt.Errorf("%w: documentId is required", ErrInvalidInput)
	}
	if e.TeamID == "" {
		return fmt.Errorf("%w: teamId is required", ErrInvalidInput)
	}
	return nil
}

// ForcesReindex returns true if the event requests an immediate reindex
// that bypasses debounce.
func (e *LifecycleEvent) ForcesReindex() bool {
	return e.Name == EventPublish || e.Name == EventIndex || e.Data.Force
}

// Debounced returns the settle event scheduled for an update.
// It keeps the original creation time so staleness can be judged on settle.
func (e *LifecycleEvent) Debounced() *LifecycleEvent {
	d := *e
	d.Name = EventUpdateDebounced
	return &d
}
