package domain

import "time"

// EventPermissionError is the single event kind carried by the error channel.
const EventPermissionError = "permission-error"

// PermissionDeniedEvent is the audit record published for every denied operation.
type PermissionDeniedEvent struct {
	EventID        string
	Path           string
	Operation      Operation
	RequestPayload map[string]any
	SubjectID      string
	OccurredAt     time.Time
}

// ChangeEvent announces that a document was written. Subscribers use it to refresh snapshots.
type ChangeEvent struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	At         time.Time `json:"at"`
}

// Toast is a transient user-facing notification.
type Toast struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}
