package types

import "time"

// Note is a short text record owned by exactly one user.
type Note struct {
	// ID is the unique identifier of the note.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user.
	UserID string `json:"user_id" db:"user_id"`

	// Title is the non-empty headline of the note.
	Title string `json:"title" db:"title"`

	// Content is the non-empty body of the note.
	Content string `json:"content" db:"content"`

	// Tags is the ordered list of labels attached to the note.
	// It is never nil once the note has been persisted.
	Tags []string `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NotePatch carries a partial update. Nil fields are left unchanged.
type NotePatch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// NoteEventType enumerates note lifecycle events.
type NoteEventType string

const (
	NoteCreated NoteEventType = "created"
	NoteUpdated NoteEventType = "updated"
	NoteDeleted NoteEventType = "deleted"
)

// NoteEvent is published to the message broker after a note mutation.
type NoteEvent struct {
	Type       NoteEventType `json:"type"`
	NoteID     string        `json:"note_id"`
	UserID     string        `json:"user_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NoteExport describes an export written to object storage.
type NoteExport struct {
	Key    string `json:"key"`
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}
