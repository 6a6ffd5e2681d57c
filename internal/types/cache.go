package types

type (
	// CacheEntry is one indexed event: its stable id, current value,
	// owning calendar and backing location. Location is nil exactly when
	// the owning calendar is read-only.
	CacheEntry struct {
		ID         string         `json:"id"`
		Event      Event          `json:"event"`
		CalendarID string         `json:"calendarId"`
		Location   *EventLocation `json:"location,omitempty"`
	}

	// EditableInfo is returned for events that accept mutation.
	EditableInfo struct {
		CalendarID string        `json:"calendarId"`
		Location   EventLocation `json:"location"`
	}
)

// ChangeKind classifies a change notification.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeMoved   ChangeKind = "moved"
)

// Change is emitted on the notification bus after the index commits.
type Change struct {
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	CalendarID string     `json:"calendarId"`
}
