package types

// CalendarKind identifies the backing-store variant of a calendar.
type CalendarKind string

const (
	KindFullNote     CalendarKind = "local-frontmatter"
	KindDailyNote    CalendarKind = "daily-note"
	KindShelve       CalendarKind = "shelve"
	KindRemoteICS    CalendarKind = "remote-ics"
	KindRemoteGoogle CalendarKind = "remote-google"
)

type (
	// CalendarInfo is the display and capability metadata of a registered
	// calendar. IDs are globally unique and stable across restarts.
	CalendarInfo struct {
		ID       string       `json:"id"`
		Kind     CalendarKind `json:"kind"`
		Name     string       `json:"name"`
		Color    string       `json:"color,omitempty"`
		Editable bool         `json:"editable"`
	}

	// EventLocation points at where an editable event's data physically
	// lives. A nil Line means the whole file (frontmatter event); a
	// non-nil Line addresses one inline list item.
	EventLocation struct {
		Path string `json:"path"`
		Line *int   `json:"line,omitempty"`
	}

	// SourcedEvent pairs an event with its location as enumerated by a
	// calendar. Location is nil for read-only (remote) events.
	SourcedEvent struct {
		Event    Event
		Location *EventLocation
	}
)

// SameLocation reports whether two locations address the same slot.
func SameLocation(a, b *EventLocation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Path != b.Path {
		return false
	}
	if (a.Line == nil) != (b.Line == nil) {
		return false
	}
	return a.Line == nil || *a.Line == *b.Line
}
