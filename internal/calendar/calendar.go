// Package calendar defines the calendar capability surface and its
// concrete variants: full-note, daily-note, shelve, and read-only remotes.
package calendar

import (
	"context"

	"github.com/taigrr/vaultcal/internal/types"
)

// Calendar is the read capability every registered calendar provides.
type Calendar interface {
	// Info returns the calendar's stable id and display metadata.
	Info() types.CalendarInfo

	// GetEvents enumerates every event the calendar currently holds.
	// Locations are nil for read-only calendars. An empty result is valid.
	GetEvents(ctx context.Context) ([]types.SourcedEvent, error)

	// ContainsPath reports whether a change to the given vault path can
	// affect this calendar's events. Shelve calendars evaluate the file's
	// current metadata, not its path.
	ContainsPath(path string) bool

	// EventsAt enumerates the events backed by one vault path, for scoped
	// rescans. Remote calendars always return nil.
	EventsAt(ctx context.Context, path string) ([]types.SourcedEvent, error)
}

// Editable is the mutation capability of writable calendars. Operations a
// variant structurally cannot support fail with types.ErrUnsupported.
type Editable interface {
	Calendar

	// CreateEvent persists a new event and returns its location.
	CreateEvent(ev types.Event) (types.EventLocation, error)

	// ModifyEvent rewrites the event at loc and returns the resulting
	// location, which may differ when the new value forces a rename.
	ModifyEvent(loc types.EventLocation, ev types.Event) (types.EventLocation, error)

	// DeleteEvent removes the event at loc from the backing store.
	DeleteEvent(loc types.EventLocation) error

	// GetNewLocation computes where the given event would live in this
	// calendar, for cross-calendar moves.
	GetNewLocation(old *types.EventLocation, ev types.Event) (types.EventLocation, error)

	// Move relocates the backing data from one location to another,
	// typically into a different calendar's territory.
	Move(from, to types.EventLocation) error
}

// AsEditable returns the mutation surface of cal, or false when the
// calendar is read-only.
func AsEditable(cal Calendar) (Editable, bool) {
	if !cal.Info().Editable {
		return nil, false
	}
	ed, ok := cal.(Editable)
	return ed, ok
}
