// Package syncer is the public mutation surface of the engine. Every
// create, update, delete and move flows through the Coordinator, which
// orchestrates the backing-store write first and the index commit second:
// if the write fails, the index is left exactly as it was and the error
// propagates unmodified.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/taigrr/vaultcal/internal/calendar"
	"github.com/taigrr/vaultcal/internal/index"
	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/notify"
	"github.com/taigrr/vaultcal/internal/types"
)

// Coordinator mediates between the calendar registry and the index.
type Coordinator struct {
	registry *calendar.Registry
	store    *index.Store
	bus      *notify.Bus
}

// New creates a Coordinator over a registry and an empty index.
func New(registry *calendar.Registry, store *index.Store, bus *notify.Bus) *Coordinator {
	if store == nil {
		store = index.New()
	}
	if bus == nil {
		bus = notify.NewBus()
	}
	return &Coordinator{registry: registry, store: store, bus: bus}
}

// Bus returns the change-notification bus for subscribers.
func (c *Coordinator) Bus() *notify.Bus { return c.bus }

// Registry returns the calendar registry.
func (c *Coordinator) Registry() *calendar.Registry { return c.registry }

// InitialScan populates the index by enumerating every registered
// calendar. Calendars that fail to enumerate are logged and skipped so one
// broken feed cannot block startup.
func (c *Coordinator) InitialScan(ctx context.Context) {
	for _, cal := range c.registry.List() {
		info := cal.Info()
		events, err := cal.GetEvents(ctx)
		if err != nil {
			applog.Error("scan: calendar enumeration failed", err, "calendar", info.ID)
			continue
		}
		for _, se := range events {
			c.store.Add(se.Event, info.ID, se.Location)
		}
		applog.Info("scan: calendar indexed", "calendar", info.ID, "event_count", len(events))
	}
}

// AddEvent creates an event in the given calendar and returns its assigned
// id. The index is updated only after the backing write succeeds.
func (c *Coordinator) AddEvent(ctx context.Context, calendarID string, ev types.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	cal, err := c.registry.Get(calendarID)
	if err != nil {
		return "", err
	}
	ed, ok := calendar.AsEditable(cal)
	if !ok {
		return "", fmt.Errorf("%w: calendar %q is read-only", types.ErrUnsupported, calendarID)
	}

	loc, err := ed.CreateEvent(ev)
	if err != nil {
		return "", err
	}

	id := c.store.Add(ev, calendarID, &loc)
	c.bus.Publish(types.Change{ID: id, Kind: types.ChangeCreated, CalendarID: calendarID})
	return id, nil
}

// UpdateEventWithID rewrites an event's content in its backing store and
// then commits the new value and the (possibly relocated) location to the
// index atomically with respect to the index's own state.
func (c *Coordinator) UpdateEventWithID(ctx context.Context, id string, ev types.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	entry, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}

	// Updating to the identical value is a no-op.
	if reflect.DeepEqual(entry.Event, ev) {
		return nil
	}

	// Re-resolve the calendar fresh; the entry may predate a suspension.
	ed, loc, err := c.editableFor(entry)
	if err != nil {
		return err
	}

	newLoc, err := ed.ModifyEvent(loc, ev)
	if err != nil {
		return err
	}

	if err := c.store.Update(id, ev, entry.CalendarID, &newLoc); err != nil {
		return err
	}
	// A cross-note rewrite removed the old line; later siblings shift up.
	if loc.Line != nil && newLoc.Path != loc.Path {
		c.store.ShiftLinesAfter(loc.Path, *loc.Line)
	}
	c.bus.Publish(types.Change{ID: id, Kind: types.ChangeUpdated, CalendarID: entry.CalendarID})
	return nil
}

// MoveEventToCalendar relocates an event into another editable calendar,
// preserving its id and content. When the source cannot relocate its
// backing data structurally, the move degrades to delete-then-create.
func (c *Coordinator) MoveEventToCalendar(ctx context.Context, id, newCalendarID string) error {
	entry, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}
	if entry.CalendarID == newCalendarID {
		return nil
	}

	target, err := c.registry.Get(newCalendarID)
	if err != nil {
		return err
	}
	targetEd, ok := calendar.AsEditable(target)
	if !ok {
		return fmt.Errorf("%w: calendar %q is read-only", types.ErrUnsupported, newCalendarID)
	}

	sourceEd, oldLoc, err := c.editableFor(entry)
	if err != nil {
		return err
	}

	newLoc, err := targetEd.GetNewLocation(entry.Location, entry.Event)
	if err != nil {
		return err
	}

	if err := sourceEd.Move(oldLoc, newLoc); err != nil {
		if !errors.Is(err, types.ErrUnsupported) {
			return err
		}
		// Fallback position pair: remove from the source, recreate in the
		// target.
		if err := sourceEd.DeleteEvent(oldLoc); err != nil {
			return err
		}
		if oldLoc.Line != nil {
			c.store.ShiftLinesAfter(oldLoc.Path, *oldLoc.Line)
		}
		newLoc, err = targetEd.CreateEvent(entry.Event)
		if err != nil {
			// The source copy is already gone; recreate it so a failed move
			// leaves the event where it was.
			restored, restoreErr := sourceEd.CreateEvent(entry.Event)
			if restoreErr != nil {
				applog.Error("move: restore after failed create lost the event", restoreErr,
					"event", id, "calendar", entry.CalendarID)
				if c.store.Delete(id) == nil {
					c.bus.Publish(types.Change{ID: id, Kind: types.ChangeDeleted, CalendarID: entry.CalendarID})
				}
				return err
			}
			if upErr := c.store.Update(id, entry.Event, entry.CalendarID, &restored); upErr != nil {
				return upErr
			}
			return err
		}
	}

	if err := c.store.Update(id, entry.Event, newCalendarID, &newLoc); err != nil {
		return err
	}
	c.bus.Publish(types.Change{ID: id, Kind: types.ChangeMoved, CalendarID: newCalendarID})
	return nil
}

// DeleteEvent removes an event from its backing store, then from the index.
func (c *Coordinator) DeleteEvent(ctx context.Context, id string) error {
	entry, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}

	ed, loc, err := c.editableFor(entry)
	if err != nil {
		return err
	}

	if err := ed.DeleteEvent(loc); err != nil {
		return err
	}

	if err := c.store.Delete(id); err != nil {
		return err
	}
	// Removing a line shifts later siblings in the same note up by one.
	if loc.Line != nil {
		c.store.ShiftLinesAfter(loc.Path, *loc.Line)
	}
	c.bus.Publish(types.Change{ID: id, Kind: types.ChangeDeleted, CalendarID: entry.CalendarID})
	return nil
}

// GetEventByID returns the cached event value for an id.
func (c *Coordinator) GetEventByID(id string) (types.Event, bool) {
	entry, ok := c.store.Get(id)
	if !ok {
		return types.Event{}, false
	}
	return entry.Event, true
}

// GetEntryByID returns the full cache entry for an id, including the owning
// calendar and the backing location (nil for remote events).
func (c *Coordinator) GetEntryByID(id string) (types.CacheEntry, bool) {
	return c.store.Get(id)
}

// GetInfoForEditableEvent returns the owning calendar and location of an
// event that accepts mutation.
func (c *Coordinator) GetInfoForEditableEvent(id string) (types.EditableInfo, error) {
	entry, ok := c.store.Get(id)
	if !ok {
		return types.EditableInfo{}, fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}
	if entry.Location == nil {
		return types.EditableInfo{}, fmt.Errorf("%w: event %q is read-only", types.ErrUnsupported, id)
	}
	return types.EditableInfo{CalendarID: entry.CalendarID, Location: *entry.Location}, nil
}

// GetAllEvents returns every cache entry grouped by owning calendar.
func (c *Coordinator) GetAllEvents() map[string][]types.CacheEntry {
	return c.store.GroupedByCalendar()
}

// OnFileChange rescans the changed path against every calendar that can be
// affected and patches the index with the diff. Calendars that used to own
// events at the path but no longer contain it (a shelve property removed,
// a file deleted) are reconciled against an empty set.
func (c *Coordinator) OnFileChange(ctx context.Context, path string) error {
	affected := make(map[string]calendar.Calendar)
	for _, cal := range c.registry.ContainingPath(path) {
		affected[cal.Info().ID] = cal
	}
	for _, id := range c.store.IDsForPath(path) {
		entry, ok := c.store.Get(id)
		if !ok {
			continue
		}
		if _, have := affected[entry.CalendarID]; have {
			continue
		}
		if cal, err := c.registry.Get(entry.CalendarID); err == nil {
			affected[entry.CalendarID] = cal
		}
	}

	for calendarID, cal := range affected {
		fresh, err := cal.EventsAt(ctx, path)
		if err != nil {
			return err
		}
		changes := c.store.ReconcilePath(calendarID, path, fresh)
		c.bus.PublishAll(changes)
	}
	return nil
}

// RefreshRemotes re-fetches every remote calendar and replaces its slice
// of the index.
func (c *Coordinator) RefreshRemotes(ctx context.Context) error {
	var firstErr error
	for _, cal := range c.registry.List() {
		info := cal.Info()
		if info.Editable {
			continue
		}
		if r, ok := cal.(interface{ Refresh(context.Context) error }); ok {
			if err := r.Refresh(ctx); err != nil {
				applog.Error("refresh: remote fetch failed", err, "calendar", info.ID)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		events, err := cal.GetEvents(ctx)
		if err != nil {
			applog.Error("refresh: remote enumeration failed", err, "calendar", info.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		changes := c.store.ReconcileCalendar(info.ID, events)
		c.bus.PublishAll(changes)
	}
	return firstErr
}

// editableFor re-resolves an entry's calendar and location fresh at the
// start of a mutation, never trusting references captured earlier.
func (c *Coordinator) editableFor(entry types.CacheEntry) (calendar.Editable, types.EventLocation, error) {
	cal, err := c.registry.Get(entry.CalendarID)
	if err != nil {
		return nil, types.EventLocation{}, err
	}
	ed, ok := calendar.AsEditable(cal)
	if !ok {
		return nil, types.EventLocation{}, fmt.Errorf("%w: calendar %q is read-only", types.ErrUnsupported, entry.CalendarID)
	}
	if entry.Location == nil {
		return nil, types.EventLocation{}, fmt.Errorf("%w: event %q has no backing location", types.ErrUnsupported, entry.ID)
	}
	return ed, *entry.Location, nil
}
