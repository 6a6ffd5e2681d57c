// Package index holds the canonical in-memory event cache: id to entry,
// plus a path to id-set reverse map enabling invalidation scoped to the
// file that changed rather than the whole vault.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/taigrr/vaultcal/internal/identity"
	"github.com/taigrr/vaultcal/internal/types"
)

// Store is the two-map index. It is only ever mutated after the backing
// store write has succeeded; it never holds speculative state.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]types.CacheEntry
	byPath map[string]map[string]bool
	ids    *identity.Assigner
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:   make(map[string]types.CacheEntry),
		byPath: make(map[string]map[string]bool),
		ids:    identity.New(),
	}
}

// Add inserts a new entry, assigning a fresh id derived from its location.
func (s *Store) Add(ev types.Event, calendarID string, loc *types.EventLocation) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(ev, calendarID, loc)
}

func (s *Store) addLocked(ev types.Event, calendarID string, loc *types.EventLocation) string {
	hint := ""
	if loc != nil {
		hint = loc.Path
	}
	id := s.ids.Assign(hint)

	s.byID[id] = types.CacheEntry{ID: id, Event: ev, CalendarID: calendarID, Location: loc}
	if loc != nil {
		s.indexPathLocked(loc.Path, id)
	}
	return id
}

// Get returns the entry for an id.
func (s *Store) Get(id string) (types.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byID[id]
	return entry, ok
}

// Update replaces an entry's event value, owning calendar and location in
// one step, keeping the reverse map consistent.
func (s *Store) Update(id string, ev types.Event, calendarID string, loc *types.EventLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}

	if old.Location != nil {
		s.unindexPathLocked(old.Location.Path, id)
	}
	s.byID[id] = types.CacheEntry{ID: id, Event: ev, CalendarID: calendarID, Location: loc}
	if loc != nil {
		s.indexPathLocked(loc.Path, id)
	}
	return nil
}

// Delete removes an entry from both maps and releases its id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	entry, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}
	if entry.Location != nil {
		s.unindexPathLocked(entry.Location.Path, id)
	}
	delete(s.byID, id)
	s.ids.Release(id)
	return nil
}

// ShiftLinesAfter decrements the line number of every entry backed by the
// given path whose line is greater than removed. Called after a backing
// write deleted one line of a note, which shifts every later line up; the
// index must follow or sibling locations stop addressing their text.
func (s *Store) ShiftLinesAfter(path string, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byPath[path] {
		entry := s.byID[id]
		if entry.Location == nil || entry.Location.Line == nil || *entry.Location.Line <= removed {
			continue
		}
		line := *entry.Location.Line - 1
		loc := *entry.Location
		loc.Line = &line
		entry.Location = &loc
		s.byID[id] = entry
	}
}

// IDsForPath returns the ids currently backed by the given path, sorted.
func (s *Store) IDsForPath(path string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id := range s.byPath[path] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupedByCalendar returns every entry, grouped by owning calendar id,
// entries sorted by event id for stable output.
func (s *Store) GroupedByCalendar() map[string][]types.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]types.CacheEntry)
	for _, entry := range s.byID {
		out[entry.CalendarID] = append(out[entry.CalendarID], entry)
	}
	for _, entries := range out {
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	}
	return out
}

// Len returns the number of indexed events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ReconcilePath diffs the fresh scan of one (calendar, path) pair against
// the entries currently indexed there: entries whose location vanished are
// deleted, entries matched by location are updated in place keeping their
// id, and new locations are inserted under fresh ids. The cost is bounded
// by the number of events co-located with the path.
func (s *Store) ReconcilePath(calendarID, path string, fresh []types.SourcedEvent) []types.Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []types.Change

	// Entries this calendar currently has at this path, keyed by location.
	existing := make(map[string]types.CacheEntry)
	for id := range s.byPath[path] {
		entry := s.byID[id]
		if entry.CalendarID == calendarID && entry.Location != nil {
			existing[locationKey(*entry.Location)] = entry
		}
	}

	seen := make(map[string]bool)
	for _, se := range fresh {
		if se.Location == nil {
			continue
		}
		key := locationKey(*se.Location)
		seen[key] = true

		if old, ok := existing[key]; ok {
			s.byID[old.ID] = types.CacheEntry{
				ID: old.ID, Event: se.Event, CalendarID: calendarID, Location: se.Location,
			}
			changes = append(changes, types.Change{ID: old.ID, Kind: types.ChangeUpdated, CalendarID: calendarID})
			continue
		}

		id := s.addLocked(se.Event, calendarID, se.Location)
		changes = append(changes, types.Change{ID: id, Kind: types.ChangeCreated, CalendarID: calendarID})
	}

	for key, entry := range existing {
		if seen[key] {
			continue
		}
		_ = s.deleteLocked(entry.ID)
		changes = append(changes, types.Change{ID: entry.ID, Kind: types.ChangeDeleted, CalendarID: calendarID})
	}

	return changes
}

// ReconcileCalendar replaces every entry of one calendar wholesale. Used
// for read-only remote calendars, whose events have no backing path to
// scope a diff to.
func (s *Store) ReconcileCalendar(calendarID string, fresh []types.SourcedEvent) []types.Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []types.Change
	for id, entry := range s.byID {
		if entry.CalendarID == calendarID {
			_ = s.deleteLocked(id)
			changes = append(changes, types.Change{ID: id, Kind: types.ChangeDeleted, CalendarID: calendarID})
		}
	}
	for _, se := range fresh {
		id := s.addLocked(se.Event, calendarID, se.Location)
		changes = append(changes, types.Change{ID: id, Kind: types.ChangeCreated, CalendarID: calendarID})
	}
	return changes
}

func (s *Store) indexPathLocked(path, id string) {
	set, ok := s.byPath[path]
	if !ok {
		set = make(map[string]bool)
		s.byPath[path] = set
	}
	set[id] = true
}

func (s *Store) unindexPathLocked(path, id string) {
	set, ok := s.byPath[path]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.byPath, path)
	}
}

func locationKey(loc types.EventLocation) string {
	if loc.Line == nil {
		return loc.Path
	}
	return fmt.Sprintf("%s:%d", loc.Path, *loc.Line)
}
