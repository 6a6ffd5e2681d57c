package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taigrr/vaultcal/internal/calendar"
	"github.com/taigrr/vaultcal/internal/filesystem"
	"github.com/taigrr/vaultcal/internal/index"
	"github.com/taigrr/vaultcal/internal/notify"
	"github.com/taigrr/vaultcal/internal/types"
)

func setup(t *testing.T) (string, *filesystem.Service, *Coordinator) {
	t.Helper()
	vault := t.TempDir()
	fs := filesystem.New(vault, nil, nil)

	registry := calendar.NewRegistry()
	if err := registry.Register(calendar.NewFullNote(fs, types.CalendarInfo{ID: "work"}, "work")); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(calendar.NewFullNote(fs, types.CalendarInfo{ID: "home"}, "home")); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(calendar.NewDailyNote(fs, types.CalendarInfo{ID: "daily"}, "daily")); err != nil {
		t.Fatal(err)
	}

	return vault, fs, New(registry, index.New(), notify.NewBus())
}

func writeNote(t *testing.T, vault, rel, content string) {
	t.Helper()
	full := filepath.Join(vault, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func timedEvent(title, date string) types.Event {
	return types.Event{
		Type: types.TypeSingle, Title: title, Date: date,
		StartTime: "10:00", EndTime: "11:00",
	}
}

func TestCoordinator_AddGetDeleteLifecycle(t *testing.T) {
	_, fs, c := setup(t)
	ctx := context.Background()

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	got, ok := c.GetEventByID(id)
	if !ok || got.Title != "Standup" {
		t.Fatalf("GetEventByID() = %+v, %v", got, ok)
	}

	info, err := c.GetInfoForEditableEvent(id)
	if err != nil {
		t.Fatalf("GetInfoForEditableEvent() error = %v", err)
	}
	if info.CalendarID != "work" || !fs.Exists(info.Location.Path) {
		t.Errorf("info = %+v", info)
	}

	if err := c.DeleteEvent(ctx, id); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if _, ok := c.GetEventByID(id); ok {
		t.Error("event still indexed after delete")
	}
	if fs.Exists(info.Location.Path) {
		t.Error("backing note still exists after delete")
	}

	if err := c.DeleteEvent(ctx, id); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestCoordinator_AddEventValidatesFirst(t *testing.T) {
	_, fs, c := setup(t)

	bad := types.Event{Type: types.TypeSingle, Title: "", Date: "2024-01-15", AllDay: true}
	if _, err := c.AddEvent(context.Background(), "work", bad); !errors.Is(err, types.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}

	// Nothing may have been written.
	notes, _ := fs.ListNotes("")
	if len(notes) != 0 {
		t.Errorf("vault not empty after rejected add: %v", notes)
	}
}

func TestCoordinator_AddEventUnknownCalendar(t *testing.T) {
	_, _, c := setup(t)

	if _, err := c.AddEvent(context.Background(), "nope", timedEvent("X", "2024-01-15")); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCoordinator_UpdateEvent(t *testing.T) {
	_, _, c := setup(t)
	ctx := context.Background()

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}

	updated := timedEvent("Standup", "2024-01-16")
	if err := c.UpdateEventWithID(ctx, id, updated); err != nil {
		t.Fatalf("UpdateEventWithID() error = %v", err)
	}

	got, _ := c.GetEventByID(id)
	if got.Date != "2024-01-16" {
		t.Errorf("Date = %q, want updated value", got.Date)
	}

	// The backing note was renamed; the index must follow.
	info, err := c.GetInfoForEditableEvent(id)
	if err != nil {
		t.Fatal(err)
	}
	if info.Location.Path != "work/2024-01-16 Standup.md" {
		t.Errorf("Path = %q", info.Location.Path)
	}
}

func TestCoordinator_UpdateIdenticalValueIsNoOp(t *testing.T) {
	_, _, c := setup(t)
	ctx := context.Background()

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}

	var notified int
	c.Bus().Subscribe(func(types.Change) { notified++ })

	if err := c.UpdateEventWithID(ctx, id, timedEvent("Standup", "2024-01-15")); err != nil {
		t.Fatalf("no-op update error = %v", err)
	}
	if notified != 0 {
		t.Errorf("no-op update published %d changes", notified)
	}
}

func TestCoordinator_MovePreservesID(t *testing.T) {
	_, fs, c := setup(t)
	ctx := context.Background()

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.MoveEventToCalendar(ctx, id, "home"); err != nil {
		t.Fatalf("MoveEventToCalendar() error = %v", err)
	}

	info, err := c.GetInfoForEditableEvent(id)
	if err != nil {
		t.Fatalf("id lost across move: %v", err)
	}
	if info.CalendarID != "home" {
		t.Errorf("CalendarID = %q, want home", info.CalendarID)
	}
	if !fs.Exists("home/2024-01-15 Standup.md") {
		t.Error("note missing from target directory")
	}
	if fs.Exists("work/2024-01-15 Standup.md") {
		t.Error("note still present in source directory")
	}

	got, _ := c.GetEventByID(id)
	if got.Title != "Standup" {
		t.Errorf("event content changed across move: %+v", got)
	}
}

func TestCoordinator_MoveFallsBackToDeleteCreate(t *testing.T) {
	_, fs, c := setup(t)
	ctx := context.Background()

	// Daily-note events cannot be moved structurally, so a move out of the
	// daily calendar degrades to delete-then-create.
	ev := types.Event{
		Type: types.TypeSingle, Title: "Standup", Date: "2024-01-15",
		StartTime: "10:00", Task: &types.Task{Done: false},
	}
	id, err := c.AddEvent(ctx, "daily", ev)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.MoveEventToCalendar(ctx, id, "work"); err != nil {
		t.Fatalf("MoveEventToCalendar() error = %v", err)
	}

	info, err := c.GetInfoForEditableEvent(id)
	if err != nil {
		t.Fatal(err)
	}
	if info.CalendarID != "work" || info.Location.Line != nil {
		t.Errorf("info = %+v", info)
	}

	note, err := fs.ReadNote("daily/2024-01-15.md")
	if err == nil && strings.Contains(note.OriginalContent, "Standup") {
		t.Errorf("source line still present: %q", note.OriginalContent)
	}
}

func TestCoordinator_DailyNoteSiblingsStayAddressable(t *testing.T) {
	vault, fs, c := setup(t)
	ctx := context.Background()

	writeNote(t, vault, "daily/2024-01-15.md",
		"- [ ] First [startTime:: 09:00]\n- [ ] Second [startTime:: 10:00]\n- [ ] Third [startTime:: 11:00]\n")
	c.InitialScan(ctx)

	byTitle := map[string]string{}
	for _, entry := range c.GetAllEvents()["daily"] {
		byTitle[entry.Event.Title] = entry.ID
	}
	if len(byTitle) != 3 {
		t.Fatalf("indexed %d events, want 3", len(byTitle))
	}

	// Removing the first line shifts every later sibling up by one.
	if err := c.DeleteEvent(ctx, byTitle["First"]); err != nil {
		t.Fatal(err)
	}

	t.Run("update through a shifted sibling", func(t *testing.T) {
		renamed := types.Event{
			Type: types.TypeSingle, Title: "Third renamed", Date: "2024-01-15",
			StartTime: "11:00", Task: &types.Task{Done: false},
		}
		if err := c.UpdateEventWithID(ctx, byTitle["Third"], renamed); err != nil {
			t.Fatalf("UpdateEventWithID() error = %v", err)
		}

		note, err := fs.ReadNote("daily/2024-01-15.md")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(note.OriginalContent, "- [ ] Third [") {
			t.Errorf("old line survived the update: %q", note.OriginalContent)
		}
		if strings.Count(note.OriginalContent, "Third renamed") != 1 {
			t.Errorf("renamed line not written exactly once: %q", note.OriginalContent)
		}
	})

	t.Run("delete through a shifted sibling", func(t *testing.T) {
		if err := c.DeleteEvent(ctx, byTitle["Second"]); err != nil {
			t.Fatalf("DeleteEvent() error = %v", err)
		}

		note, err := fs.ReadNote("daily/2024-01-15.md")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(note.OriginalContent, "Second") {
			t.Errorf("deleted line still present: %q", note.OriginalContent)
		}
		if !strings.Contains(note.OriginalContent, "Third renamed") {
			t.Errorf("sibling line lost: %q", note.OriginalContent)
		}
	})

	t.Run("cross-date update shifts the old note", func(t *testing.T) {
		writeNote(t, vault, "daily/2024-01-16.md",
			"- [ ] Early [startTime:: 08:00]\n- [ ] Late [startTime:: 17:00]\n")
		if err := c.OnFileChange(ctx, "daily/2024-01-16.md"); err != nil {
			t.Fatal(err)
		}
		var earlyID, lateID string
		for _, entry := range c.GetAllEvents()["daily"] {
			switch entry.Event.Title {
			case "Early":
				earlyID = entry.ID
			case "Late":
				lateID = entry.ID
			}
		}

		moved := types.Event{
			Type: types.TypeSingle, Title: "Early", Date: "2024-01-17",
			StartTime: "08:00", Task: &types.Task{Done: false},
		}
		if err := c.UpdateEventWithID(ctx, earlyID, moved); err != nil {
			t.Fatal(err)
		}

		// The sibling in the old note must still be addressable.
		if err := c.DeleteEvent(ctx, lateID); err != nil {
			t.Fatalf("DeleteEvent() on the shifted sibling error = %v", err)
		}
		note, err := fs.ReadNote("daily/2024-01-16.md")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(note.OriginalContent, "Late") {
			t.Errorf("deleted line still present: %q", note.OriginalContent)
		}
	})
}

func TestCoordinator_MoveToSameCalendarIsNoOp(t *testing.T) {
	_, _, c := setup(t)
	ctx := context.Background()

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.MoveEventToCalendar(ctx, id, "work"); err != nil {
		t.Fatalf("same-calendar move error = %v", err)
	}
}

func TestCoordinator_InitialScan(t *testing.T) {
	vault, _, c := setup(t)
	writeNote(t, vault, "work/2024-01-15 Standup.md",
		"---\ntitle: Standup\ndate: \"2024-01-15\"\nallDay: true\n---\n")
	writeNote(t, vault, "daily/2024-01-16.md", "- [ ] Review [startTime:: 14:00]\n")

	c.InitialScan(context.Background())

	grouped := c.GetAllEvents()
	if len(grouped["work"]) != 1 {
		t.Errorf("work entries = %+v", grouped["work"])
	}
	if len(grouped["daily"]) != 1 {
		t.Errorf("daily entries = %+v", grouped["daily"])
	}
}

func TestCoordinator_OnFileChange(t *testing.T) {
	vault, _, c := setup(t)
	ctx := context.Background()

	writeNote(t, vault, "work/2024-01-15 Standup.md",
		"---\ntitle: Standup\ndate: \"2024-01-15\"\nallDay: true\n---\n")
	c.InitialScan(ctx)

	grouped := c.GetAllEvents()
	id := grouped["work"][0].ID

	t.Run("external edit updates in place", func(t *testing.T) {
		writeNote(t, vault, "work/2024-01-15 Standup.md",
			"---\ntitle: Standup moved\ndate: \"2024-01-15\"\nallDay: true\n---\n")

		if err := c.OnFileChange(ctx, "work/2024-01-15 Standup.md"); err != nil {
			t.Fatalf("OnFileChange() error = %v", err)
		}

		got, ok := c.GetEventByID(id)
		if !ok {
			t.Fatal("id changed across an in-place edit")
		}
		if got.Title != "Standup moved" {
			t.Errorf("Title = %q", got.Title)
		}
	})

	t.Run("external delete removes the entry", func(t *testing.T) {
		if err := os.Remove(filepath.Join(vault, "work", "2024-01-15 Standup.md")); err != nil {
			t.Fatal(err)
		}

		if err := c.OnFileChange(ctx, "work/2024-01-15 Standup.md"); err != nil {
			t.Fatalf("OnFileChange() error = %v", err)
		}
		if _, ok := c.GetEventByID(id); ok {
			t.Error("entry survived the backing file's deletion")
		}
	})
}

func TestCoordinator_OnFileChangeUntrackedPath(t *testing.T) {
	_, _, c := setup(t)
	if err := c.OnFileChange(context.Background(), "random/note.md"); err != nil {
		t.Errorf("untracked path error = %v, want nil", err)
	}
}

// failingCalendar rejects every write. Used to prove the index never
// commits when the backing store fails.
type failingCalendar struct {
	info types.CalendarInfo
}

func (f *failingCalendar) Info() types.CalendarInfo { return f.info }
func (f *failingCalendar) ContainsPath(string) bool { return false }

func (f *failingCalendar) GetEvents(context.Context) ([]types.SourcedEvent, error) {
	return nil, nil
}

func (f *failingCalendar) EventsAt(context.Context, string) ([]types.SourcedEvent, error) {
	return nil, nil
}

func (f *failingCalendar) CreateEvent(types.Event) (types.EventLocation, error) {
	return types.EventLocation{}, fmt.Errorf("%w: disk full", types.ErrIO)
}

func (f *failingCalendar) ModifyEvent(types.EventLocation, types.Event) (types.EventLocation, error) {
	return types.EventLocation{}, fmt.Errorf("%w: disk full", types.ErrIO)
}

func (f *failingCalendar) DeleteEvent(types.EventLocation) error {
	return fmt.Errorf("%w: disk full", types.ErrIO)
}

func (f *failingCalendar) GetNewLocation(*types.EventLocation, types.Event) (types.EventLocation, error) {
	return types.EventLocation{Path: "broken/x.md"}, nil
}

func (f *failingCalendar) Move(types.EventLocation, types.EventLocation) error {
	return fmt.Errorf("%w: disk full", types.ErrIO)
}

func TestCoordinator_WriteThroughFailureLeavesIndexUntouched(t *testing.T) {
	registry := calendar.NewRegistry()
	if err := registry.Register(&failingCalendar{info: types.CalendarInfo{ID: "broken", Editable: true}}); err != nil {
		t.Fatal(err)
	}
	c := New(registry, index.New(), notify.NewBus())
	ctx := context.Background()

	var notified int
	c.Bus().Subscribe(func(types.Change) { notified++ })

	if _, err := c.AddEvent(ctx, "broken", timedEvent("X", "2024-01-15")); !errors.Is(err, types.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}

	if len(c.GetAllEvents()) != 0 {
		t.Error("index committed despite the failed write")
	}
	if notified != 0 {
		t.Errorf("published %d changes despite the failed write", notified)
	}
}

func TestCoordinator_MoveCreateFailureRestoresSource(t *testing.T) {
	vault := t.TempDir()
	fs := filesystem.New(vault, nil, nil)

	registry := calendar.NewRegistry()
	if err := registry.Register(calendar.NewDailyNote(fs, types.CalendarInfo{ID: "daily"}, "daily")); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&failingCalendar{info: types.CalendarInfo{ID: "broken", Editable: true}}); err != nil {
		t.Fatal(err)
	}
	c := New(registry, index.New(), notify.NewBus())
	ctx := context.Background()

	ev := types.Event{
		Type: types.TypeSingle, Title: "Standup", Date: "2024-01-15",
		StartTime: "10:00", Task: &types.Task{Done: false},
	}
	id, err := c.AddEvent(ctx, "daily", ev)
	if err != nil {
		t.Fatal(err)
	}

	var changes []types.Change
	c.Bus().Subscribe(func(ch types.Change) { changes = append(changes, ch) })

	if err := c.MoveEventToCalendar(ctx, id, "broken"); !errors.Is(err, types.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}

	// The failed move must leave the event in its source calendar, with a
	// location that still addresses its line.
	info, err := c.GetInfoForEditableEvent(id)
	if err != nil {
		t.Fatalf("entry lost after failed move: %v", err)
	}
	if info.CalendarID != "daily" {
		t.Errorf("CalendarID = %q, want daily", info.CalendarID)
	}

	note, err := fs.ReadNote(info.Location.Path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(note.OriginalContent, "\n")
	if info.Location.Line == nil || *info.Location.Line >= len(lines) ||
		!strings.Contains(lines[*info.Location.Line], "Standup") {
		t.Errorf("location %+v does not address the event in %q", info.Location, note.OriginalContent)
	}
	if strings.Count(note.OriginalContent, "Standup") != 1 {
		t.Errorf("restored note holds duplicates: %q", note.OriginalContent)
	}

	for _, ch := range changes {
		if ch.Kind == types.ChangeMoved {
			t.Errorf("published a move despite the failure: %+v", ch)
		}
	}
}

// vanishingCalendar deletes fine but cannot create, so a failed move cannot
// restore the source copy.
type vanishingCalendar struct {
	failingCalendar
}

func (v *vanishingCalendar) DeleteEvent(types.EventLocation) error { return nil }

func (v *vanishingCalendar) Move(types.EventLocation, types.EventLocation) error {
	return fmt.Errorf("%w: cannot relocate", types.ErrUnsupported)
}

func TestCoordinator_MoveRestoreFailureDropsEntry(t *testing.T) {
	registry := calendar.NewRegistry()
	if err := registry.Register(&vanishingCalendar{failingCalendar{info: types.CalendarInfo{ID: "half", Editable: true}}}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&failingCalendar{info: types.CalendarInfo{ID: "broken", Editable: true}}); err != nil {
		t.Fatal(err)
	}
	store := index.New()
	c := New(registry, store, notify.NewBus())

	line := 0
	id := store.Add(timedEvent("Standup", "2024-01-15"), "half",
		&types.EventLocation{Path: "half/x.md", Line: &line})

	var changes []types.Change
	c.Bus().Subscribe(func(ch types.Change) { changes = append(changes, ch) })

	if err := c.MoveEventToCalendar(context.Background(), id, "broken"); !errors.Is(err, types.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}

	// The backing copy is gone and could not be recreated; the index must
	// not keep an entry pointing at deleted data.
	if _, ok := c.GetEventByID(id); ok {
		t.Error("index kept an entry whose backing event is gone")
	}
	if len(changes) != 1 || changes[0].Kind != types.ChangeDeleted || changes[0].ID != id {
		t.Errorf("changes = %+v, want one delete for %s", changes, id)
	}
}

func TestCoordinator_GetEntryByID(t *testing.T) {
	_, _, c := setup(t)

	id, err := c.AddEvent(context.Background(), "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := c.GetEntryByID(id)
	if !ok {
		t.Fatal("GetEntryByID() did not find the entry")
	}
	if entry.CalendarID != "work" || entry.Event.Title != "Standup" || entry.Location == nil {
		t.Errorf("entry = %+v", entry)
	}

	if _, ok := c.GetEntryByID("nope"); ok {
		t.Error("GetEntryByID() found a nonexistent id")
	}
}

func TestCoordinator_ReadOnlyCalendarRejectsMutation(t *testing.T) {
	registry := calendar.NewRegistry()
	if err := registry.Register(calendar.NewICS(types.CalendarInfo{ID: "feed"}, "http://example.com/cal.ics")); err != nil {
		t.Fatal(err)
	}
	c := New(registry, index.New(), notify.NewBus())

	if _, err := c.AddEvent(context.Background(), "feed", timedEvent("X", "2024-01-15")); !errors.Is(err, types.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestCoordinator_Notifications(t *testing.T) {
	_, _, c := setup(t)
	ctx := context.Background()

	var changes []types.Change
	c.Bus().Subscribe(func(ch types.Change) { changes = append(changes, ch) })

	id, err := c.AddEvent(ctx, "work", timedEvent("Standup", "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateEventWithID(ctx, id, timedEvent("Standup", "2024-01-16")); err != nil {
		t.Fatal(err)
	}
	if err := c.MoveEventToCalendar(ctx, id, "home"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteEvent(ctx, id); err != nil {
		t.Fatal(err)
	}

	want := []types.ChangeKind{types.ChangeCreated, types.ChangeUpdated, types.ChangeMoved, types.ChangeDeleted}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes %v, want %d", len(changes), changes, len(want))
	}
	for i, kind := range want {
		if changes[i].Kind != kind || changes[i].ID != id {
			t.Errorf("changes[%d] = %+v, want kind %s for %s", i, changes[i], kind, id)
		}
	}
}
