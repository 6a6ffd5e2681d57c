package calendar

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/taigrr/vaultcal/internal/filesystem"
	"github.com/taigrr/vaultcal/internal/frontmatter"
	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/types"
)

// FullNote is an editable calendar holding one event per note, defined by
// the note's frontmatter, scoped to a vault directory.
type FullNote struct {
	fs   *filesystem.Service
	info types.CalendarInfo
	dir  string
}

// NewFullNote creates a full-note calendar over the given vault directory.
func NewFullNote(fs *filesystem.Service, info types.CalendarInfo, dir string) *FullNote {
	info.Kind = types.KindFullNote
	info.Editable = true
	return &FullNote{fs: fs, info: info, dir: strings.Trim(dir, "/")}
}

func (c *FullNote) Info() types.CalendarInfo { return c.info }

func (c *FullNote) ContainsPath(p string) bool {
	return strings.HasPrefix(p, c.dir+"/")
}

func (c *FullNote) GetEvents(ctx context.Context) ([]types.SourcedEvent, error) {
	paths, err := c.fs.ListNotes(c.dir)
	if err != nil {
		return nil, err
	}

	var out []types.SourcedEvent
	for _, p := range paths {
		ev, ok := c.eventAt(p)
		if !ok {
			continue
		}
		out = append(out, types.SourcedEvent{
			Event:    ev,
			Location: &types.EventLocation{Path: p},
		})
	}
	return out, nil
}

func (c *FullNote) EventsAt(ctx context.Context, p string) ([]types.SourcedEvent, error) {
	if !c.ContainsPath(p) {
		return nil, nil
	}
	ev, ok := c.eventAt(p)
	if !ok {
		return nil, nil
	}
	return []types.SourcedEvent{{Event: ev, Location: &types.EventLocation{Path: p}}}, nil
}

// eventAt parses the event in one note. Notes that are not events (no
// usable frontmatter) are skipped, not errors.
func (c *FullNote) eventAt(p string) (types.Event, bool) {
	note, err := c.fs.ReadNote(p)
	if err != nil {
		applog.Debug("fullnote: skipping unreadable note", "calendar", c.info.ID, "path", p)
		return types.Event{}, false
	}
	if len(note.Frontmatter) == 0 {
		return types.Event{}, false
	}
	ev, err := frontmatter.EventFromFrontmatter(note.Frontmatter)
	if err != nil {
		applog.Debug("fullnote: note is not an event", "calendar", c.info.ID, "path", p, "reason", err)
		return types.Event{}, false
	}
	return ev, true
}

func (c *FullNote) CreateEvent(ev types.Event) (types.EventLocation, error) {
	if err := ev.Validate(); err != nil {
		return types.EventLocation{}, err
	}

	loc, err := c.GetNewLocation(nil, ev)
	if err != nil {
		return types.EventLocation{}, err
	}

	if err := c.fs.WriteNote(loc.Path, frontmatter.EventToFrontmatter(ev), ""); err != nil {
		return types.EventLocation{}, err
	}
	return loc, nil
}

func (c *FullNote) ModifyEvent(loc types.EventLocation, ev types.Event) (types.EventLocation, error) {
	if err := ev.Validate(); err != nil {
		return types.EventLocation{}, err
	}
	if loc.Line != nil {
		return types.EventLocation{}, fmt.Errorf("%w: full-note events have no line locations", types.ErrUnsupported)
	}

	// Preserve the note body; only the frontmatter is the event's.
	body := ""
	if note, err := c.fs.ReadNote(loc.Path); err == nil {
		body = note.Content
	} else {
		return types.EventLocation{}, err
	}

	if err := c.fs.WriteNote(loc.Path, frontmatter.EventToFrontmatter(ev), body); err != nil {
		return types.EventLocation{}, err
	}

	// A changed title or date renames the note.
	wanted := path.Join(c.dir, filenameFor(ev))
	if wanted == loc.Path {
		return loc, nil
	}
	target := c.uniquePath(wanted)
	if err := c.fs.MoveNote(loc.Path, target); err != nil {
		return types.EventLocation{}, err
	}
	return types.EventLocation{Path: target}, nil
}

func (c *FullNote) DeleteEvent(loc types.EventLocation) error {
	if loc.Line != nil {
		return fmt.Errorf("%w: full-note events have no line locations", types.ErrUnsupported)
	}
	return c.fs.DeleteNote(loc.Path)
}

func (c *FullNote) GetNewLocation(_ *types.EventLocation, ev types.Event) (types.EventLocation, error) {
	wanted := path.Join(c.dir, filenameFor(ev))
	return types.EventLocation{Path: c.uniquePath(wanted)}, nil
}

func (c *FullNote) Move(from, to types.EventLocation) error {
	if from.Line != nil || to.Line != nil {
		return fmt.Errorf("%w: cannot move inline events across calendars", types.ErrUnsupported)
	}
	return c.fs.MoveNote(from.Path, to.Path)
}

// uniquePath appends a counter until the path is free.
func (c *FullNote) uniquePath(wanted string) string {
	if !c.fs.Exists(wanted) {
		return wanted
	}
	stem := strings.TrimSuffix(wanted, ".md")
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d.md", stem, n)
		if !c.fs.Exists(candidate) {
			return candidate
		}
	}
}

// filenameFor derives the note filename from the event: date-prefixed for
// single events, plain title otherwise.
func filenameFor(ev types.Event) string {
	title := sanitizeFilename(ev.Title)
	if ev.Type == types.TypeSingle && ev.Date != "" {
		return ev.Date + " " + title + ".md"
	}
	return title + ".md"
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
		"\"", "'", "<", "", ">", "", "|", "-", "#", "",
	)
	out := strings.TrimSpace(replacer.Replace(name))
	if out == "" {
		out = "Untitled"
	}
	return out
}
