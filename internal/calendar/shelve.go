package calendar

import (
	"context"
	"fmt"

	"github.com/taigrr/vaultcal/internal/filesystem"
	"github.com/taigrr/vaultcal/internal/frontmatter"
	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/types"
)

// Shelve is a virtual calendar: every note in the vault whose frontmatter
// carries a specific property value belongs to it, regardless of where the
// note lives. It has no directory of its own, so membership checks read the
// file's current metadata rather than its path.
//
// Events can be modified and deleted in place, but not created or moved
// here: membership is driven by the property value, which is set elsewhere.
type Shelve struct {
	fs       *filesystem.Service
	info     types.CalendarInfo
	property string
	value    string
}

// NewShelve creates a shelve calendar matching notes where
// frontmatter[property] == value.
func NewShelve(fs *filesystem.Service, info types.CalendarInfo, property, value string) *Shelve {
	info.Kind = types.KindShelve
	info.Editable = true
	return &Shelve{fs: fs, info: info, property: property, value: value}
}

func (c *Shelve) Info() types.CalendarInfo { return c.info }

// ContainsPath is a property-match predicate, not a path prefix check.
func (c *Shelve) ContainsPath(p string) bool {
	note, err := c.fs.ReadNote(p)
	if err != nil {
		return false
	}
	return c.matches(note.Frontmatter)
}

func (c *Shelve) matches(fm map[string]any) bool {
	raw, ok := fm[c.property]
	if !ok {
		return false
	}
	return fmt.Sprint(raw) == c.value
}

func (c *Shelve) GetEvents(ctx context.Context) ([]types.SourcedEvent, error) {
	paths, err := c.fs.ListNotes("")
	if err != nil {
		return nil, err
	}

	var out []types.SourcedEvent
	for _, p := range paths {
		note, err := c.fs.ReadNote(p)
		if err != nil {
			continue
		}
		if !c.matches(note.Frontmatter) {
			continue
		}
		ev, err := frontmatter.EventFromFrontmatter(note.Frontmatter)
		if err != nil {
			applog.Debug("shelve: member note is not an event", "calendar", c.info.ID, "path", p, "reason", err)
			continue
		}
		out = append(out, types.SourcedEvent{
			Event:    ev,
			Location: &types.EventLocation{Path: p},
		})
	}
	return out, nil
}

func (c *Shelve) EventsAt(ctx context.Context, p string) ([]types.SourcedEvent, error) {
	note, err := c.fs.ReadNote(p)
	if err != nil || !c.matches(note.Frontmatter) {
		return nil, nil
	}
	ev, err := frontmatter.EventFromFrontmatter(note.Frontmatter)
	if err != nil {
		return nil, nil
	}
	return []types.SourcedEvent{{Event: ev, Location: &types.EventLocation{Path: p}}}, nil
}

// CreateEvent is structurally impossible: there is no place to put a new
// note that would make it a member.
func (c *Shelve) CreateEvent(types.Event) (types.EventLocation, error) {
	return types.EventLocation{}, fmt.Errorf("%w: shelve calendars cannot create events directly", types.ErrUnsupported)
}

func (c *Shelve) ModifyEvent(loc types.EventLocation, ev types.Event) (types.EventLocation, error) {
	if err := ev.Validate(); err != nil {
		return types.EventLocation{}, err
	}
	if loc.Line != nil {
		return types.EventLocation{}, fmt.Errorf("%w: shelve events have no line locations", types.ErrUnsupported)
	}

	note, err := c.fs.ReadNote(loc.Path)
	if err != nil {
		return types.EventLocation{}, err
	}

	fm := frontmatter.EventToFrontmatter(ev)
	// The membership property must survive the rewrite or the event would
	// silently leave the calendar.
	if _, ok := fm[c.property]; !ok {
		fm[c.property] = c.value
	}

	if err := c.fs.WriteNote(loc.Path, fm, note.Content); err != nil {
		return types.EventLocation{}, err
	}
	return loc, nil
}

func (c *Shelve) DeleteEvent(loc types.EventLocation) error {
	if loc.Line != nil {
		return fmt.Errorf("%w: shelve events have no line locations", types.ErrUnsupported)
	}
	return c.fs.DeleteNote(loc.Path)
}

func (c *Shelve) GetNewLocation(*types.EventLocation, types.Event) (types.EventLocation, error) {
	return types.EventLocation{}, fmt.Errorf("%w: shelve calendars have no canonical event location", types.ErrUnsupported)
}

func (c *Shelve) Move(types.EventLocation, types.EventLocation) error {
	return fmt.Errorf("%w: shelve membership is value-based and cannot be moved into", types.ErrUnsupported)
}
