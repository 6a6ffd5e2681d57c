package calendar

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/taigrr/vaultcal/internal/filesystem"
	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/types"
)

// DailyNote is an editable calendar holding one note per day, with any
// number of inline list-item events per note. Events are addressed by
// (path, line); the event date comes from the note's filename.
type DailyNote struct {
	fs     *filesystem.Service
	info   types.CalendarInfo
	folder string
}

// NewDailyNote creates a daily-note calendar over the given folder. Notes
// are named YYYY-MM-DD.md.
func NewDailyNote(fs *filesystem.Service, info types.CalendarInfo, folder string) *DailyNote {
	info.Kind = types.KindDailyNote
	info.Editable = true
	return &DailyNote{fs: fs, info: info, folder: strings.Trim(folder, "/")}
}

func (c *DailyNote) Info() types.CalendarInfo { return c.info }

func (c *DailyNote) ContainsPath(p string) bool {
	if !strings.HasPrefix(p, c.folder+"/") {
		return false
	}
	_, ok := c.dateOf(p)
	return ok
}

// dateOf extracts the note date from a path like folder/2024-01-15.md.
func (c *DailyNote) dateOf(p string) (string, bool) {
	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if _, err := time.Parse(types.DateLayout, stem); err != nil {
		return "", false
	}
	return stem, true
}

func (c *DailyNote) pathFor(date string) string {
	return path.Join(c.folder, date+".md")
}

func (c *DailyNote) GetEvents(ctx context.Context) ([]types.SourcedEvent, error) {
	paths, err := c.fs.ListNotes(c.folder)
	if err != nil {
		return nil, err
	}

	var out []types.SourcedEvent
	for _, p := range paths {
		date, ok := c.dateOf(p)
		if !ok {
			continue
		}
		note, err := c.fs.ReadNote(p)
		if err != nil {
			applog.Debug("dailynote: skipping unreadable note", "calendar", c.info.ID, "path", p)
			continue
		}
		for i, line := range strings.Split(note.OriginalContent, "\n") {
			ev, ok := parseInlineEvent(line, date)
			if !ok {
				continue
			}
			line := i
			out = append(out, types.SourcedEvent{
				Event:    ev,
				Location: &types.EventLocation{Path: p, Line: &line},
			})
		}
	}
	return out, nil
}

func (c *DailyNote) EventsAt(ctx context.Context, p string) ([]types.SourcedEvent, error) {
	date, ok := c.dateOf(p)
	if !ok || !strings.HasPrefix(p, c.folder+"/") {
		return nil, nil
	}
	note, err := c.fs.ReadNote(p)
	if err != nil {
		// A vanished note simply has no events anymore.
		return nil, nil
	}
	var out []types.SourcedEvent
	for i, line := range strings.Split(note.OriginalContent, "\n") {
		ev, ok := parseInlineEvent(line, date)
		if !ok {
			continue
		}
		line := i
		out = append(out, types.SourcedEvent{
			Event:    ev,
			Location: &types.EventLocation{Path: p, Line: &line},
		})
	}
	return out, nil
}

func (c *DailyNote) CreateEvent(ev types.Event) (types.EventLocation, error) {
	if err := c.checkShape(ev); err != nil {
		return types.EventLocation{}, err
	}

	p := c.pathFor(ev.Date)
	content := ""
	if c.fs.Exists(p) {
		note, err := c.fs.ReadNote(p)
		if err != nil {
			return types.EventLocation{}, err
		}
		content = note.OriginalContent
	}

	newContent, idx := appendLine(content, serializeInlineEvent(ev))
	if err := c.fs.WriteRaw(p, newContent); err != nil {
		return types.EventLocation{}, err
	}
	return types.EventLocation{Path: p, Line: &idx}, nil
}

func (c *DailyNote) ModifyEvent(loc types.EventLocation, ev types.Event) (types.EventLocation, error) {
	if err := c.checkShape(ev); err != nil {
		return types.EventLocation{}, err
	}
	if loc.Line == nil {
		return types.EventLocation{}, fmt.Errorf("%w: daily-note events are line-addressed", types.ErrUnsupported)
	}

	date, ok := c.dateOf(loc.Path)
	if !ok {
		return types.EventLocation{}, fmt.Errorf("%w: %s is not a daily note", types.ErrNotFound, loc.Path)
	}

	if ev.Date == date {
		// In-place rewrite of one line.
		if err := c.spliceLine(loc.Path, *loc.Line, serializeInlineEvent(ev)); err != nil {
			return types.EventLocation{}, err
		}
		return loc, nil
	}

	// The date changed: the event migrates to another day's note. The new
	// line is written before the old one is removed so a failure cannot
	// lose the event.
	newLoc, err := c.CreateEvent(ev)
	if err != nil {
		return types.EventLocation{}, err
	}
	if err := c.removeLine(loc.Path, *loc.Line); err != nil {
		return types.EventLocation{}, err
	}
	return newLoc, nil
}

func (c *DailyNote) DeleteEvent(loc types.EventLocation) error {
	if loc.Line == nil {
		return fmt.Errorf("%w: daily-note events are line-addressed", types.ErrUnsupported)
	}
	return c.removeLine(loc.Path, *loc.Line)
}

func (c *DailyNote) GetNewLocation(_ *types.EventLocation, ev types.Event) (types.EventLocation, error) {
	if err := c.checkShape(ev); err != nil {
		return types.EventLocation{}, err
	}
	p := c.pathFor(ev.Date)
	idx := 0
	if c.fs.Exists(p) {
		note, err := c.fs.ReadNote(p)
		if err != nil {
			return types.EventLocation{}, err
		}
		_, idx = appendLine(note.OriginalContent, "")
	}
	return types.EventLocation{Path: p, Line: &idx}, nil
}

// Move is structurally impossible for inline per-line events; callers fall
// back to delete-then-create.
func (c *DailyNote) Move(from, to types.EventLocation) error {
	return fmt.Errorf("%w: inline events cannot be relocated across calendars", types.ErrUnsupported)
}

func (c *DailyNote) checkShape(ev types.Event) error {
	if ev.Type != types.TypeSingle {
		return fmt.Errorf("%w: daily notes hold single events only", types.ErrUnsupported)
	}
	return ev.Validate()
}

// spliceLine replaces one line of a note, preserving every other byte.
func (c *DailyNote) spliceLine(p string, idx int, newLine string) error {
	note, err := c.fs.ReadNote(p)
	if err != nil {
		return err
	}
	lines := strings.Split(note.OriginalContent, "\n")
	if idx < 0 || idx >= len(lines) {
		return fmt.Errorf("%w: line %d out of range in %s", types.ErrNotFound, idx, p)
	}
	lines[idx] = newLine
	return c.fs.WriteRaw(p, strings.Join(lines, "\n"))
}

func (c *DailyNote) removeLine(p string, idx int) error {
	note, err := c.fs.ReadNote(p)
	if err != nil {
		return err
	}
	lines := strings.Split(note.OriginalContent, "\n")
	if idx < 0 || idx >= len(lines) {
		return fmt.Errorf("%w: line %d out of range in %s", types.ErrNotFound, idx, p)
	}
	lines = append(lines[:idx], lines[idx+1:]...)
	return c.fs.WriteRaw(p, strings.Join(lines, "\n"))
}

// appendLine adds a list-item line at the end of the note body, before any
// trailing newline, and returns the new content plus the line's index.
func appendLine(content, line string) (string, int) {
	if content == "" {
		return line + "\n", 0
	}
	lines := strings.Split(content, "\n")
	idx := len(lines)
	if lines[len(lines)-1] == "" {
		idx = len(lines) - 1
		lines = append(lines[:idx], line, "")
	} else {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), idx
}

// Inline events use task-list lines with dataview-style inline fields:
//
//	- [ ] Standup [startTime:: 09:30] [endTime:: 09:45]
//	- [x] Review PRs [startTime:: 14:00] [endTime:: 15:00] [completed:: 2024-01-15T15:02:00Z]
//	- Anniversary
//
// A checkbox makes the line a task; a missing startTime makes it all-day.
var (
	inlineFieldRe = regexp.MustCompile(`\s*\[([A-Za-z][A-Za-z0-9_-]*)::\s*([^\]]*)\]`)
	listItemRe    = regexp.MustCompile(`^(\s*)- (?:\[([ xX])\] )?(.*)$`)
)

// parseInlineEvent parses one note line into a single event dated to the
// note's day. Returns false for lines that are not list items.
func parseInlineEvent(line, date string) (types.Event, bool) {
	m := listItemRe.FindStringSubmatch(line)
	if m == nil {
		return types.Event{}, false
	}
	checkbox, rest := m[2], m[3]

	fields := map[string]string{}
	for _, f := range inlineFieldRe.FindAllStringSubmatch(rest, -1) {
		fields[f[1]] = strings.TrimSpace(f[2])
	}
	// Plain bullets with no checkbox and no inline fields are ordinary
	// note content, not events.
	if checkbox == "" && len(fields) == 0 {
		return types.Event{}, false
	}
	title := strings.TrimSpace(inlineFieldRe.ReplaceAllString(rest, ""))
	if title == "" {
		return types.Event{}, false
	}

	ev := types.Event{
		Type:      types.TypeSingle,
		Title:     title,
		Date:      date,
		StartTime: fields["startTime"],
		EndTime:   fields["endTime"],
		AllDay:    fields["startTime"] == "",
	}

	switch checkbox {
	case "x", "X":
		ev.Task = &types.Task{Done: true, CompletedAt: fields["completed"]}
	case " ":
		ev.Task = &types.Task{Done: false}
	}

	for key, value := range fields {
		switch key {
		case "startTime", "endTime", "completed", "allDay":
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]string)
		}
		ev.Extra[key] = value
	}

	if err := ev.Validate(); err != nil {
		return types.Event{}, false
	}
	return ev, true
}

// serializeInlineEvent renders an event back into a note line.
func serializeInlineEvent(ev types.Event) string {
	var b strings.Builder
	b.WriteString("- ")
	if ev.Task != nil {
		if ev.Task.Done {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	}
	b.WriteString(ev.Title)

	if !ev.AllDay && ev.StartTime != "" {
		fmt.Fprintf(&b, " [startTime:: %s]", ev.StartTime)
		if ev.EndTime != "" {
			fmt.Fprintf(&b, " [endTime:: %s]", ev.EndTime)
		}
	} else if ev.Task == nil {
		// Keeps checkbox-less all-day lines recognizable as events.
		b.WriteString(" [allDay:: true]")
	}
	if ev.Task != nil && ev.Task.Done && ev.Task.CompletedAt != "" {
		fmt.Fprintf(&b, " [completed:: %s]", ev.Task.CompletedAt)
	}

	keys := make([]string, 0, len(ev.Extra))
	for key := range ev.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " [%s:: %s]", key, ev.Extra[key])
	}

	return b.String()
}
