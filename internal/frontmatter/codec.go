package frontmatter

import (
	"fmt"
	"time"

	"github.com/taigrr/vaultcal/internal/types"
)

// standardKeys are the closed set of event fields; every other frontmatter
// key is custom metadata and must round-trip unchanged.
var standardKeys = map[string]bool{
	"type":       true,
	"title":      true,
	"allDay":     true,
	"date":       true,
	"endDate":    true,
	"startTime":  true,
	"endTime":    true,
	"completed":  true,
	"daysOfWeek": true,
	"startRecur": true,
	"endRecur":   true,
	"rrule":      true,
	"startDate":  true,
	"skipDates":  true,
}

// EventFromFrontmatter decodes the wire schema out of a parsed frontmatter
// map. A missing `type` key defaults to a single event. The returned event
// has passed Validate.
func EventFromFrontmatter(fm map[string]any) (types.Event, error) {
	ev := types.Event{
		Type:   types.EventType(stringAt(fm, "type", string(types.TypeSingle))),
		Title:  stringAt(fm, "title", ""),
		AllDay: boolAt(fm, "allDay"),
	}

	switch ev.Type {
	case types.TypeSingle:
		ev.Date = stringAt(fm, "date", "")
		if raw, ok := fm["endDate"]; ok {
			if raw == nil {
				ev.End = &types.EndDate{Null: true}
			} else {
				ev.End = &types.EndDate{Date: scalarString(raw)}
			}
		}
		if raw, ok := fm["completed"]; ok {
			ev.Task = taskFrom(raw)
		}
	case types.TypeRecurring:
		ev.DaysOfWeek = stringsAt(fm, "daysOfWeek")
		ev.StartRecur = stringAt(fm, "startRecur", "")
		ev.EndRecur = stringAt(fm, "endRecur", "")
	case types.TypeRRule:
		ev.RRule = stringAt(fm, "rrule", "")
		ev.StartDate = stringAt(fm, "startDate", "")
		ev.SkipDates = stringsAt(fm, "skipDates")
	}

	ev.StartTime = stringAt(fm, "startTime", "")
	ev.EndTime = stringAt(fm, "endTime", "")

	for key, value := range fm {
		if standardKeys[key] || value == nil {
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]string)
		}
		ev.Extra[key] = fmt.Sprint(value)
	}

	if err := ev.Validate(); err != nil {
		return types.Event{}, err
	}
	return ev, nil
}

// EventToFrontmatter encodes an event into the wire schema map, custom
// metadata included.
func EventToFrontmatter(ev types.Event) map[string]any {
	fm := map[string]any{
		"type":   string(ev.Type),
		"title":  ev.Title,
		"allDay": ev.AllDay,
	}

	switch ev.Type {
	case types.TypeSingle:
		fm["date"] = ev.Date
		if ev.End != nil {
			if ev.End.Null {
				fm["endDate"] = nil
			} else {
				fm["endDate"] = ev.End.Date
			}
		}
		if ev.Task != nil {
			fm["completed"] = taskTo(ev.Task)
		}
	case types.TypeRecurring:
		fm["daysOfWeek"] = toAnySlice(ev.DaysOfWeek)
		if ev.StartRecur != "" {
			fm["startRecur"] = ev.StartRecur
		}
		if ev.EndRecur != "" {
			fm["endRecur"] = ev.EndRecur
		}
	case types.TypeRRule:
		fm["rrule"] = ev.RRule
		fm["startDate"] = ev.StartDate
		if len(ev.SkipDates) > 0 {
			fm["skipDates"] = toAnySlice(ev.SkipDates)
		}
	}

	if ev.StartTime != "" {
		fm["startTime"] = ev.StartTime
	}
	if ev.EndTime != "" {
		fm["endTime"] = ev.EndTime
	}

	for key, value := range ev.Extra {
		fm[key] = value
	}

	return fm
}

func taskFrom(raw any) *types.Task {
	switch v := raw.(type) {
	case bool:
		return &types.Task{Done: v}
	case string:
		return &types.Task{Done: true, CompletedAt: v}
	case time.Time:
		return &types.Task{Done: true, CompletedAt: v.Format(time.RFC3339)}
	default:
		return &types.Task{Done: true, CompletedAt: fmt.Sprint(v)}
	}
}

func taskTo(t *types.Task) any {
	if !t.Done {
		return false
	}
	if t.CompletedAt == "" {
		return true
	}
	return t.CompletedAt
}

func stringAt(fm map[string]any, key, fallback string) string {
	raw, ok := fm[key]
	if !ok || raw == nil {
		return fallback
	}
	return scalarString(raw)
}

// scalarString renders one frontmatter scalar; yaml.v3 resolves unquoted
// dates to time.Time.
func scalarString(raw any) string {
	if ts, ok := raw.(time.Time); ok {
		return ts.Format(types.DateLayout)
	}
	return fmt.Sprint(raw)
}

func boolAt(fm map[string]any, key string) bool {
	v, _ := fm[key].(bool)
	return v
}

func stringsAt(fm map[string]any, key string) []string {
	raw, ok := fm[key]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		// A single scalar is accepted as a one-element list.
		return []string{scalarString(raw)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, scalarString(item))
	}
	return out
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
