package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taigrr/vaultcal/internal/recurrence"
	"github.com/taigrr/vaultcal/internal/types"
	"github.com/taigrr/vaultcal/internal/uri"
)

// noteURI renders the Obsidian URI for an event's backing note, or "" for
// remote events.
func noteURI(loc *types.EventLocation) string {
	if loc == nil {
		return ""
	}
	return uri.ForNote(fileSystem.GetVaultPath(), loc.Path)
}

func locationForID(id string) *types.EventLocation {
	info, err := coordinator.GetInfoForEditableEvent(id)
	if err != nil {
		return nil
	}
	return &info.Location
}

func handleAddEvent(ctx context.Context, req *mcp.CallToolRequest, input AddEventInput) (*mcp.CallToolResult, AddEventOutput, error) {
	id, err := coordinator.AddEvent(ctx, strings.TrimSpace(input.CalendarID), input.Event)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, AddEventOutput{}, err
	}

	return nil, AddEventOutput{ID: id, URI: noteURI(locationForID(id))}, nil
}

func handleUpdateEvent(ctx context.Context, req *mcp.CallToolRequest, input UpdateEventInput) (*mcp.CallToolResult, UpdateEventOutput, error) {
	id := strings.TrimSpace(input.ID)
	if err := coordinator.UpdateEventWithID(ctx, id, input.Event); err != nil {
		return &mcp.CallToolResult{IsError: true}, UpdateEventOutput{Success: false, ID: id}, err
	}

	return nil, UpdateEventOutput{Success: true, ID: id, URI: noteURI(locationForID(id))}, nil
}

func handleDeleteEvent(ctx context.Context, req *mcp.CallToolRequest, input DeleteEventInput) (*mcp.CallToolResult, DeleteEventOutput, error) {
	id := strings.TrimSpace(input.ID)

	if input.Confirm != "yes" {
		return &mcp.CallToolResult{IsError: true}, DeleteEventOutput{Success: false, ID: id},
			fmt.Errorf("deletion not confirmed: set confirm='yes' to proceed")
	}

	if err := coordinator.DeleteEvent(ctx, id); err != nil {
		return &mcp.CallToolResult{IsError: true}, DeleteEventOutput{Success: false, ID: id}, err
	}

	return nil, DeleteEventOutput{Success: true, ID: id}, nil
}

func handleMoveEvent(ctx context.Context, req *mcp.CallToolRequest, input MoveEventInput) (*mcp.CallToolResult, MoveEventOutput, error) {
	id := strings.TrimSpace(input.ID)
	if err := coordinator.MoveEventToCalendar(ctx, id, strings.TrimSpace(input.CalendarID)); err != nil {
		return &mcp.CallToolResult{IsError: true}, MoveEventOutput{Success: false, ID: id}, err
	}

	return nil, MoveEventOutput{Success: true, ID: id, URI: noteURI(locationForID(id))}, nil
}

func handleGetEvent(ctx context.Context, req *mcp.CallToolRequest, input GetEventInput) (*mcp.CallToolResult, GetEventOutput, error) {
	id := strings.TrimSpace(input.ID)
	entry, ok := coordinator.GetEntryByID(id)
	if !ok {
		return &mcp.CallToolResult{IsError: true}, GetEventOutput{},
			fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}

	out := GetEventOutput{ID: id, Event: entry.Event, CalendarID: entry.CalendarID}
	if entry.Location != nil {
		out.Editable = true
		out.Path = entry.Location.Path
		out.Line = entry.Location.Line
		out.URI = noteURI(entry.Location)
	}

	return nil, out, nil
}

func handleListEvents(ctx context.Context, req *mcp.CallToolRequest, input ListEventsInput) (*mcp.CallToolResult, ListEventsOutput, error) {
	grouped := coordinator.GetAllEvents()

	out := ListEventsOutput{Calendars: make(map[string][]EventListItem)}
	for calendarID, entries := range grouped {
		if input.CalendarID != "" && calendarID != input.CalendarID {
			continue
		}
		items := make([]EventListItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, EventListItem{
				ID:    entry.ID,
				Event: entry.Event,
				URI:   noteURI(entry.Location),
			})
		}
		out.Calendars[calendarID] = items
		out.TotalEvents += len(items)
	}

	return nil, out, nil
}

func handleListCalendars(ctx context.Context, req *mcp.CallToolRequest, input ListCalendarsInput) (*mcp.CallToolResult, ListCalendarsOutput, error) {
	var infos []types.CalendarInfo
	for _, cal := range coordinator.Registry().List() {
		infos = append(infos, cal.Info())
	}
	return nil, ListCalendarsOutput{Calendars: infos}, nil
}

func handleExpand(ctx context.Context, req *mcp.CallToolRequest, input ExpandInput) (*mcp.CallToolResult, ExpandOutput, error) {
	id := strings.TrimSpace(input.ID)
	ev, ok := coordinator.GetEventByID(id)
	if !ok {
		return &mcp.CallToolResult{IsError: true}, ExpandOutput{},
			fmt.Errorf("%w: event %q", types.ErrNotFound, id)
	}

	from, err := time.Parse(types.DateLayout, input.From)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ExpandOutput{},
			fmt.Errorf("%w: from: malformed date %q", types.ErrValidation, input.From)
	}
	toDay, err := time.Parse(types.DateLayout, input.To)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ExpandOutput{},
			fmt.Errorf("%w: to: malformed date %q", types.ErrValidation, input.To)
	}
	// The window is inclusive of the whole final day.
	to := toDay.AddDate(0, 0, 1).Add(-time.Second)

	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}

	seq, err := recurrence.Expand(ev, from, to)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ExpandOutput{}, err
	}

	out := ExpandOutput{ID: id}
	for occ := range seq {
		if len(out.Occurrences) >= limit {
			out.Truncated = true
			break
		}
		out.Occurrences = append(out.Occurrences, OccurrenceItem{
			Start:  occ.Start.Format(time.RFC3339),
			End:    occ.End.Format(time.RFC3339),
			AllDay: occ.AllDay,
		})
	}

	return nil, out, nil
}

func handleRescan(ctx context.Context, req *mcp.CallToolRequest, input RescanInput) (*mcp.CallToolResult, RescanOutput, error) {
	path := strings.TrimSpace(input.Path)
	if err := coordinator.OnFileChange(ctx, path); err != nil {
		return &mcp.CallToolResult{IsError: true}, RescanOutput{Success: false}, err
	}
	return nil, RescanOutput{Success: true}, nil
}

func handleRefreshRemotes(ctx context.Context, req *mcp.CallToolRequest, input RefreshRemotesInput) (*mcp.CallToolResult, RefreshRemotesOutput, error) {
	if err := coordinator.RefreshRemotes(ctx); err != nil {
		return &mcp.CallToolResult{IsError: true}, RefreshRemotesOutput{Success: false}, err
	}
	return nil, RefreshRemotesOutput{Success: true}, nil
}
