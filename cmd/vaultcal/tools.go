package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taigrr/vaultcal/internal/types"
)

type (
	// AddEventInput contains parameters for creating an event.
	AddEventInput struct {
		CalendarID string      `json:"calendarId" jsonschema:"Identifier of the calendar to create the event in"`
		Event      types.Event `json:"event" jsonschema:"The event definition"`
	}

	// AddEventOutput contains the result of creating an event.
	AddEventOutput struct {
		ID  string `json:"id"`
		URI string `json:"uri,omitempty"`
	}

	// UpdateEventInput contains parameters for updating an event.
	UpdateEventInput struct {
		ID    string      `json:"id" jsonschema:"Identifier of the event to update"`
		Event types.Event `json:"event" jsonschema:"The new event definition, replacing the old one entirely"`
	}

	// UpdateEventOutput contains the result of updating an event.
	UpdateEventOutput struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		URI     string `json:"uri,omitempty"`
	}

	// DeleteEventInput contains parameters for deleting an event.
	DeleteEventInput struct {
		ID      string `json:"id" jsonschema:"Identifier of the event to delete"`
		Confirm string `json:"confirm" jsonschema:"Must be set to 'yes' to confirm deletion"`
	}

	// DeleteEventOutput contains the result of deleting an event.
	DeleteEventOutput struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}

	// MoveEventInput contains parameters for moving an event to another
	// calendar.
	MoveEventInput struct {
		ID         string `json:"id" jsonschema:"Identifier of the event to move"`
		CalendarID string `json:"calendarId" jsonschema:"Identifier of the destination calendar"`
	}

	// MoveEventOutput contains the result of moving an event.
	MoveEventOutput struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		URI     string `json:"uri,omitempty"`
	}

	// GetEventInput contains parameters for fetching one event.
	GetEventInput struct {
		ID string `json:"id" jsonschema:"Identifier of the event"`
	}

	// GetEventOutput contains one event and its provenance.
	GetEventOutput struct {
		ID         string      `json:"id"`
		Event      types.Event `json:"event"`
		CalendarID string      `json:"calendarId"`
		Editable   bool        `json:"editable"`
		Path       string      `json:"path,omitempty"`
		Line       *int        `json:"line,omitempty"`
		URI        string      `json:"uri,omitempty"`
	}

	// ListEventsInput contains parameters for listing indexed events.
	ListEventsInput struct {
		CalendarID string `json:"calendarId,omitempty" jsonschema:"Restrict to one calendar (default: all)"`
	}

	// EventListItem is one event in a listing.
	EventListItem struct {
		ID    string      `json:"id"`
		Event types.Event `json:"event"`
		URI   string      `json:"uri,omitempty"`
	}

	// ListEventsOutput contains events grouped by calendar.
	ListEventsOutput struct {
		Calendars   map[string][]EventListItem `json:"calendars"`
		TotalEvents int                        `json:"totalEvents"`
	}

	// ListCalendarsInput contains parameters for listing calendars.
	ListCalendarsInput struct{}

	// ListCalendarsOutput contains the registered calendars in order.
	ListCalendarsOutput struct {
		Calendars []types.CalendarInfo `json:"calendars"`
	}

	// ExpandInput contains parameters for expanding a recurring event.
	ExpandInput struct {
		ID    string `json:"id" jsonschema:"Identifier of the recurring or rrule event"`
		From  string `json:"from" jsonschema:"Window start date (YYYY-MM-DD, inclusive)"`
		To    string `json:"to" jsonschema:"Window end date (YYYY-MM-DD, inclusive)"`
		Limit int    `json:"limit,omitempty" jsonschema:"Maximum occurrences to return (default: 100)"`
	}

	// OccurrenceItem is one concrete occurrence.
	OccurrenceItem struct {
		Start  string `json:"start"`
		End    string `json:"end"`
		AllDay bool   `json:"allDay"`
	}

	// ExpandOutput contains the expanded occurrences.
	ExpandOutput struct {
		ID          string           `json:"id"`
		Occurrences []OccurrenceItem `json:"occurrences"`
		Truncated   bool             `json:"truncated,omitempty"`
	}

	// RescanInput contains parameters for rescanning a changed note.
	RescanInput struct {
		Path string `json:"path" jsonschema:"Vault-relative path of the note that changed"`
	}

	// RescanOutput contains the index changes caused by the rescan.
	RescanOutput struct {
		Success bool `json:"success"`
	}

	// RefreshRemotesInput contains parameters for refreshing remote feeds.
	RefreshRemotesInput struct{}

	// RefreshRemotesOutput contains the result of the refresh.
	RefreshRemotesOutput struct {
		Success bool `json:"success"`
	}
)

func registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_event",
		Description: "Create an event in an editable calendar. The event is written to its backing note first; the returned id stays stable for the event's lifetime.",
	}, handleAddEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_event",
		Description: "Replace an event's definition by id. The backing note is rewritten; a changed title or date may relocate the note.",
	}, handleUpdateEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_event",
		Description: "Delete an event by id, removing it from its backing note. Requires confirm='yes' for safety.",
	}, handleDeleteEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_event",
		Description: "Move an event into another editable calendar, keeping its id and content.",
	}, handleMoveEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_event",
		Description: "Fetch one event by id, with its owning calendar and backing location.",
	}, handleGetEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_events",
		Description: "List indexed events, grouped by calendar. Optionally restricted to one calendar.",
	}, handleListEvents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_calendars",
		Description: "List the registered calendars with their kinds and capabilities.",
	}, handleListCalendars)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "expand",
		Description: "Expand a recurring or rrule event into concrete occurrences inside a date window.",
	}, handleExpand)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rescan",
		Description: "Rescan one changed note and patch the index. Only calendars containing the path are consulted.",
	}, handleRescan)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_remotes",
		Description: "Re-fetch every remote calendar feed and replace its events in the index.",
	}, handleRefreshRemotes)
}
