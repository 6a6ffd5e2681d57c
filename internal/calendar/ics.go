package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"

	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/types"
)

// ICS is a read-only calendar backed by a remote ICS subscription. Events
// carry no location and reject all mutation. The feed is fetched lazily on
// first enumeration and again on Refresh; conditional requests (ETag /
// Last-Modified) avoid re-downloading unchanged feeds, and the last good
// body is kept as a fallback for transient fetch failures.
type ICS struct {
	info   types.CalendarInfo
	url    string
	client *http.Client

	mu           sync.Mutex
	etag         string
	lastModified string
	body         []byte
	events       []types.SourcedEvent
	fetched      bool
}

// NewICS creates a read-only calendar over an ICS feed URL.
func NewICS(info types.CalendarInfo, url string) *ICS {
	info.Kind = types.KindRemoteICS
	info.Editable = false
	return &ICS{
		info:   info,
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ICS) Info() types.CalendarInfo { return c.info }

// ContainsPath is always false: remote events have no vault location.
func (c *ICS) ContainsPath(string) bool { return false }

// EventsAt is always empty: remote events have no vault location.
func (c *ICS) EventsAt(context.Context, string) ([]types.SourcedEvent, error) { return nil, nil }

func (c *ICS) GetEvents(ctx context.Context) ([]types.SourcedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetched {
		if err := c.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	return c.events, nil
}

// Refresh re-fetches the feed. The cached event set is replaced only after
// a successful fetch and parse.
func (c *ICS) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *ICS) refreshLocked(ctx context.Context) error {
	body, err := c.fetch(ctx)
	if err != nil {
		if c.body != nil {
			applog.Error("ics: fetch failed, keeping cached feed", err, "calendar", c.info.ID)
			return nil
		}
		return fmt.Errorf("%w: fetch %s: %v", types.ErrIO, c.info.ID, err)
	}

	events, err := parseICSFeed(body)
	if err != nil {
		return fmt.Errorf("%w: parse feed for %s: %v", types.ErrIO, c.info.ID, err)
	}

	c.body = body
	c.events = events
	c.fetched = true
	applog.Info("ics: feed refreshed", "calendar", c.info.ID, "event_count", len(events))
	return nil
}

func (c *ICS) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	if c.etag != "" {
		req.Header.Set("If-None-Match", c.etag)
	}
	if c.lastModified != "" {
		req.Header.Set("If-Modified-Since", c.lastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		c.etag = resp.Header.Get("ETag")
		c.lastModified = resp.Header.Get("Last-Modified")
		return body, nil
	case http.StatusNotModified:
		if c.body == nil {
			return nil, fmt.Errorf("304 Not Modified but no cached body")
		}
		return c.body, nil
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// parseICSFeed converts the feed's VEVENTs into engine events: plain
// VEVENTs become single events, RRULE VEVENTs become rrule events with
// EXDATEs mapped to skip dates.
func parseICSFeed(body []byte) ([]types.SourcedEvent, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []types.SourcedEvent
	for _, ve := range cal.Events() {
		ev, err := convertVEvent(ve)
		if err != nil {
			// Skip this event, keep parsing others.
			applog.Debug("ics: skipping unparsable vevent", "reason", err)
			continue
		}
		out = append(out, types.SourcedEvent{Event: ev})
	}
	return out, nil
}

func convertVEvent(ve *ical.VEvent) (types.Event, error) {
	ev := types.Event{Type: types.TypeSingle}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if ev.Title == "" {
		return types.Event{}, fmt.Errorf("missing SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return types.Event{}, fmt.Errorf("missing DTSTART: %w", err)
	}
	end, endErr := ve.GetEndAt()

	// VALUE=DATE or a value without a time component means all-day.
	allDay := false
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if params := dtStart.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				allDay = true
			}
		}
		if !strings.Contains(dtStart.Value, "T") {
			allDay = true
		}
	}
	ev.AllDay = allDay

	if !allDay {
		ev.StartTime = start.Format(types.TimeLayout)
		if endErr == nil && end.After(start) {
			ev.EndTime = end.Format(types.TimeLayout)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil && p.Value != "" {
		ev.Extra = map[string]string{"description": p.Value}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		ev.Type = types.TypeRRule
		ev.RRule = rruleProp.Value
		ev.StartDate = start.Format(types.DateLayout)
		for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
			for _, part := range strings.Split(p.Value, ",") {
				part = strings.TrimSpace(part)
				if len(part) >= 8 {
					if day, err := time.Parse("20060102", part[:8]); err == nil {
						ev.SkipDates = append(ev.SkipDates, day.Format(types.DateLayout))
					}
				}
			}
		}
		return ev, ev.Validate()
	}

	ev.Date = start.Format(types.DateLayout)
	if endErr == nil {
		endDate := end
		if allDay {
			// DTEND is exclusive for all-day events.
			endDate = end.AddDate(0, 0, -1)
		}
		if d := endDate.Format(types.DateLayout); d != ev.Date && endDate.After(start) {
			ev.End = &types.EndDate{Date: d}
		}
	}

	return ev, ev.Validate()
}
