package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/types"
)

// Google is a read-only calendar backed by the Google Calendar API. Events
// are listed over a sliding window around now; recurring definitions are
// expanded server-side (SingleEvents), so everything arrives as single
// events.
type Google struct {
	info       types.CalendarInfo
	svc        *gcal.Service
	calendarID string
	lookBehind time.Duration
	lookAhead  time.Duration
}

// NewGoogle creates a read-only calendar over one Google calendar id
// ("primary" for the account default).
func NewGoogle(info types.CalendarInfo, svc *gcal.Service, calendarID string, lookBehind, lookAhead time.Duration) *Google {
	info.Kind = types.KindRemoteGoogle
	info.Editable = false
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Google{
		info:       info,
		svc:        svc,
		calendarID: calendarID,
		lookBehind: lookBehind,
		lookAhead:  lookAhead,
	}
}

func (c *Google) Info() types.CalendarInfo { return c.info }

// ContainsPath is always false: remote events have no vault location.
func (c *Google) ContainsPath(string) bool { return false }

// EventsAt is always empty: remote events have no vault location.
func (c *Google) EventsAt(context.Context, string) ([]types.SourcedEvent, error) { return nil, nil }

func (c *Google) GetEvents(ctx context.Context) ([]types.SourcedEvent, error) {
	now := time.Now()
	list, err := c.svc.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(now.Add(-c.lookBehind).Format(time.RFC3339)).
		TimeMax(now.Add(c.lookAhead).Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", types.ErrIO, c.calendarID, err)
	}

	var out []types.SourcedEvent
	for _, item := range list.Items {
		ev, err := convertGoogleEvent(item)
		if err != nil {
			applog.Debug("gcal: skipping event", "calendar", c.info.ID, "reason", err)
			continue
		}
		out = append(out, types.SourcedEvent{Event: ev})
	}
	return out, nil
}

func convertGoogleEvent(item *gcal.Event) (types.Event, error) {
	if item.Summary == "" || item.Start == nil {
		return types.Event{}, fmt.Errorf("event %s has no summary or start", item.Id)
	}

	ev := types.Event{Type: types.TypeSingle, Title: item.Summary}

	if item.Start.Date != "" {
		// All-day: Date fields carry plain calendar dates, end exclusive.
		ev.AllDay = true
		ev.Date = item.Start.Date
		if item.End != nil && item.End.Date != "" {
			end, err := time.Parse(types.DateLayout, item.End.Date)
			if err == nil {
				if d := end.AddDate(0, 0, -1).Format(types.DateLayout); d != ev.Date {
					ev.End = &types.EndDate{Date: d}
				}
			}
		}
	} else {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return types.Event{}, fmt.Errorf("event %s has bad start time: %v", item.Id, err)
		}
		ev.Date = start.Format(types.DateLayout)
		ev.StartTime = start.Format(types.TimeLayout)
		if item.End != nil && item.End.DateTime != "" {
			if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.EndTime = end.Format(types.TimeLayout)
				if d := end.Format(types.DateLayout); d != ev.Date {
					ev.End = &types.EndDate{Date: d}
				}
			}
		}
	}

	if item.Location != "" {
		ev.Extra = map[string]string{"location": item.Location}
	}

	return ev, ev.Validate()
}

// NewGoogleService builds an authenticated Calendar API client from a
// credentials file and a previously saved OAuth token.
func NewGoogleService(ctx context.Context, credentialsPath, tokenPath string) (*gcal.Service, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load token (run an OAuth flow first): %w", err)
	}

	return gcal.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
