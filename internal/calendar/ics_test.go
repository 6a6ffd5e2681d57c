package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/taigrr/vaultcal/internal/types"
)

const testFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:timed-1
SUMMARY:Team sync
DTSTART:20240115T100000Z
DTEND:20240115T110000Z
END:VEVENT
BEGIN:VEVENT
UID:allday-1
SUMMARY:Conference
DTSTART;VALUE=DATE:20240201
DTEND;VALUE=DATE:20240203
END:VEVENT
BEGIN:VEVENT
UID:recurring-1
SUMMARY:Payday
DTSTART;VALUE=DATE:20240125
RRULE:FREQ=MONTHLY;BYMONTHDAY=25
EXDATE;VALUE=DATE:20240325
END:VEVENT
END:VCALENDAR
`

func TestParseICSFeed(t *testing.T) {
	events, err := parseICSFeed([]byte(testFeed))
	if err != nil {
		t.Fatalf("parseICSFeed() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	byTitle := map[string]types.Event{}
	for _, se := range events {
		byTitle[se.Event.Title] = se.Event
		if se.Location != nil {
			t.Errorf("remote event %q has a location", se.Event.Title)
		}
	}

	timed := byTitle["Team sync"]
	if timed.AllDay || timed.Date != "2024-01-15" || timed.StartTime != "10:00" || timed.EndTime != "11:00" {
		t.Errorf("timed event = %+v", timed)
	}

	// All-day DTEND is exclusive, so the two-day conference ends on Feb 2.
	allDay := byTitle["Conference"]
	if !allDay.AllDay || allDay.Date != "2024-02-01" {
		t.Errorf("all-day event = %+v", allDay)
	}
	if allDay.End == nil || allDay.End.Date != "2024-02-02" {
		t.Errorf("all-day End = %+v, want 2024-02-02", allDay.End)
	}

	recurring := byTitle["Payday"]
	if recurring.Type != types.TypeRRule || recurring.StartDate != "2024-01-25" {
		t.Errorf("recurring event = %+v", recurring)
	}
	if len(recurring.SkipDates) != 1 || recurring.SkipDates[0] != "2024-03-25" {
		t.Errorf("SkipDates = %v", recurring.SkipDates)
	}
}

func TestICS_ConditionalFetch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	cal := NewICS(types.CalendarInfo{ID: "feed"}, srv.URL)
	ctx := context.Background()

	events, err := cal.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	// Second refresh hits the 304 path and keeps the cached events.
	if err := cal.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	events, err = cal.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents() after 304 error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events after 304, want 3", len(events))
	}
	if requests.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", requests.Load())
	}
}

func TestICS_FetchFailureKeepsCache(t *testing.T) {
	var broken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	cal := NewICS(types.CalendarInfo{ID: "feed"}, srv.URL)
	ctx := context.Background()

	if _, err := cal.GetEvents(ctx); err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	broken.Store(true)
	if err := cal.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() with cached body should not error, got %v", err)
	}
	events, err := cal.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("cached events lost on fetch failure: got %d", len(events))
	}
}

func TestICS_FirstFetchFailureErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cal := NewICS(types.CalendarInfo{ID: "feed"}, srv.URL)
	if _, err := cal.GetEvents(context.Background()); err == nil {
		t.Error("first fetch failure with no cache must error")
	}
}
