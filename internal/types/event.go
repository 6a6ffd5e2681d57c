// Package types defines all data structures shared across the sync engine.
package types

import (
	"errors"
	"fmt"
	"time"
)

// EventType discriminates the three event shapes.
type EventType string

const (
	TypeSingle    EventType = "single"
	TypeRecurring EventType = "recurring"
	TypeRRule     EventType = "rrule"
)

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// TimeLayout is the local-time wire format.
const TimeLayout = "15:04"

// WeekdayCodes is the alphabet for recurring daysOfWeek entries,
// Sunday through Saturday.
const WeekdayCodes = "UMTWRFS"

type (
	// EndDate carries the end date of a single event. A nil *EndDate means
	// the key was absent; Null round-trips an explicit `endDate: null`,
	// which is distinct from "unspecified, same as date".
	EndDate struct {
		Null bool   `json:"null,omitempty"`
		Date string `json:"date,omitempty"`
	}

	// Task carries the tri-state `completed` field. A nil *Task means the
	// event is not a task; Done=false is an open task; Done=true records
	// the completion timestamp.
	Task struct {
		Done        bool   `json:"done"`
		CompletedAt string `json:"completedAt,omitempty"`
	}

	// Event is one calendar entry in one of three shapes. Fields outside
	// the shape selected by Type are zero. Extra holds custom frontmatter
	// keys, round-tripped verbatim.
	Event struct {
		Type   EventType `json:"type"`
		Title  string    `json:"title"`
		AllDay bool      `json:"allDay"`

		// single
		Date string   `json:"date,omitempty"`
		End  *EndDate `json:"endDate,omitempty"`
		Task *Task    `json:"completed,omitempty"`

		// single, recurring, rrule
		StartTime string `json:"startTime,omitempty"`
		EndTime   string `json:"endTime,omitempty"`

		// recurring
		DaysOfWeek []string `json:"daysOfWeek,omitempty"`
		StartRecur string   `json:"startRecur,omitempty"`
		EndRecur   string   `json:"endRecur,omitempty"`

		// rrule
		RRule     string   `json:"rrule,omitempty"`
		StartDate string   `json:"startDate,omitempty"`
		SkipDates []string `json:"skipDates,omitempty"`

		Extra map[string]string `json:"extra,omitempty"`
	}
)

// Validate checks the structural invariants of an event before any write.
// All failures wrap ErrValidation.
func (e Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}

	switch e.Type {
	case TypeSingle:
		if err := checkDate("date", e.Date, true); err != nil {
			return err
		}
		if e.End != nil && !e.End.Null {
			if err := checkDate("endDate", e.End.Date, true); err != nil {
				return err
			}
		}
	case TypeRecurring:
		if len(e.DaysOfWeek) == 0 {
			return fmt.Errorf("%w: recurring event needs at least one weekday", ErrValidation)
		}
		seen := map[string]bool{}
		for _, code := range e.DaysOfWeek {
			if len(code) != 1 || !containsCode(code) {
				return fmt.Errorf("%w: unknown weekday code %q", ErrValidation, code)
			}
			if seen[code] {
				return fmt.Errorf("%w: duplicate weekday code %q", ErrValidation, code)
			}
			seen[code] = true
		}
		if err := checkDate("startRecur", e.StartRecur, false); err != nil {
			return err
		}
		if err := checkDate("endRecur", e.EndRecur, false); err != nil {
			return err
		}
	case TypeRRule:
		if e.RRule == "" {
			return fmt.Errorf("%w: rrule string is required", ErrValidation)
		}
		if err := checkDate("startDate", e.StartDate, true); err != nil {
			return err
		}
		for _, d := range e.SkipDates {
			if err := checkDate("skipDates", d, true); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	}

	if !e.AllDay {
		if err := checkTime("startTime", e.StartTime, true); err != nil {
			return err
		}
		if err := checkTime("endTime", e.EndTime, false); err != nil {
			return err
		}
	}

	return nil
}

func containsCode(code string) bool {
	for _, c := range WeekdayCodes {
		if string(c) == code {
			return true
		}
	}
	return false
}

func checkDate(field, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
		return nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return fmt.Errorf("%w: %s: malformed date %q", ErrValidation, field, value)
	}
	return nil
}

func checkTime(field, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%w: %s is required for timed events", ErrValidation, field)
		}
		return nil
	}
	if _, err := time.Parse(TimeLayout, value); err != nil {
		return fmt.Errorf("%w: %s: malformed time %q", ErrValidation, field, value)
	}
	return nil
}

// Taxonomy of failures crossing the coordinator boundary. Callers test with
// errors.Is; everything raised inside the engine wraps exactly one of these.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("operation not supported")
	ErrIO          = errors.New("backing store failure")
)
