// Package recurrence expands recurring and rrule event definitions into
// concrete occurrences. Expansion is pure with respect to the index: only
// the definition is ever stored, occurrences are derived on demand.
package recurrence

import (
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/taigrr/vaultcal/internal/types"
)

// Occurrence is one concrete start/end instant derived from a recurrence
// definition. All instants are floating local times represented in UTC.
type Occurrence struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

var weekdayByCode = map[string]time.Weekday{
	"U": time.Sunday,
	"M": time.Monday,
	"T": time.Tuesday,
	"W": time.Wednesday,
	"R": time.Thursday,
	"F": time.Friday,
	"S": time.Saturday,
}

// Expand returns a lazy, restartable sequence of the occurrences of ev
// inside the closed interval [from, to], ascending by start. The sequence
// never materializes an unbounded tail: iteration stops at to even when the
// definition has no terminating condition.
//
// Skip dates on rrule events are excluded by pairing each skip date with
// dtstart's time-of-day, not the time-of-day of the individual occurrence.
// This is only correct for rules producing at most one occurrence per
// calendar day; rules firing several times a day cannot address a single
// occurrence through skipDates.
func Expand(ev types.Event, from, to time.Time) (iter.Seq[Occurrence], error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	switch ev.Type {
	case types.TypeRecurring:
		return expandRecurring(ev, from, to), nil
	case types.TypeRRule:
		return expandRRule(ev, from, to)
	default:
		return nil, fmt.Errorf("%w: cannot expand event of type %q", types.ErrUnsupported, ev.Type)
	}
}

func expandRecurring(ev types.Event, from, to time.Time) iter.Seq[Occurrence] {
	days := make(map[time.Weekday]bool, len(ev.DaysOfWeek))
	for _, code := range ev.DaysOfWeek {
		days[weekdayByCode[code]] = true
	}

	first := startOfDay(from)
	if ev.StartRecur != "" {
		if start := mustDate(ev.StartRecur); start.After(first) {
			first = start
		}
	}
	last := startOfDay(to)
	if ev.EndRecur != "" {
		if end := mustDate(ev.EndRecur); end.Before(last) {
			last = end
		}
	}

	return func(yield func(Occurrence) bool) {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !days[day.Weekday()] {
				continue
			}
			if !yield(timedOccurrence(day, ev)) {
				return
			}
		}
	}
}

func expandRRule(ev types.Event, from, to time.Time) (iter.Seq[Occurrence], error) {
	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed rrule %q: %v", types.ErrValidation, ev.RRule, err)
	}

	dtstart := mustDate(ev.StartDate)
	if !ev.AllDay {
		dtstart = atTime(dtstart, ev.StartTime)
	}
	rule.DTStart(dtstart)

	var set rrule.Set
	set.RRule(rule)

	// Each skip entry excludes the occurrence at that date with dtstart's
	// time-of-day.
	for _, skip := range ev.SkipDates {
		day := mustDate(skip)
		set.ExDate(time.Date(day.Year(), day.Month(), day.Day(),
			dtstart.Hour(), dtstart.Minute(), 0, 0, time.UTC))
	}

	duration := eventDuration(ev)

	return func(yield func(Occurrence) bool) {
		next := set.Iterator()
		for {
			start, ok := next()
			if !ok || start.After(to) {
				return
			}
			if start.Before(from) {
				continue
			}
			occ := Occurrence{Start: start, AllDay: ev.AllDay}
			if ev.AllDay {
				occ.Start = startOfDay(start)
				occ.End = occ.Start.AddDate(0, 0, 1)
			} else {
				occ.End = start.Add(duration)
			}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// timedOccurrence combines a date with the definition-level times.
func timedOccurrence(day time.Time, ev types.Event) Occurrence {
	if ev.AllDay {
		return Occurrence{Start: day, End: day.AddDate(0, 0, 1), AllDay: true}
	}
	start := atTime(day, ev.StartTime)
	return Occurrence{Start: start, End: start.Add(eventDuration(ev))}
}

// eventDuration is computed once at the definition level, never
// per-occurrence.
func eventDuration(ev types.Event) time.Duration {
	if ev.AllDay || ev.StartTime == "" || ev.EndTime == "" {
		return 0
	}
	start, _ := time.Parse(types.TimeLayout, ev.StartTime)
	end, _ := time.Parse(types.TimeLayout, ev.EndTime)
	if d := end.Sub(start); d > 0 {
		return d
	}
	return 0
}

func atTime(day time.Time, hhmm string) time.Time {
	t, err := time.Parse(types.TimeLayout, hhmm)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// mustDate parses a wire-format date already checked by Validate.
func mustDate(value string) time.Time {
	t, _ := time.Parse(types.DateLayout, value)
	return t
}
