package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the ledger's date key format.
const DateLayout = "2006-01-02"

// HorizonMonths bounds how far ahead the calendar reaches.
const HorizonMonths = 3

type DayStatus string

const (
	DayPast   DayStatus = "past"
	DayClosed DayStatus = "closed"
	DayOpen   DayStatus = "open"
)

type CalendarDay struct {
	Date    string    `json:"date"`
	Weekday string    `json:"weekday"`
	Status  DayStatus `json:"status"`
}

// ParseDate parses a YYYY-MM-DD date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Truncate drops the clock part of t, keeping its calendar date.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Horizon is the last bookable date for the given today.
func Horizon(today time.Time) time.Time {
	return Truncate(today).AddDate(0, HorizonMonths, 0)
}

// Calendar marks each date in [from, to] as past, closed or open. to is
// clamped to the booking horizon.
func Calendar(hours WeeklyAvailability, from, to, today time.Time) []CalendarDay {
	today = Truncate(today)
	from = Truncate(from)
	to = Truncate(to)
	if h := Horizon(today); to.After(h) {
		to = h
	}

	var days []CalendarDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		status := DayOpen
		switch {
		case d.Before(today):
			status = DayPast
		case !hours.OpenOn(d.Weekday()):
			status = DayClosed
		}
		days = append(days, CalendarDay{
			Date:    d.Format(DateLayout),
			Weekday: WeekdayKey(d.Weekday()),
			Status:  status,
		})
	}
	return days
}
