package schedule

import (
	"fmt"
	"sort"
	"time"
)

// DefaultStepMinutes is the quantization step for candidate starts and
// collision probes.
const DefaultStepMinutes = 30

// WeeklyAvailability maps a weekday key to that day's opening windows in
// "HH:MM-HH:MM" form. Keys are the German abbreviations Mo..So as stored in
// zahnaerzte.json.
type WeeklyAvailability map[string][]string

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "Mo",
	time.Tuesday:   "Di",
	time.Wednesday: "Mi",
	time.Thursday:  "Do",
	time.Friday:    "Fr",
	time.Saturday:  "Sa",
	time.Sunday:    "So",
}

// WeekdayKey returns the stored key for d, e.g. "Mi" for Wednesday.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

func validWeekdayKey(key string) bool {
	for _, k := range weekdayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// WindowsFor parses the windows declared for the weekday in list order.
// English abbreviations (Mon, Tue, ...) are accepted as a fallback key.
func (a WeeklyAvailability) WindowsFor(d time.Weekday) ([]Window, error) {
	raw, ok := a[WeekdayKey(d)]
	if !ok {
		raw = a[d.String()[:3]]
	}
	windows := make([]Window, 0, len(raw))
	for _, s := range raw {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// OpenOn reports whether any window is declared for the weekday.
func (a WeeklyAvailability) OpenOn(d time.Weekday) bool {
	if len(a[WeekdayKey(d)]) > 0 {
		return true
	}
	return len(a[d.String()[:3]]) > 0
}

// Validate checks what the settings flow requires before saving: at least
// one day, known weekday keys, and From < To for every window.
func (a WeeklyAvailability) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("at least one weekday with opening hours is required")
	}
	days := make([]string, 0, len(a))
	for day := range a {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		if !validWeekdayKey(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, s := range a[day] {
			w, err := ParseWindow(s)
			if err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			if err := w.Validate(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

// CandidateStarts lists every start t, stepping from each window's From,
// such that t+duration still ends at or before that window's To. Windows are
// processed in the given order and overlapping windows each contribute their
// own starts, so duplicates are possible.
func CandidateStarts(windows []Window, durationMinutes, stepMinutes int) []TimeOfDay {
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	var starts []TimeOfDay
	for _, w := range windows {
		for t := w.From; t.Add(durationMinutes) <= w.To; t = t.Add(stepMinutes) {
			starts = append(starts, t)
		}
	}
	return starts
}
