package schedule

import (
	"fmt"
	"strings"
)

// Occupied maps the start of each booking on one day to its duration in
// minutes.
type Occupied map[TimeOfDay]int

// CollisionMode selects how candidate spans are tested against bookings.
type CollisionMode string

const (
	// ModeInterval rejects a candidate whose [start, start+duration) span
	// overlaps any booking's span.
	ModeInterval CollisionMode = "interval"
	// ModeQuantized probes start, start+step, ... < start+duration and
	// rejects the candidate if any probe is a booked start. Bookings that do
	// not begin on a probe point go unnoticed.
	ModeQuantized CollisionMode = "quantized"
)

func ParseCollisionMode(s string) (CollisionMode, error) {
	switch CollisionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeInterval:
		return ModeInterval, nil
	case ModeQuantized:
		return ModeQuantized, nil
	default:
		return "", fmt.Errorf("unknown collision mode %q", s)
	}
}

// AvailableSlots keeps the candidates whose whole span is free.
func AvailableSlots(candidates []TimeOfDay, durationMinutes int, occupied Occupied, stepMinutes int, mode CollisionMode) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(candidates))
	for _, t := range candidates {
		if Collides(t, durationMinutes, occupied, stepMinutes, mode) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Collides reports whether a treatment starting at t would hit a booking.
func Collides(t TimeOfDay, durationMinutes int, occupied Occupied, stepMinutes int, mode CollisionMode) bool {
	if _, taken := occupied[t]; taken {
		return true
	}
	if mode == ModeQuantized {
		if stepMinutes <= 0 {
			return false
		}
		end := t.Add(durationMinutes)
		for probe := t; probe < end; probe = probe.Add(stepMinutes) {
			if _, taken := occupied[probe]; taken {
				return true
			}
		}
		return false
	}

	end := t.Add(durationMinutes)
	for start, d := range occupied {
		if t < start.Add(d) && start < end {
			return true
		}
	}
	return false
}

// Strings formats times as HH:MM.
func Strings(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}
