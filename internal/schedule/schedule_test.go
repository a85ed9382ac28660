package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func mustWindow(t *testing.T, s string) Window {
	t.Helper()
	w, err := ParseWindow(s)
	require.NoError(t, err)
	return w
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), v)
	assert.Equal(t, "09:30", v.String())

	for _, bad := range []string{"9:30", "24:00", "12:60", "ab:cd", "", "+9:00", "09:+5", "-1:30", " 9:30"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWindow(t *testing.T) {
	w := mustWindow(t, "08:00-12:00")
	assert.Equal(t, "08:00-12:00", w.String())
	assert.NoError(t, w.Validate())

	assert.Error(t, mustWindow(t, "12:00-08:00").Validate())

	_, err := ParseWindow("08:00")
	assert.Error(t, err)
}

func TestCandidateStartsHalfHourTreatment(t *testing.T) {
	starts := CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 30, DefaultStepMinutes)

	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		Strings(starts))
}

func TestCandidateStartsLongTreatment(t *testing.T) {
	starts := CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 45, DefaultStepMinutes)

	// 11:15 would still fit, but it is not on the step grid.
	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00"},
		Strings(starts))
}

func TestCandidateStartsRespectWindowEnd(t *testing.T) {
	windows := []Window{mustWindow(t, "08:00-10:00"), mustWindow(t, "14:00-15:30")}

	for _, start := range CandidateStarts(windows, 60, DefaultStepMinutes) {
		inside := false
		for _, w := range windows {
			if start >= w.From && start.Add(60) <= w.To {
				inside = true
			}
		}
		assert.True(t, inside, start.String())
	}
}

func TestCandidateStartsKeepsDuplicates(t *testing.T) {
	windows := []Window{mustWindow(t, "09:00-10:00"), mustWindow(t, "09:30-10:30")}

	assert.Equal(t,
		[]string{"09:00", "09:30", "09:30", "10:00"},
		Strings(CandidateStarts(windows, 30, DefaultStepMinutes)))
}

func TestCandidateStartsEmpty(t *testing.T) {
	assert.Empty(t, CandidateStarts(nil, 30, DefaultStepMinutes))
	assert.Empty(t, CandidateStarts([]Window{mustWindow(t, "09:00-09:20")}, 30, DefaultStepMinutes))
	assert.Empty(t, CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 30, 0))
}

func TestAvailableSlotsSkipsBookedSpan(t *testing.T) {
	candidates := CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 30, DefaultStepMinutes)
	occupied := Occupied{mustTime(t, "10:00"): 30, mustTime(t, "10:30"): 30}

	for _, mode := range []CollisionMode{ModeInterval, ModeQuantized} {
		got := AvailableSlots(candidates, 30, occupied, DefaultStepMinutes, mode)
		assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, Strings(got), string(mode))
	}
}

func TestQuantizedProbeMissesBookingTail(t *testing.T) {
	candidates := CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 30, DefaultStepMinutes)
	occupied := Occupied{mustTime(t, "10:00"): 60}

	quantized := AvailableSlots(candidates, 30, occupied, DefaultStepMinutes, ModeQuantized)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, Strings(quantized))

	interval := AvailableSlots(candidates, 30, occupied, DefaultStepMinutes, ModeInterval)
	assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, Strings(interval))
}

func TestAvailableSlotsModesDifferOffGrid(t *testing.T) {
	candidates := CandidateStarts([]Window{mustWindow(t, "09:00-12:00")}, 30, DefaultStepMinutes)
	// A 45 minute booking at 09:00 runs into the 09:30 slot.
	occupied := Occupied{mustTime(t, "09:00"): 45}

	quantized := AvailableSlots(candidates, 30, occupied, DefaultStepMinutes, ModeQuantized)
	assert.Contains(t, Strings(quantized), "09:30")

	interval := AvailableSlots(candidates, 30, occupied, DefaultStepMinutes, ModeInterval)
	assert.NotContains(t, Strings(interval), "09:30")
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, Strings(interval))
}

func TestAvailableSlotsLongCandidateHitsLaterBooking(t *testing.T) {
	candidates := []TimeOfDay{mustTime(t, "09:00")}
	occupied := Occupied{mustTime(t, "10:00"): 30}

	for _, mode := range []CollisionMode{ModeInterval, ModeQuantized} {
		assert.Empty(t, AvailableSlots(candidates, 90, occupied, DefaultStepMinutes, mode), string(mode))
	}
}

func TestAvailableSlotsEmptyCandidates(t *testing.T) {
	assert.Empty(t, AvailableSlots(nil, 30, Occupied{}, DefaultStepMinutes, ModeInterval))
}

func TestParseCollisionMode(t *testing.T) {
	m, err := ParseCollisionMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeInterval, m)

	m, err = ParseCollisionMode("Quantized")
	require.NoError(t, err)
	assert.Equal(t, ModeQuantized, m)

	_, err = ParseCollisionMode("fuzzy")
	assert.Error(t, err)
}

func TestWindowsForWeekdayKeys(t *testing.T) {
	hours := WeeklyAvailability{
		"Mo":  {"08:00-12:00", "13:00-17:00"},
		"Wed": {"09:00-11:00"},
	}

	mo, err := hours.WindowsFor(time.Monday)
	require.NoError(t, err)
	require.Len(t, mo, 2)
	assert.Equal(t, "13:00-17:00", mo[1].String())

	wed, err := hours.WindowsFor(time.Wednesday)
	require.NoError(t, err)
	assert.Len(t, wed, 1)

	fr, err := hours.WindowsFor(time.Friday)
	require.NoError(t, err)
	assert.Empty(t, fr)
	assert.False(t, hours.OpenOn(time.Friday))
}

func TestWeeklyAvailabilityValidate(t *testing.T) {
	assert.NoError(t, WeeklyAvailability{"Di": {"08:00-12:00"}}.Validate())
	assert.Error(t, WeeklyAvailability{}.Validate())
	assert.Error(t, WeeklyAvailability{"Xy": {"08:00-12:00"}}.Validate())
	assert.Error(t, WeeklyAvailability{"Di": {"12:00-08:00"}}.Validate())
	assert.Error(t, WeeklyAvailability{"Di": {"8-12"}}.Validate())
}

func TestCalendar(t *testing.T) {
	hours := WeeklyAvailability{"Mo": {"08:00-12:00"}, "Fr": {"08:00-12:00"}}
	today := time.Date(2025, 6, 13, 15, 0, 0, 0, time.UTC) // Friday

	from, _ := ParseDate("2025-06-12")
	to, _ := ParseDate("2025-06-16")
	days := Calendar(hours, from, to, today)

	require.Len(t, days, 5)
	assert.Equal(t, CalendarDay{Date: "2025-06-12", Weekday: "Do", Status: DayPast}, days[0])
	assert.Equal(t, DayOpen, days[1].Status)
	assert.Equal(t, DayClosed, days[2].Status)
	assert.Equal(t, DayClosed, days[3].Status)
	assert.Equal(t, CalendarDay{Date: "2025-06-16", Weekday: "Mo", Status: DayOpen}, days[4])
}

func TestCalendarClampsToHorizon(t *testing.T) {
	today := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	days := Calendar(WeeklyAvailability{"Mo": {"08:00-12:00"}}, today, today.AddDate(1, 0, 0), today)

	require.NotEmpty(t, days)
	assert.Equal(t, "2025-09-13", days[len(days)-1].Date)
}
