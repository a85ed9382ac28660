package appointment

import (
	"sort"

	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

// Booking is one entry of termine.json.
type Booking struct {
	Patient         string `json:"patient"`
	Treatment       string `json:"behandlung"`
	DurationMinutes int    `json:"dauer"`
}

// SlotKey addresses a booking. Date is YYYY-MM-DD and Start is HH:MM.
type SlotKey struct {
	Dentist string `json:"dentist"`
	Date    string `json:"date"`
	Start   string `json:"time"`
}

func (k SlotKey) String() string {
	return k.Dentist + "/" + k.Date + "/" + k.Start
}

// Day maps start time to booking for one dentist and date.
type Day map[string]Booking

// Ledger is dentist -> date -> start -> booking.
type Ledger map[string]map[string]Day

func (l Ledger) Get(k SlotKey) (Booking, bool) {
	b, ok := l[k.Dentist][k.Date][k.Start]
	return b, ok
}

func (l Ledger) Day(dentist, date string) Day {
	return l[dentist][date]
}

func (l Ledger) Put(k SlotKey, b Booking) {
	dates, ok := l[k.Dentist]
	if !ok {
		dates = make(map[string]Day)
		l[k.Dentist] = dates
	}
	day, ok := dates[k.Date]
	if !ok {
		day = make(Day)
		dates[k.Date] = day
	}
	day[k.Start] = b
}

// Delete removes the booking and prunes empty date and dentist maps.
func (l Ledger) Delete(k SlotKey) {
	day := l[k.Dentist][k.Date]
	if day == nil {
		return
	}
	delete(day, k.Start)
	if len(day) == 0 {
		delete(l[k.Dentist], k.Date)
	}
	if len(l[k.Dentist]) == 0 {
		delete(l, k.Dentist)
	}
}

// Occupied converts the day's bookings into start and duration pairs.
// Entries with an unreadable start time are skipped.
func (d Day) Occupied() schedule.Occupied {
	out := make(schedule.Occupied, len(d))
	for start, b := range d {
		t, err := schedule.ParseTimeOfDay(start)
		if err != nil {
			continue
		}
		out[t] = b.DurationMinutes
	}
	return out
}

// Entry is a booking together with its key, as shown in listings.
type Entry struct {
	SlotKey
	Booking
}

// Entries flattens the ledger into a list sorted by date, time and dentist.
func (l Ledger) Entries(keep func(SlotKey, Booking) bool) []Entry {
	var out []Entry
	for dentist, dates := range l {
		for date, day := range dates {
			for start, b := range day {
				k := SlotKey{Dentist: dentist, Date: date, Start: start}
				if keep == nil || keep(k, b) {
					out = append(out, Entry{SlotKey: k, Booking: b})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Dentist < out[j].Dentist
	})
	return out
}

// BookRequest is the input of Service.BookSlot.
type BookRequest struct {
	Dentist   string
	Date      string
	Time      string
	Patient   string
	Treatment string
	Units     int
	Material  catalog.MaterialGrade
}

// Confirmation is returned after a booking has been committed.
type Confirmation struct {
	Dentist   string                `json:"dentist"`
	Date      string                `json:"date"`
	Time      string                `json:"time"`
	Treatment string                `json:"treatment"`
	Units     int                   `json:"units"`
	Material  catalog.MaterialGrade `json:"material,omitempty"`
	Duration  int                   `json:"duration_minutes"`
}
