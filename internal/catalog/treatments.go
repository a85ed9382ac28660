package catalog

import (
	"sort"
	"strings"
)

// TreatmentKind is the catalog key of a treatment, e.g. "Karies klein".
type TreatmentKind string

const (
	CariesSmall  TreatmentKind = "Karies klein"
	CariesLarge  TreatmentKind = "Karies groß"
	PartialCrown TreatmentKind = "Teilkrone"
	Crown        TreatmentKind = "Krone"
	RootCanal    TreatmentKind = "Wurzelbehandlung"
)

// Treatment is one catalog entry. Price is per unit.
type Treatment struct {
	Price           float64 `json:"preis"`
	DurationMinutes int     `json:"zeit"`
	UnitLabel       string  `json:"einheit"`
}

// Treatments is the read-only treatment catalog. It is built once at start
// and passed to whoever needs prices or durations.
type Treatments struct {
	entries map[TreatmentKind]Treatment
}

func NewTreatments(entries map[TreatmentKind]Treatment) *Treatments {
	cp := make(map[TreatmentKind]Treatment, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &Treatments{entries: cp}
}

// DefaultTreatments returns the practice price list.
func DefaultTreatments() *Treatments {
	return NewTreatments(map[TreatmentKind]Treatment{
		CariesSmall:  {Price: 50, DurationMinutes: 30, UnitLabel: "Minuten"},
		CariesLarge:  {Price: 120, DurationMinutes: 45, UnitLabel: "Minuten"},
		PartialCrown: {Price: 400, DurationMinutes: 60, UnitLabel: "Minuten"},
		Crown:        {Price: 600, DurationMinutes: 90, UnitLabel: "Minuten"},
		RootCanal:    {Price: 300, DurationMinutes: 120, UnitLabel: "Minuten"},
	})
}

// Lookup finds a treatment. Keys compare case-insensitively because stored
// records spell "Karies Groß" and "Karies groß" interchangeably.
func (t *Treatments) Lookup(name string) (Treatment, TreatmentKind, bool) {
	if e, ok := t.entries[TreatmentKind(name)]; ok {
		return e, TreatmentKind(name), true
	}
	for k, e := range t.entries {
		if strings.EqualFold(string(k), name) {
			return e, k, true
		}
	}
	return Treatment{}, "", false
}

// Kinds lists the catalog keys in sorted order.
func (t *Treatments) Kinds() []TreatmentKind {
	kinds := make([]TreatmentKind, 0, len(t.entries))
	for k := range t.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
