// Package pricing computes treatment costs and insurance shares.
//
// Two formulas coexist. OverviewCosts uses the flat reimbursement table and
// backs the patient's data summary. PreBookingCosts uses the per-material
// table and backs the booking dialog. They are kept apart because their
// ratios differ.
package pricing

import (
	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
)

// LineItem is one outstanding treatment need.
type LineItem struct {
	Kind  string
	Units int
}

type ItemCost struct {
	Kind    catalog.TreatmentKind `json:"kind"`
	Units   int                   `json:"units"`
	Cost    float64               `json:"cost"`
	Minutes int                   `json:"minutes"`
}

type Breakdown struct {
	Items              []ItemCost `json:"items"`
	TotalCost          float64    `json:"total_cost"`
	InsuranceShare     float64    `json:"insurance_share"`
	PatientShare       float64    `json:"patient_share"`
	TotalMinutes       int        `json:"total_minutes"`
	ReimbursementRatio float64    `json:"reimbursement_ratio"`
}

// OverviewCosts prices every line item at catalog price times units.
// Items whose kind is not in the catalog are skipped.
func OverviewCosts(treatments *catalog.Treatments, table *catalog.Reimbursement, items []LineItem, insurance catalog.InsuranceClass) Breakdown {
	ratio := table.Ratio(insurance)
	out := Breakdown{Items: []ItemCost{}, ReimbursementRatio: ratio}

	for _, item := range items {
		t, kind, ok := treatments.Lookup(item.Kind)
		if !ok {
			continue
		}
		cost := t.Price * float64(item.Units)
		minutes := t.DurationMinutes * item.Units

		out.Items = append(out.Items, ItemCost{Kind: kind, Units: item.Units, Cost: cost, Minutes: minutes})
		out.TotalCost += cost
		out.TotalMinutes += minutes
	}

	out.InsuranceShare = out.TotalCost * ratio
	out.PatientShare = out.TotalCost * (1 - ratio)
	return out
}

// PreBookingCosts prices a single treatment with a material factor. The
// ratio comes from the material's own reimbursement entry for the class.
func PreBookingCosts(treatments *catalog.Treatments, materials *catalog.Materials, kind string, units int, material catalog.MaterialGrade, insurance catalog.InsuranceClass) (Breakdown, error) {
	if units <= 0 {
		return Breakdown{}, apperr.Validation("units must be positive, got %d", units)
	}
	t, canonical, ok := treatments.Lookup(kind)
	if !ok {
		return Breakdown{}, apperr.Validation("unknown treatment %q", kind)
	}
	m, ok := materials.Lookup(material)
	if !ok {
		return Breakdown{}, apperr.Validation("unknown material %q", material)
	}
	ratio, ok := m.Reimbursements[insurance]
	if !ok {
		return Breakdown{}, apperr.Validation("material %q has no reimbursement for %q", material, insurance)
	}

	total := t.Price * m.Factor * float64(units)
	minutes := t.DurationMinutes * units
	return Breakdown{
		Items:              []ItemCost{{Kind: canonical, Units: units, Cost: total, Minutes: minutes}},
		TotalCost:          total,
		InsuranceShare:     total * ratio,
		PatientShare:       total * (1 - ratio),
		TotalMinutes:       minutes,
		ReimbursementRatio: ratio,
	}, nil
}
