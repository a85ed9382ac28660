package catalog

// InsuranceClass is the patient's type of health insurance.
type InsuranceClass string

const (
	Statutory          InsuranceClass = "gesetzlich"
	Private            InsuranceClass = "privat"
	VoluntaryStatutory InsuranceClass = "freiwillig gesetzlich"
)

// DefaultReimbursementRatio applies to classes missing from the flat table.
const DefaultReimbursementRatio = 0.70

// InsuranceClasses lists every class the practice knows about.
func InsuranceClasses() []InsuranceClass {
	return []InsuranceClass{Statutory, Private, VoluntaryStatutory}
}

// Valid reports whether c is one of the known classes.
func (c InsuranceClass) Valid() bool {
	for _, known := range InsuranceClasses() {
		if c == known {
			return true
		}
	}
	return false
}

// Reimbursement is the flat reimbursement table used by the cost overview.
// It is independent of the per-material table used before booking.
type Reimbursement struct {
	ratios map[InsuranceClass]float64
}

func NewReimbursement(ratios map[InsuranceClass]float64) *Reimbursement {
	cp := make(map[InsuranceClass]float64, len(ratios))
	for k, v := range ratios {
		cp[k] = v
	}
	return &Reimbursement{ratios: cp}
}

func DefaultReimbursement() *Reimbursement {
	return NewReimbursement(map[InsuranceClass]float64{
		Statutory:          0.70,
		Private:            0.85,
		VoluntaryStatutory: 0.75,
	})
}

// Ratio returns the share covered by the insurer, falling back to
// DefaultReimbursementRatio for unknown classes.
func (r *Reimbursement) Ratio(c InsuranceClass) float64 {
	if v, ok := r.ratios[c]; ok {
		return v
	}
	return DefaultReimbursementRatio
}
