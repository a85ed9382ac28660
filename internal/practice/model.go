package practice

import (
	"strings"

	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

// Problem is an outstanding treatment need. Units stays above zero while
// the entry exists.
type Problem struct {
	Kind     string                `json:"art"`
	Units    int                   `json:"anzahl"`
	Material catalog.MaterialGrade `json:"material,omitempty"`
}

type Patient struct {
	Name            string                 `json:"name"`
	Password        string                 `json:"passwort"`
	PasswordChanged bool                   `json:"passwort_geaendert"`
	Insurance       catalog.InsuranceClass `json:"krankenkasse"`
	Problems        []Problem              `json:"probleme"`
}

type Dentist struct {
	Name            string                      `json:"name"`
	Password        string                      `json:"passwort"`
	PasswordChanged bool                        `json:"passwort_geaendert"`
	Accepts         []catalog.InsuranceClass    `json:"behandelt"`
	Hours           schedule.WeeklyAvailability `json:"zeiten"`
}

// AcceptsInsurance reports whether the dentist treats patients of class c.
func (d Dentist) AcceptsInsurance(c catalog.InsuranceClass) bool {
	for _, a := range d.Accepts {
		if a == c {
			return true
		}
	}
	return false
}

// ConsumeUnits books units of the first matching problem. A problem with
// more units left is decremented, otherwise it is removed. It reports
// whether a matching problem existed.
func (p *Patient) ConsumeUnits(kind string, units int) bool {
	for i, prob := range p.Problems {
		if !strings.EqualFold(prob.Kind, kind) {
			continue
		}
		if prob.Units > units {
			p.Problems[i].Units -= units
		} else {
			p.Problems = append(p.Problems[:i], p.Problems[i+1:]...)
		}
		return true
	}
	return false
}

// AddUnits increments an existing problem of the same kind or appends a new
// one with the standard material.
func (p *Patient) AddUnits(kind string, units int) {
	for i, prob := range p.Problems {
		if strings.EqualFold(prob.Kind, kind) {
			p.Problems[i].Units += units
			return
		}
	}
	p.Problems = append(p.Problems, Problem{Kind: kind, Units: units, Material: catalog.MaterialStandard})
}

func findPatient(patients []Patient, name string) int {
	for i := range patients {
		if patients[i].Name == name {
			return i
		}
	}
	return -1
}

func findDentist(dentists []Dentist, name string) int {
	for i := range dentists {
		if dentists[i].Name == name {
			return i
		}
	}
	return -1
}
