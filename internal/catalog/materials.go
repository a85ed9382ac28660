package catalog

import (
	"fmt"
	"sort"

	"github.com/hackgods/dental-practice-booking/internal/jsonfile"
)

// MaterialsFile is the material table's file name inside the data directory.
const MaterialsFile = "materialien.json"

// MaterialGrade is the quality tier of filling material.
type MaterialGrade string

const (
	MaterialStandard MaterialGrade = "normal"
	MaterialUpgraded MaterialGrade = "höherwertig"
	MaterialPremium  MaterialGrade = "höchstwertig"
)

// Material is one entry of materialien.json.
type Material struct {
	Factor         float64                    `json:"faktor"`
	Reimbursements map[InsuranceClass]float64 `json:"erstattung"`
}

// Materials is the per-material pricing table used when a booking is
// prepared. Its ratios are not the flat Reimbursement table.
type Materials struct {
	grades map[MaterialGrade]Material
}

func NewMaterials(grades map[MaterialGrade]Material) *Materials {
	cp := make(map[MaterialGrade]Material, len(grades))
	for k, v := range grades {
		cp[k] = v
	}
	return &Materials{grades: cp}
}

// DefaultMaterials is written by the seed command when no materialien.json
// exists.
func DefaultMaterials() *Materials {
	return NewMaterials(map[MaterialGrade]Material{
		MaterialStandard: {
			Factor: 1.0,
			Reimbursements: map[InsuranceClass]float64{
				Statutory: 0.70, Private: 0.85, VoluntaryStatutory: 0.75,
			},
		},
		MaterialUpgraded: {
			Factor: 1.5,
			Reimbursements: map[InsuranceClass]float64{
				Statutory: 0.50, Private: 0.80, VoluntaryStatutory: 0.60,
			},
		},
		MaterialPremium: {
			Factor: 2.0,
			Reimbursements: map[InsuranceClass]float64{
				Statutory: 0.30, Private: 0.70, VoluntaryStatutory: 0.40,
			},
		},
	})
}

// LoadMaterials reads materialien.json.
func LoadMaterials(path string) (*Materials, error) {
	var grades map[MaterialGrade]Material
	if err := jsonfile.Read(path, &grades); err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	if len(grades) == 0 {
		return nil, fmt.Errorf("load materials: %s defines no grades", path)
	}
	return NewMaterials(grades), nil
}

// Save writes the table in the materialien.json layout.
func (m *Materials) Save(path string) error {
	return jsonfile.Write(path, m.grades)
}

func (m *Materials) Lookup(grade MaterialGrade) (Material, bool) {
	g, ok := m.grades[grade]
	return g, ok
}

// Grades lists the known grades in sorted order.
func (m *Materials) Grades() []MaterialGrade {
	out := make([]MaterialGrade, 0, len(m.grades))
	for g := range m.grades {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
