package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreatmentLookupIsCaseInsensitive(t *testing.T) {
	treatments := DefaultTreatments()

	entry, key, ok := treatments.Lookup("Karies Groß")
	require.True(t, ok)
	assert.Equal(t, CariesLarge, key)
	assert.Equal(t, 45, entry.DurationMinutes)
	assert.Equal(t, 120.0, entry.Price)

	_, _, ok = treatments.Lookup("Bleaching")
	assert.False(t, ok)
}

func TestTreatmentKindsSorted(t *testing.T) {
	kinds := DefaultTreatments().Kinds()
	require.Len(t, kinds, 5)
	assert.Equal(t, CariesLarge, kinds[0])
	assert.Equal(t, RootCanal, kinds[4])
}

func TestReimbursementFallsBack(t *testing.T) {
	r := DefaultReimbursement()

	assert.Equal(t, 0.85, r.Ratio(Private))
	assert.Equal(t, 0.75, r.Ratio(VoluntaryStatutory))
	assert.Equal(t, DefaultReimbursementRatio, r.Ratio("Beihilfe"))
}

func TestInsuranceClassValid(t *testing.T) {
	assert.True(t, Statutory.Valid())
	assert.False(t, InsuranceClass("gesetzlich ").Valid())
}

func TestMaterialsSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "materialien.json")
	require.NoError(t, DefaultMaterials().Save(path))

	loaded, err := LoadMaterials(path)
	require.NoError(t, err)

	m, ok := loaded.Lookup(MaterialUpgraded)
	require.True(t, ok)
	assert.Equal(t, 1.5, m.Factor)
	assert.Equal(t, 0.80, m.Reimbursements[Private])
	assert.Equal(t, []MaterialGrade{MaterialPremium, MaterialUpgraded, MaterialStandard}, loaded.Grades())
}

func TestLoadMaterialsMissingFile(t *testing.T) {
	_, err := LoadMaterials(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
