package practice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/jsonfile"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

type fakeRenamer struct {
	calls [][2]string
	err   error
}

func (f *fakeRenamer) RenameDentist(ctx context.Context, oldName, newName string) error {
	f.calls = append(f.calls, [2]string{oldName, newName})
	return f.err
}

func newTestService(t *testing.T) (*Service, string, *fakeRenamer) {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, jsonfile.Write(filepath.Join(dir, PatientsFile), []Patient{
		{Name: "Anna", Insurance: catalog.Statutory, Problems: []Problem{{Kind: "Karies klein", Units: 2}}},
	}))
	require.NoError(t, jsonfile.Write(filepath.Join(dir, DentistsFile), []Dentist{
		{Name: "Dr. Weiß", Accepts: []catalog.InsuranceClass{catalog.Statutory, catalog.Private},
			Hours: schedule.WeeklyAvailability{"Mo": {"08:00-12:00"}}},
		{Name: "Dr. Roth", Accepts: []catalog.InsuranceClass{catalog.Private},
			Hours: schedule.WeeklyAvailability{"Di": {"09:00-17:00"}}},
	}))

	renamer := &fakeRenamer{}
	svc := NewService(NewJSONRepository(dir), renamer, catalog.DefaultTreatments(), zerolog.Nop())
	return svc, dir, renamer
}

func TestEligibleDentists(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.EligibleDentists(ctx, catalog.Private)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Contains(t, d.Accepts, catalog.Private)
	}

	got, err = svc.EligibleDentists(ctx, catalog.Statutory)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dr. Weiß", got[0].Name)

	_, err = svc.EligibleDentists(ctx, catalog.VoluntaryStatutory)
	assert.True(t, errors.Is(err, apperr.ErrNoAvailableDentist))
}

func TestRegisterPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.RegisterPatient(ctx, PatientRegistration{
		Name: " Ben ", Password: "x", Insurance: catalog.Private, Problem: "krone",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ben", p.Name)
	assert.True(t, p.PasswordChanged)
	assert.Equal(t, []Problem{{Kind: "Krone", Units: 1}}, p.Problems)

	stored, err := svc.Patient(ctx, "Ben")
	require.NoError(t, err)
	assert.Equal(t, catalog.Private, stored.Insurance)

	_, err = svc.RegisterPatient(ctx, PatientRegistration{Name: "Ben", Insurance: catalog.Private, Problem: "Krone"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.RegisterPatient(ctx, PatientRegistration{Name: "Cleo", Insurance: "Beihilfe", Problem: "Krone"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.RegisterPatient(ctx, PatientRegistration{Name: "Cleo", Insurance: catalog.Private, Problem: "Krone", Units: -2})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAddProblemIncrementsOrAppends(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.AddProblem(ctx, "Anna", "karies klein", 3)
	require.NoError(t, err)
	assert.Equal(t, []Problem{{Kind: "Karies klein", Units: 5}}, p.Problems)

	p, err = svc.AddProblem(ctx, "Anna", "Teilkrone", 1)
	require.NoError(t, err)
	require.Len(t, p.Problems, 2)
	assert.Equal(t, Problem{Kind: "Teilkrone", Units: 1, Material: catalog.MaterialStandard}, p.Problems[1])

	_, err = svc.AddProblem(ctx, "Anna", "Teilkrone", 0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.AddProblem(ctx, "Nobody", "Teilkrone", 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateInsurance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.UpdateInsurance(ctx, "Anna", catalog.VoluntaryStatutory)
	require.NoError(t, err)
	assert.Equal(t, catalog.VoluntaryStatutory, p.Insurance)

	_, err = svc.UpdateInsurance(ctx, "Anna", "AOK")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRenameDentistCascades(t *testing.T) {
	svc, _, renamer := newTestService(t)
	ctx := context.Background()

	d, err := svc.RenameDentist(ctx, "Dr. Roth", "Dr. Rot")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rot", d.Name)
	assert.Equal(t, [][2]string{{"Dr. Roth", "Dr. Rot"}}, renamer.calls)

	_, err = svc.Dentist(ctx, "Dr. Roth")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.RenameDentist(ctx, "Dr. Rot", "Dr. Weiß")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Len(t, renamer.calls, 1)
}

func TestRenameDentistKeepsRecordWhenCascadeFails(t *testing.T) {
	svc, _, renamer := newTestService(t)
	renamer.err = errors.New("ledger unavailable")

	_, err := svc.RenameDentist(context.Background(), "Dr. Roth", "Dr. Rot")
	require.Error(t, err)

	d, err := svc.Dentist(context.Background(), "Dr. Roth")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Roth", d.Name)
}

func TestUpdateAcceptedInsurance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.UpdateAcceptedInsurance(ctx, "Dr. Roth", []catalog.InsuranceClass{catalog.VoluntaryStatutory})
	require.NoError(t, err)
	assert.Equal(t, []catalog.InsuranceClass{catalog.VoluntaryStatutory}, d.Accepts)

	_, err = svc.UpdateAcceptedInsurance(ctx, "Dr. Roth", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateHours(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.UpdateHours(ctx, "Dr. Weiß", schedule.WeeklyAvailability{"Mi": {"10:00-14:00"}})
	require.NoError(t, err)
	assert.Equal(t, schedule.WeeklyAvailability{"Mi": {"10:00-14:00"}}, d.Hours)

	_, err = svc.UpdateHours(ctx, "Dr. Weiß", schedule.WeeklyAvailability{"Mi": {"14:00-10:00"}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRegisterDentist(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterDentist(ctx, DentistRegistration{
		Name:    "Dr. Gelb",
		Accepts: []catalog.InsuranceClass{catalog.Statutory},
		Hours:   schedule.WeeklyAvailability{"Fr": {"08:00-12:00"}},
	})
	require.NoError(t, err)

	got, err := svc.EligibleDentists(ctx, catalog.Statutory)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.RegisterDentist(ctx, DentistRegistration{Name: "Dr. Blau", Hours: schedule.WeeklyAvailability{"Fr": {"08:00-12:00"}}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestMissingFilesReadAsEmpty(t *testing.T) {
	repo := NewJSONRepository(t.TempDir())

	patients, err := repo.Patients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestCorruptFileIsStorageError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DentistsFile), []byte("{not json"), 0o644))

	_, err := NewJSONRepository(dir).Dentists(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrStorage))
}

func TestConsumeUnits(t *testing.T) {
	p := Patient{Problems: []Problem{{Kind: "Krone", Units: 3}, {Kind: "Teilkrone", Units: 1}}}

	assert.True(t, p.ConsumeUnits("Krone", 2))
	assert.Equal(t, 1, p.Problems[0].Units)

	assert.True(t, p.ConsumeUnits("Krone", 1))
	assert.Equal(t, []Problem{{Kind: "Teilkrone", Units: 1}}, p.Problems)

	assert.False(t, p.ConsumeUnits("Wurzelbehandlung", 1))
	assert.Len(t, p.Problems, 1)
}

func TestRenameGuardExcludesSharedHolders(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := &RenameGuard{}
	svc.UseRenameGuard(guard)

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = guard.Shared(func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	done := make(chan error, 1)
	go func() {
		_, err := svc.RenameDentist(context.Background(), "Dr. Roth", "Dr. Rot")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("rename ran while a commit held the guard: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestNilRenameGuardRunsUnguarded(t *testing.T) {
	var guard *RenameGuard
	calls := 0
	require.NoError(t, guard.Shared(func() error { calls++; return nil }))
	require.NoError(t, guard.Exclusive(func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)
}
