package practice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

// DentistRenamer moves booked appointments from one dentist name to another.
type DentistRenamer interface {
	RenameDentist(ctx context.Context, oldName, newName string) error
}

type Service struct {
	repo       Repository
	renamer    DentistRenamer
	treatments *catalog.Treatments
	guard      *RenameGuard
	logger     zerolog.Logger
}

func NewService(repo Repository, renamer DentistRenamer, treatments *catalog.Treatments, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		renamer:    renamer,
		treatments: treatments,
		logger:     logger.With().Str("component", "practice").Logger(),
	}
}

// UseRenameGuard makes RenameDentist wait for booking commits that share g.
func (s *Service) UseRenameGuard(g *RenameGuard) {
	s.guard = g
}

type PatientRegistration struct {
	Name      string
	Password  string
	Insurance catalog.InsuranceClass
	Problem   string
	Units     int
}

type DentistRegistration struct {
	Name     string
	Password string
	Accepts  []catalog.InsuranceClass
	Hours    schedule.WeeklyAvailability
}

func (s *Service) Patient(ctx context.Context, name string) (*Patient, error) {
	patients, err := s.repo.Patients(ctx)
	if err != nil {
		return nil, err
	}
	i := findPatient(patients, name)
	if i < 0 {
		return nil, apperr.NotFound("patient %q not found", name)
	}
	return &patients[i], nil
}

func (s *Service) Dentist(ctx context.Context, name string) (*Dentist, error) {
	dentists, err := s.repo.Dentists(ctx)
	if err != nil {
		return nil, err
	}
	i := findDentist(dentists, name)
	if i < 0 {
		return nil, apperr.NotFound("dentist %q not found", name)
	}
	return &dentists[i], nil
}

// EligibleDentists returns the dentists treating the given insurance class,
// in file order.
func (s *Service) EligibleDentists(ctx context.Context, insurance catalog.InsuranceClass) ([]Dentist, error) {
	dentists, err := s.repo.Dentists(ctx)
	if err != nil {
		return nil, err
	}
	var out []Dentist
	for _, d := range dentists {
		if d.AcceptsInsurance(insurance) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, apperr.NoAvailableDentist("no dentist accepts %q", insurance)
	}
	return out, nil
}

func (s *Service) RegisterPatient(ctx context.Context, reg PatientRegistration) (*Patient, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !reg.Insurance.Valid() {
		return nil, apperr.Validation("unknown insurance %q", reg.Insurance)
	}
	_, kind, ok := s.treatments.Lookup(reg.Problem)
	if !ok {
		return nil, apperr.Validation("unknown treatment %q", reg.Problem)
	}
	units := reg.Units
	if units == 0 {
		units = 1
	}
	if units < 0 {
		return nil, apperr.Validation("units must be positive, got %d", units)
	}

	patient := Patient{
		Name:            name,
		Password:        reg.Password,
		PasswordChanged: true,
		Insurance:       reg.Insurance,
		Problems:        []Problem{{Kind: string(kind), Units: units}},
	}
	err := s.repo.UpdatePatients(ctx, func(patients []Patient) ([]Patient, error) {
		if findPatient(patients, name) >= 0 {
			return nil, apperr.Validation("patient %q already exists", name)
		}
		return append(patients, patient), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("patient", name).Msg("patient.registered")
	return &patient, nil
}

func (s *Service) RegisterDentist(ctx context.Context, reg DentistRegistration) (*Dentist, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validateClasses(reg.Accepts); err != nil {
		return nil, err
	}
	if err := reg.Hours.Validate(); err != nil {
		return nil, apperr.Validation("opening hours: %v", err)
	}

	dentist := Dentist{
		Name:            name,
		Password:        reg.Password,
		PasswordChanged: true,
		Accepts:         reg.Accepts,
		Hours:           reg.Hours,
	}
	err := s.repo.UpdateDentists(ctx, func(dentists []Dentist) ([]Dentist, error) {
		if findDentist(dentists, name) >= 0 {
			return nil, apperr.Validation("dentist %q already exists", name)
		}
		return append(dentists, dentist), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("dentist", name).Msg("dentist.registered")
	return &dentist, nil
}

// AddProblem records more units of a treatment for the patient.
func (s *Service) AddProblem(ctx context.Context, patientName, kind string, units int) (*Patient, error) {
	if units <= 0 {
		return nil, apperr.Validation("units must be positive, got %d", units)
	}
	_, canonical, ok := s.treatments.Lookup(kind)
	if !ok {
		return nil, apperr.Validation("unknown treatment %q", kind)
	}
	return s.updatePatient(ctx, patientName, func(p *Patient) error {
		p.AddUnits(string(canonical), units)
		return nil
	})
}

func (s *Service) UpdateInsurance(ctx context.Context, patientName string, class catalog.InsuranceClass) (*Patient, error) {
	if !class.Valid() {
		return nil, apperr.Validation("unknown insurance %q", class)
	}
	return s.updatePatient(ctx, patientName, func(p *Patient) error {
		p.Insurance = class
		return nil
	})
}

// RenameDentist changes the dentist's name and moves their booked
// appointments to the new name. If saving the dentist fails after the
// appointments moved, they are moved back.
func (s *Service) RenameDentist(ctx context.Context, oldName, newName string) (*Dentist, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.Validation("new name is required")
	}
	if newName == oldName {
		return s.Dentist(ctx, oldName)
	}

	var renamed Dentist
	err := s.guard.Exclusive(func() error {
		return s.rename(ctx, oldName, newName, &renamed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("from", oldName).Str("to", newName).Msg("dentist.renamed")
	return &renamed, nil
}

func (s *Service) rename(ctx context.Context, oldName, newName string, renamed *Dentist) error {
	cascaded := false
	err := s.repo.UpdateDentists(ctx, func(dentists []Dentist) ([]Dentist, error) {
		i := findDentist(dentists, oldName)
		if i < 0 {
			return nil, apperr.NotFound("dentist %q not found", oldName)
		}
		if findDentist(dentists, newName) >= 0 {
			return nil, apperr.Validation("dentist %q already exists", newName)
		}
		if s.renamer != nil {
			if err := s.renamer.RenameDentist(ctx, oldName, newName); err != nil {
				return nil, fmt.Errorf("move appointments: %w", err)
			}
			cascaded = true
		}
		dentists[i].Name = newName
		*renamed = dentists[i]
		return dentists, nil
	})
	if err != nil && cascaded {
		if rbErr := s.renamer.RenameDentist(ctx, newName, oldName); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("from", newName).Str("to", oldName).Msg("dentist.rename_rollback_failed")
		}
	}
	return err
}

func (s *Service) UpdateAcceptedInsurance(ctx context.Context, dentistName string, classes []catalog.InsuranceClass) (*Dentist, error) {
	if err := validateClasses(classes); err != nil {
		return nil, err
	}
	return s.updateDentist(ctx, dentistName, func(d *Dentist) {
		d.Accepts = classes
	})
}

func (s *Service) UpdateHours(ctx context.Context, dentistName string, hours schedule.WeeklyAvailability) (*Dentist, error) {
	if err := hours.Validate(); err != nil {
		return nil, apperr.Validation("opening hours: %v", err)
	}
	return s.updateDentist(ctx, dentistName, func(d *Dentist) {
		d.Hours = hours
	})
}

func (s *Service) updatePatient(ctx context.Context, name string, mutate func(*Patient) error) (*Patient, error) {
	var out Patient
	err := s.repo.UpdatePatients(ctx, func(patients []Patient) ([]Patient, error) {
		i := findPatient(patients, name)
		if i < 0 {
			return nil, apperr.NotFound("patient %q not found", name)
		}
		if err := mutate(&patients[i]); err != nil {
			return nil, err
		}
		out = patients[i]
		return patients, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) updateDentist(ctx context.Context, name string, mutate func(*Dentist)) (*Dentist, error) {
	var out Dentist
	err := s.repo.UpdateDentists(ctx, func(dentists []Dentist) ([]Dentist, error) {
		i := findDentist(dentists, name)
		if i < 0 {
			return nil, apperr.NotFound("dentist %q not found", name)
		}
		mutate(&dentists[i])
		out = dentists[i]
		return dentists, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func validateClasses(classes []catalog.InsuranceClass) error {
	if len(classes) == 0 {
		return apperr.Validation("at least one insurance class is required")
	}
	for _, c := range classes {
		if !c.Valid() {
			return apperr.Validation("unknown insurance %q", c)
		}
	}
	return nil
}
