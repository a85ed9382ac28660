package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/observability"
	"github.com/hackgods/dental-practice-booking/internal/practice"
	"github.com/hackgods/dental-practice-booking/internal/pricing"
	redisclient "github.com/hackgods/dental-practice-booking/internal/redis"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

var tracer = otel.Tracer("dental.internal.appointment")

// EventPublisher receives booking events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) error
}

// Catalog bundles the read-only pricing tables built at startup.
type Catalog struct {
	Treatments    *catalog.Treatments
	Reimbursement *catalog.Reimbursement
	Materials     *catalog.Materials
}

type Options struct {
	StepMinutes   int
	CollisionMode schedule.CollisionMode
	// Today returns the current date. Defaults to the wall clock.
	Today   func() time.Time
	Events  []EventPublisher
	Metrics *observability.BookingMetrics
	// Renames, when shared with practice.Service, keeps dentist renames
	// out of in-flight commits.
	Renames *practice.RenameGuard
	Logger  zerolog.Logger
}

type Service struct {
	repo    Repository
	records practice.Repository
	locker  redisclient.Locker
	catalog Catalog

	step    int
	mode    schedule.CollisionMode
	today   func() time.Time
	events  []EventPublisher
	metrics *observability.BookingMetrics
	renames *practice.RenameGuard
	logger  zerolog.Logger
}

func NewService(repo Repository, records practice.Repository, locker redisclient.Locker, cat Catalog, opts Options) *Service {
	if opts.StepMinutes <= 0 {
		opts.StepMinutes = schedule.DefaultStepMinutes
	}
	if opts.CollisionMode == "" {
		opts.CollisionMode = schedule.ModeInterval
	}
	if opts.Today == nil {
		opts.Today = func() time.Time { return schedule.Truncate(time.Now()) }
	}
	return &Service{
		repo:    repo,
		records: records,
		locker:  locker,
		catalog: cat,
		step:    opts.StepMinutes,
		mode:    opts.CollisionMode,
		today:   opts.Today,
		events:  opts.Events,
		metrics: opts.Metrics,
		renames: opts.Renames,
		logger:  opts.Logger.With().Str("component", "appointment").Logger(),
	}
}

// ListAvailableSlots returns the free HH:MM start times for the treatment
// with the dentist on date, in window order.
func (s *Service) ListAvailableSlots(ctx context.Context, dentistName, date, treatment string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "appointment.ListAvailableSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("dental.dentist", dentistName),
		attribute.String("dental.date", date),
		attribute.String("dental.treatment", treatment),
	)

	day, err := s.bookableDate(date)
	if err != nil {
		return nil, err
	}
	t, kind, ok := s.catalog.Treatments.Lookup(treatment)
	if !ok {
		return nil, apperr.Validation("unknown treatment %q", treatment)
	}
	dentist, err := s.findDentist(ctx, dentistName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	windows, err := dentist.Hours.WindowsFor(day.Weekday())
	if err != nil {
		return nil, apperr.Validation("opening hours of %s: %v", dentistName, err)
	}
	candidates := schedule.CandidateStarts(windows, t.DurationMinutes, s.step)

	booked, err := s.repo.Day(ctx, dentistName, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	free := schedule.AvailableSlots(candidates, t.DurationMinutes, booked.Occupied(), s.step, s.mode)
	s.metrics.ObserveSlots(string(kind), len(free))
	span.SetAttributes(attribute.Int("dental.slots", len(free)))
	return schedule.Strings(free), nil
}

// BookSlot commits one booking and consumes the patient's treatment units.
// Patients, dentists and the ledger are re-read under the day lock so a
// slot taken since it was listed is detected.
func (s *Service) BookSlot(ctx context.Context, req BookRequest) (*Confirmation, error) {
	ctx, span := tracer.Start(ctx, "appointment.BookSlot")
	defer span.End()
	span.SetAttributes(
		attribute.String("dental.dentist", req.Dentist),
		attribute.String("dental.date", req.Date),
		attribute.String("dental.time", req.Time),
	)

	logger := observability.LoggerFromContext(ctx, s.logger)
	started := time.Now()
	conf, err := s.bookSlot(ctx, req)
	s.metrics.ObserveBooking(outcome(err), time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		logger.Info().Err(err).
			Str("dentist", req.Dentist).Str("date", req.Date).Str("time", req.Time).
			Msg("booking.rejected")
		return nil, err
	}

	logger.Info().
		Str("dentist", conf.Dentist).Str("date", conf.Date).Str("time", conf.Time).
		Str("patient", req.Patient).Str("treatment", conf.Treatment).
		Msg("booking.committed")

	s.publish(ctx, EventBookingCreated, map[string]any{
		"dentist":   conf.Dentist,
		"date":      conf.Date,
		"time":      conf.Time,
		"patient":   req.Patient,
		"treatment": conf.Treatment,
		"units":     conf.Units,
	})
	return conf, nil
}

func (s *Service) bookSlot(ctx context.Context, req BookRequest) (*Confirmation, error) {
	if req.Units <= 0 {
		return nil, apperr.Validation("units must be positive, got %d", req.Units)
	}
	if req.Dentist == "" || req.Patient == "" || req.Treatment == "" {
		return nil, apperr.Validation("dentist, patient and treatment are required")
	}
	if _, err := s.bookableDate(req.Date); err != nil {
		return nil, err
	}
	start, err := schedule.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	treatment, kind, ok := s.catalog.Treatments.Lookup(req.Treatment)
	if !ok {
		return nil, apperr.Validation("unknown treatment %q", req.Treatment)
	}
	material := req.Material
	if material == "" {
		material = catalog.MaterialStandard
	}
	if _, ok := s.catalog.Materials.Lookup(material); !ok {
		return nil, apperr.Validation("unknown material %q", material)
	}

	key := SlotKey{Dentist: req.Dentist, Date: req.Date, Start: start.String()}
	booking := Booking{Patient: req.Patient, Treatment: string(kind), DurationMinutes: treatment.DurationMinutes}

	err = s.locker.WithSlotLock(ctx, req.Dentist+"/"+req.Date, func(lockCtx context.Context) error {
		return s.renames.Shared(func() error {
			return s.commit(lockCtx, key, start, booking, req.Treatment, req.Units)
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, apperr.SlotTaken("slot %s is currently being booked, please retry", key)
		}
		return nil, err
	}

	return &Confirmation{
		Dentist:   key.Dentist,
		Date:      key.Date,
		Time:      key.Start,
		Treatment: booking.Treatment,
		Units:     req.Units,
		Material:  material,
		Duration:  booking.DurationMinutes,
	}, nil
}

func (s *Service) commit(ctx context.Context, key SlotKey, start schedule.TimeOfDay, booking Booking, requested string, units int) error {
	patients, err := s.records.Patients(ctx)
	if err != nil {
		return err
	}
	patient, ok := lookupPatient(patients, booking.Patient)
	if !ok {
		return apperr.NotFound("patient %q not found", booking.Patient)
	}
	dentist, err := s.findDentist(ctx, key.Dentist)
	if err != nil {
		return err
	}

	day, err := s.repo.Day(ctx, key.Dentist, key.Date)
	if err != nil {
		return err
	}
	if schedule.Collides(start, booking.DurationMinutes, day.Occupied(), s.step, s.mode) {
		s.logger.Warn().Str("slot", key.String()).Msg("slot.taken")
		return apperr.SlotTaken("slot %s is already booked", key)
	}

	date, _ := schedule.ParseDate(key.Date)
	windows, err := dentist.Hours.WindowsFor(date.Weekday())
	if err != nil {
		return apperr.Validation("opening hours of %s: %v", key.Dentist, err)
	}
	if !containsStart(schedule.CandidateStarts(windows, booking.DurationMinutes, s.step), start) {
		return apperr.Validation("%s is not a bookable start for %s on %s", key.Start, key.Dentist, key.Date)
	}
	if !dentist.AcceptsInsurance(patient.Insurance) {
		return apperr.Validation("%s does not accept %q insurance", key.Dentist, patient.Insurance)
	}

	if err := s.repo.Insert(ctx, key, booking); err != nil {
		if errors.Is(err, ErrSlotOccupied) {
			return apperr.SlotTaken("slot %s is already booked", key)
		}
		return err
	}

	err = s.records.UpdatePatients(ctx, func(patients []practice.Patient) ([]practice.Patient, error) {
		for i := range patients {
			if patients[i].Name != booking.Patient {
				continue
			}
			if !patients[i].ConsumeUnits(requested, units) {
				s.logger.Warn().Str("patient", booking.Patient).Str("treatment", booking.Treatment).
					Msg("booking.no_matching_problem")
			}
			return patients, nil
		}
		s.logger.Warn().Str("patient", booking.Patient).Msg("booking.patient_vanished")
		return patients, nil
	})
	if err != nil {
		// units could not be consumed, take the slot back
		if _, rbErr := s.repo.Remove(ctx, key); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("slot", key.String()).Msg("booking.rollback_failed")
		}
		return err
	}
	return nil
}

// CancelBooking removes the patient's booking at key. Consumed units are
// not given back.
func (s *Service) CancelBooking(ctx context.Context, key SlotKey, patientName string) error {
	ctx, span := tracer.Start(ctx, "appointment.CancelBooking")
	defer span.End()
	span.SetAttributes(attribute.String("dental.slot", key.String()))

	err := s.locker.WithSlotLock(ctx, key.Dentist+"/"+key.Date, func(lockCtx context.Context) error {
		day, err := s.repo.Day(lockCtx, key.Dentist, key.Date)
		if err != nil {
			return err
		}
		b, ok := day[key.Start]
		if !ok || b.Patient != patientName {
			return apperr.NotFound("no booking of %q at %s", patientName, key)
		}
		if _, err := s.repo.Remove(lockCtx, key); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return apperr.NotFound("no booking at %s", key)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = apperr.SlotTaken("slot %s is currently being changed, please retry", key)
	}
	s.metrics.ObserveCancel(outcome(err))
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger := observability.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("slot", key.String()).Str("patient", patientName).Msg("booking.cancelled")
	s.publish(ctx, EventBookingCancelled, map[string]any{
		"dentist": key.Dentist,
		"date":    key.Date,
		"time":    key.Start,
		"patient": patientName,
	})
	return nil
}

// PatientAppointments lists the patient's bookings across all dentists,
// sorted by date and time.
func (s *Service) PatientAppointments(ctx context.Context, patientName string) ([]Entry, error) {
	if _, err := s.findPatient(ctx, patientName); err != nil {
		return nil, err
	}
	ledger, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Entries(func(_ SlotKey, b Booking) bool { return b.Patient == patientName }), nil
}

// DentistSchedule lists the dentist's bookings on or after from. An empty
// from means today.
func (s *Service) DentistSchedule(ctx context.Context, dentistName, from string) ([]Entry, error) {
	if _, err := s.findDentist(ctx, dentistName); err != nil {
		return nil, err
	}
	if from == "" {
		from = s.today().Format(schedule.DateLayout)
	} else if _, err := schedule.ParseDate(from); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	ledger, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Entries(func(k SlotKey, _ Booking) bool {
		return k.Dentist == dentistName && k.Date >= from
	}), nil
}

// DentistCalendar marks each date in [from, to] past, closed or open.
// Empty bounds default to today and the booking horizon.
func (s *Service) DentistCalendar(ctx context.Context, dentistName, from, to string) ([]schedule.CalendarDay, error) {
	dentist, err := s.findDentist(ctx, dentistName)
	if err != nil {
		return nil, err
	}
	today := s.today()

	fromDate, toDate := today, schedule.Horizon(today)
	if from != "" {
		if fromDate, err = schedule.ParseDate(from); err != nil {
			return nil, apperr.Validation("%v", err)
		}
	}
	if to != "" {
		if toDate, err = schedule.ParseDate(to); err != nil {
			return nil, apperr.Validation("%v", err)
		}
	}
	if toDate.Before(fromDate) {
		return nil, apperr.Validation("to %s is before from %s", to, from)
	}
	return schedule.Calendar(dentist.Hours, fromDate, toDate, today), nil
}

// OverviewCosts prices all of the patient's outstanding problems with the
// flat reimbursement table.
func (s *Service) OverviewCosts(ctx context.Context, patientName string) (pricing.Breakdown, error) {
	patient, err := s.findPatient(ctx, patientName)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	items := make([]pricing.LineItem, 0, len(patient.Problems))
	for _, p := range patient.Problems {
		items = append(items, pricing.LineItem{Kind: p.Kind, Units: p.Units})
	}
	return pricing.OverviewCosts(s.catalog.Treatments, s.catalog.Reimbursement, items, patient.Insurance), nil
}

// PreBookingCosts prices one treatment with the material table.
func (s *Service) PreBookingCosts(ctx context.Context, treatment string, units int, material catalog.MaterialGrade, insurance catalog.InsuranceClass) (pricing.Breakdown, error) {
	return pricing.PreBookingCosts(s.catalog.Treatments, s.catalog.Materials, treatment, units, material, insurance)
}

func (s *Service) bookableDate(date string) (time.Time, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return time.Time{}, apperr.Validation("%v", err)
	}
	if day.Before(schedule.Truncate(s.today())) {
		return time.Time{}, apperr.Validation("date %s is in the past", date)
	}
	return day, nil
}

func (s *Service) findPatient(ctx context.Context, name string) (*practice.Patient, error) {
	patients, err := s.records.Patients(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := lookupPatient(patients, name)
	if !ok {
		return nil, apperr.NotFound("patient %q not found", name)
	}
	return p, nil
}

func (s *Service) findDentist(ctx context.Context, name string) (*practice.Dentist, error) {
	dentists, err := s.records.Dentists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range dentists {
		if dentists[i].Name == name {
			return &dentists[i], nil
		}
	}
	return nil, apperr.NotFound("dentist %q not found", name)
}

func (s *Service) publish(ctx context.Context, eventType string, payload map[string]any) {
	for _, p := range s.events {
		if err := p.Publish(ctx, eventType, payload); err != nil {
			s.logger.Error().Err(err).Str("event", eventType).Msg("event.publish_failed")
		}
	}
}

func lookupPatient(patients []practice.Patient, name string) (*practice.Patient, bool) {
	for i := range patients {
		if patients[i].Name == name {
			return &patients[i], true
		}
	}
	return nil, false
}

func containsStart(starts []schedule.TimeOfDay, t schedule.TimeOfDay) bool {
	for _, s := range starts {
		if s == t {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apperr.KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	return "error"
}
