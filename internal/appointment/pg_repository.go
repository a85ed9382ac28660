package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRepository stores the ledger in the appointments table. The primary key
// (dentist, appt_date, start_time) enforces one booking per slot.
type PgRepository struct {
	pool Querier
}

func NewPgRepository(pool Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func collectLedger(rows pgx.Rows) (Ledger, error) {
	defer rows.Close()

	ledger := Ledger{}
	for rows.Next() {
		var k SlotKey
		var b Booking
		if err := rows.Scan(&k.Dentist, &k.Date, &k.Start, &b.Patient, &b.Treatment, &b.DurationMinutes); err != nil {
			return nil, err
		}
		ledger.Put(k, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (r *PgRepository) Load(ctx context.Context) (Ledger, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dentist, appt_date, start_time, patient, treatment, duration_minutes
		FROM appointments
	`)
	if err != nil {
		return nil, apperr.Storage("load appointments", err)
	}
	ledger, err := collectLedger(rows)
	if err != nil {
		return nil, apperr.Storage("scan appointments", err)
	}
	return ledger, nil
}

func (r *PgRepository) Day(ctx context.Context, dentist, date string) (Day, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dentist, appt_date, start_time, patient, treatment, duration_minutes
		FROM appointments
		WHERE dentist = $1 AND appt_date = $2
	`, dentist, date)
	if err != nil {
		return nil, apperr.Storage("load day", err)
	}
	ledger, err := collectLedger(rows)
	if err != nil {
		return nil, apperr.Storage("scan day", err)
	}
	return ledger.Day(dentist, date), nil
}

func (r *PgRepository) Insert(ctx context.Context, k SlotKey, b Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (dentist, appt_date, start_time, patient, treatment, duration_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, k.Dentist, k.Date, k.Start, b.Patient, b.Treatment, b.DurationMinutes)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotOccupied
		}
		return apperr.Storage("insert appointment", err)
	}
	return nil
}

func (r *PgRepository) Remove(ctx context.Context, k SlotKey) (Booking, error) {
	var b Booking
	err := r.pool.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE dentist = $1 AND appt_date = $2 AND start_time = $3
		RETURNING patient, treatment, duration_minutes
	`, k.Dentist, k.Date, k.Start).Scan(&b.Patient, &b.Treatment, &b.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrBookingNotFound
		}
		return Booking{}, apperr.Storage("delete appointment", err)
	}
	return b, nil
}

func (r *PgRepository) RenameDentist(ctx context.Context, oldName, newName string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET dentist = $2 WHERE dentist = $1
	`, oldName, newName)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("%s already has bookings in the same slots as %s", newName, oldName)
		}
		return apperr.Storage("rename dentist", err)
	}
	return nil
}

// Publish records a booking event in event_logs.
func (r *PgRepository) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, payload, created_at)
		VALUES ($1, $2, now())
	`, eventType, data)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
