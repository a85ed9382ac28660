package appointment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
)

var testKey = SlotKey{Dentist: "Dr. Weiß", Date: "2025-06-16", Start: "09:00"}

func TestJSONRepositoryMissingFileIsEmpty(t *testing.T) {
	repo := NewJSONRepository(t.TempDir())

	ledger, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ledger)

	day, err := repo.Day(context.Background(), "Dr. Weiß", "2025-06-16")
	require.NoError(t, err)
	assert.Empty(t, day)
}

func TestJSONRepositoryInsertRemove(t *testing.T) {
	dir := t.TempDir()
	repo := NewJSONRepository(dir)
	ctx := context.Background()
	b := Booking{Patient: "Anna", Treatment: "Krone", DurationMinutes: 90}

	require.NoError(t, repo.Insert(ctx, testKey, b))
	assert.ErrorIs(t, repo.Insert(ctx, testKey, b), ErrSlotOccupied)

	raw, err := os.ReadFile(filepath.Join(dir, LedgerFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Dr. Weiß": {`)
	assert.Contains(t, string(raw), `"behandlung": "Krone"`)

	// A second repository sees the write because every call re-reads the file.
	other := NewJSONRepository(dir)
	day, err := other.Day(ctx, testKey.Dentist, testKey.Date)
	require.NoError(t, err)
	assert.Equal(t, b, day["09:00"])

	removed, err := repo.Remove(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, b, removed)

	_, err = repo.Remove(ctx, testKey)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	ledger, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestJSONRepositoryRenameDentist(t *testing.T) {
	repo := NewJSONRepository(t.TempDir())
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, testKey, Booking{Patient: "Anna", Treatment: "Krone", DurationMinutes: 90}))

	require.NoError(t, repo.RenameDentist(ctx, "Dr. Weiß", "Dr. Schwarz"))

	ledger, err := repo.Load(ctx)
	require.NoError(t, err)
	_, old := ledger["Dr. Weiß"]
	assert.False(t, old)
	_, ok := ledger.Get(SlotKey{Dentist: "Dr. Schwarz", Date: testKey.Date, Start: testKey.Start})
	assert.True(t, ok)

	assert.NoError(t, repo.RenameDentist(ctx, "Nobody", "Somebody"))
}

func TestJSONRepositoryRenameConflict(t *testing.T) {
	repo := NewJSONRepository(t.TempDir())
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, testKey, Booking{Patient: "Anna", Treatment: "Krone", DurationMinutes: 90}))
	clash := SlotKey{Dentist: "Dr. Schwarz", Date: testKey.Date, Start: testKey.Start}
	require.NoError(t, repo.Insert(ctx, clash, Booking{Patient: "Ben", Treatment: "Krone", DurationMinutes: 90}))

	err := repo.RenameDentist(ctx, "Dr. Weiß", "Dr. Schwarz")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	ledger, err := repo.Load(ctx)
	require.NoError(t, err)
	b, _ := ledger.Get(clash)
	assert.Equal(t, "Ben", b.Patient)
	_, kept := ledger.Get(testKey)
	assert.True(t, kept)
}

func TestJSONRepositoryCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LedgerFile), []byte("[1,2"), 0o644))

	_, err := NewJSONRepository(dir).Load(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrStorage))
}

func TestLedgerEntriesSorted(t *testing.T) {
	l := Ledger{}
	l.Put(SlotKey{Dentist: "B", Date: "2025-06-17", Start: "08:00"}, Booking{Patient: "Anna"})
	l.Put(SlotKey{Dentist: "A", Date: "2025-06-16", Start: "10:00"}, Booking{Patient: "Anna"})
	l.Put(SlotKey{Dentist: "B", Date: "2025-06-16", Start: "09:00"}, Booking{Patient: "Ben"})

	entries := l.Entries(nil)
	require.Len(t, entries, 3)
	assert.Equal(t, "09:00", entries[0].Start)
	assert.Equal(t, "10:00", entries[1].Start)
	assert.Equal(t, "2025-06-17", entries[2].Date)

	anna := l.Entries(func(_ SlotKey, b Booking) bool { return b.Patient == "Anna" })
	assert.Len(t, anna, 2)
}

func TestPgRepositoryInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	b := Booking{Patient: "Anna", Treatment: "Krone", DurationMinutes: 90}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("Dr. Weiß", "2025-06-16", "09:00", "Anna", "Krone", 90).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Insert(context.Background(), testKey, b))

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("Dr. Weiß", "2025-06-16", "09:00", "Anna", "Krone", 90).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"})
	assert.ErrorIs(t, repo.Insert(context.Background(), testKey, b), ErrSlotOccupied)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("Dr. Weiß", "2025-06-16", "09:00", "Anna", "Krone", 90).
		WillReturnError(errors.New("connection reset"))
	err = repo.Insert(context.Background(), testKey, b)
	assert.True(t, errors.Is(err, apperr.ErrStorage))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"dentist", "appt_date", "start_time", "patient", "treatment", "duration_minutes"}
	mock.ExpectQuery("SELECT dentist, appt_date, start_time").
		WithArgs("Dr. Weiß", "2025-06-16").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("Dr. Weiß", "2025-06-16", "09:00", "Anna", "Krone", 90).
			AddRow("Dr. Weiß", "2025-06-16", "11:00", "Ben", "Karies klein", 30))

	day, err := NewPgRepository(mock).Day(context.Background(), "Dr. Weiß", "2025-06-16")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, 30, day["11:00"].DurationMinutes)
	assert.Len(t, day.Occupied(), 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryRemove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs("Dr. Weiß", "2025-06-16", "09:00").
		WillReturnRows(pgxmock.NewRows([]string{"patient", "treatment", "duration_minutes"}).AddRow("Anna", "Krone", 90))
	b, err := repo.Remove(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "Anna", b.Patient)

	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs("Dr. Weiß", "2025-06-16", "09:00").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Remove(context.Background(), testKey)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryRenameAndPublish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	mock.ExpectExec("UPDATE appointments SET dentist").
		WithArgs("Dr. Weiß", "Dr. Schwarz").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	require.NoError(t, repo.RenameDentist(context.Background(), "Dr. Weiß", "Dr. Schwarz"))

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventBookingCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Publish(context.Background(), EventBookingCreated, map[string]any{"dentist": "Dr. Schwarz"}))

	require.NoError(t, mock.ExpectationsWereMet())
}
