package appointment

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/jsonfile"
)

const LedgerFile = "termine.json"

// JSONRepository keeps the ledger in termine.json. A missing file is an
// empty ledger.
type JSONRepository struct {
	mu   sync.Mutex
	path string
}

func NewJSONRepository(dataDir string) *JSONRepository {
	return &JSONRepository{path: filepath.Join(dataDir, LedgerFile)}
}

func (r *JSONRepository) read() (Ledger, error) {
	ledger := Ledger{}
	if err := jsonfile.ReadOrEmpty(r.path, &ledger); err != nil {
		return nil, apperr.Storage("read "+LedgerFile, err)
	}
	return ledger, nil
}

func (r *JSONRepository) write(l Ledger) error {
	if err := jsonfile.Write(r.path, l); err != nil {
		return apperr.Storage("write "+LedgerFile, err)
	}
	return nil
}

func (r *JSONRepository) Load(ctx context.Context) (Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *JSONRepository) Day(ctx context.Context, dentist, date string) (Day, error) {
	ledger, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Day(dentist, date), nil
}

func (r *JSONRepository) Insert(ctx context.Context, k SlotKey, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.read()
	if err != nil {
		return err
	}
	if _, exists := ledger.Get(k); exists {
		return ErrSlotOccupied
	}
	ledger.Put(k, b)
	return r.write(ledger)
}

func (r *JSONRepository) Remove(ctx context.Context, k SlotKey) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.read()
	if err != nil {
		return Booking{}, err
	}
	b, ok := ledger.Get(k)
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	ledger.Delete(k)
	return b, r.write(ledger)
}

func (r *JSONRepository) RenameDentist(ctx context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.read()
	if err != nil {
		return err
	}
	dates, ok := ledger[oldName]
	if !ok {
		return nil
	}
	for date, day := range dates {
		for start, b := range day {
			k := SlotKey{Dentist: newName, Date: date, Start: start}
			if _, exists := ledger.Get(k); exists {
				return apperr.Validation("%s already has a booking at %s %s", newName, date, start)
			}
			ledger.Put(k, b)
		}
	}
	delete(ledger, oldName)
	return r.write(ledger)
}
