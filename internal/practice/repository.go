package practice

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/jsonfile"
)

const (
	PatientsFile = "patienten.json"
	DentistsFile = "zahnaerzte.json"
)

// Repository loads and rewrites the patient and dentist records. Update
// re-reads the file, applies fn and writes the result while holding the
// file's lock. Nothing is written when fn returns an error.
type Repository interface {
	Patients(ctx context.Context) ([]Patient, error)
	Dentists(ctx context.Context) ([]Dentist, error)
	UpdatePatients(ctx context.Context, fn func([]Patient) ([]Patient, error)) error
	UpdateDentists(ctx context.Context, fn func([]Dentist) ([]Dentist, error)) error
}

// JSONRepository keeps the records in patienten.json and zahnaerzte.json.
type JSONRepository struct {
	patients *fileStore[Patient]
	dentists *fileStore[Dentist]
}

func NewJSONRepository(dataDir string) *JSONRepository {
	return &JSONRepository{
		patients: &fileStore[Patient]{path: filepath.Join(dataDir, PatientsFile)},
		dentists: &fileStore[Dentist]{path: filepath.Join(dataDir, DentistsFile)},
	}
}

func (r *JSONRepository) Patients(ctx context.Context) ([]Patient, error) {
	return r.patients.load()
}

func (r *JSONRepository) Dentists(ctx context.Context) ([]Dentist, error) {
	return r.dentists.load()
}

func (r *JSONRepository) UpdatePatients(ctx context.Context, fn func([]Patient) ([]Patient, error)) error {
	return r.patients.update(fn)
}

func (r *JSONRepository) UpdateDentists(ctx context.Context, fn func([]Dentist) ([]Dentist, error)) error {
	return r.dentists.update(fn)
}

type fileStore[T any] struct {
	mu   sync.Mutex
	path string
}

func (s *fileStore[T]) load() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *fileStore[T]) read() ([]T, error) {
	items := []T{}
	if err := jsonfile.ReadOrEmpty(s.path, &items); err != nil {
		return nil, apperr.Storage("read "+filepath.Base(s.path), err)
	}
	return items, nil
}

func (s *fileStore[T]) update(fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	if err := jsonfile.Write(s.path, updated); err != nil {
		return apperr.Storage("write "+filepath.Base(s.path), err)
	}
	return nil
}
