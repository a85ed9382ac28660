package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react differently to
// user mistakes, booking collisions and broken storage.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindSlotTaken          Kind = "SLOT_TAKEN"
	KindNoAvailableDentist Kind = "NO_AVAILABLE_DENTIST"
	KindNotFound           Kind = "NOT_FOUND"
	KindStorage            Kind = "STORAGE"
)

// Error is the application error carried through the service layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrSlotTaken          = &Error{Kind: KindSlotTaken}
	ErrNoAvailableDentist = &Error{Kind: KindNoAvailableDentist}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrStorage            = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func SlotTaken(format string, args ...any) error {
	return &Error{Kind: KindSlotTaken, Message: fmt.Sprintf(format, args...)}
}

func NoAvailableDentist(format string, args ...any) error {
	return &Error{Kind: KindNoAvailableDentist, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a read or write failure of a persisted store.
func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
