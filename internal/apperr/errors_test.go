package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := SlotTaken("slot %s already booked", "09:00")

	assert.True(t, errors.Is(err, ErrSlotTaken))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "SLOT_TAKEN: slot 09:00 already booked", err.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("book slot: %w", Validation("units must be positive"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestStorageUnwrapsCause(t *testing.T) {
	err := Storage("read termine.json", fs.ErrPermission)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.Contains(t, err.Error(), "read termine.json")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
