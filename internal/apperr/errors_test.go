package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestFromDB(t *testing.T) {
	testCases := []struct {
		name string
		in   error
		want error
	}{
		{name: "record not found", in: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "translated duplicate", in: gorm.ErrDuplicatedKey, want: ErrConflict},
		{name: "sqlite text", in: errors.New("UNIQUE constraint failed: users.username"), want: ErrConflict},
		{name: "postgres text", in: errors.New(`ERROR: duplicate key value violates unique constraint "idx"`), want: ErrConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, FromDB(tc.in), tc.want)
		})
	}

	assert.NoError(t, FromDB(nil))
	other := errors.New("connection reset")
	assert.Equal(t, other, FromDB(other))
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("create lead: %w", Invalid("email", "must not be %s", "empty"))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "email: must not be empty", ve.Error())
}
