package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, Wrap("op", nil))
	})

	t.Run("no rows maps to not-found", func(t *testing.T) {
		err := Wrap("get service", sql.ErrNoRows)
		assert.True(t, IsNotFound(err))
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		err := Wrap("create daily record", &pq.Error{Code: "23505"})
		assert.True(t, IsDuplicate(err))
	})

	t.Run("foreign key violation keeps its own message", func(t *testing.T) {
		err := Wrap("create movement", &pq.Error{Code: "23503"})
		assert.False(t, IsDuplicate(err))
		assert.Equal(t, "Error de referencia: el registro relacionado no existe", UserMessage(err))
	})

	t.Run("permission denied", func(t *testing.T) {
		err := Wrap("delete service", &pq.Error{Code: "42501"})
		assert.True(t, IsPermissionDenied(err))
	})

	t.Run("anything else is unknown", func(t *testing.T) {
		err := Wrap("list", fmt.Errorf("connection refused"))
		var storageErr *StorageError
		assert.True(t, errors.As(err, &storageErr))
		assert.Equal(t, CodeUnknown, storageErr.Code)
	})

	t.Run("wrapped errors still classify", func(t *testing.T) {
		inner := fmt.Errorf("query failed: %w", &pq.Error{Code: "23505"})
		assert.True(t, IsDuplicate(Wrap("insert", inner)))
	})
}

func TestSentinelClassification(t *testing.T) {
	for _, err := range []error{
		ErrServiceNotFound, ErrMovementNotFound, ErrRecordNotFound,
		ErrProductNotFound, ErrClientNotFound, ErrSaleNotFound, ErrRegisterNotFound,
	} {
		assert.True(t, IsNotFound(err), err.Error())
	}
	assert.True(t, IsDuplicate(ErrDuplicateDailyRecord))
	assert.False(t, IsNotFound(ErrDuplicateDailyRecord))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "No se encontraron registros", UserMessage(ErrServiceNotFound))
	assert.Equal(t, "Este registro ya existe", UserMessage(ErrDuplicateDailyRecord))
	assert.Equal(t, "No tienes permisos para realizar esta acción", UserMessage(Wrap("x", &pq.Error{Code: "42501"})))
	assert.Equal(t, "debe ser mayor a cero", UserMessage(NewValidationError("monto", "debe ser mayor a cero")))
	assert.Equal(t, "", UserMessage(nil))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("monto", "debe ser mayor a cero")
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "monto")
	assert.False(t, IsValidation(fmt.Errorf("other")))
}
