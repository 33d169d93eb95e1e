package apperrors

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Domain errors for the VentaPlus backend
var (
	ErrServiceNotFound      = errors.New("servicio no encontrado")
	ErrMovementNotFound     = errors.New("movimiento no encontrado")
	ErrRecordNotFound       = errors.New("registro no encontrado")
	ErrProductNotFound      = errors.New("producto no encontrado")
	ErrClientNotFound       = errors.New("cliente no encontrado")
	ErrSaleNotFound         = errors.New("venta no encontrada")
	ErrRegisterNotFound     = errors.New("arqueo no encontrado")
	ErrDuplicateDailyRecord = errors.New("ya existe un registro para esta fecha y servicio")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// StorageCode classifies a persistence failure by its Postgres error code.
type StorageCode string

const (
	CodeNotFound         StorageCode = "not-found"
	CodeUniqueViolation  StorageCode = "unique-violation"
	CodeFKViolation      StorageCode = "foreign-key-violation"
	CodePermissionDenied StorageCode = "permission-denied"
	CodeUnknown          StorageCode = "unknown"
)

type StorageError struct {
	Code StorageCode
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during '%s' (%s): %v", e.Op, e.Code, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap maps a database error to a StorageError. sql.ErrNoRows and the
// pq codes the original backend cares about (23505, 23503, 42501) get
// stable classifications; everything else is unknown.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	code := CodeUnknown
	if errors.Is(err, sql.ErrNoRows) {
		code = CodeNotFound
	} else {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				code = CodeUniqueViolation
			case "23503":
				code = CodeFKViolation
			case "42501":
				code = CodePermissionDenied
			}
		}
	}
	return &StorageError{Code: code, Op: op, Err: err}
}

func IsNotFound(err error) bool {
	if errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrMovementNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrRegisterNotFound) {
		return true
	}
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Code == CodeNotFound
}

func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicateDailyRecord) {
		return true
	}
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Code == CodeUniqueViolation
}

func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsPermissionDenied(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Code == CodePermissionDenied
}

// UserMessage returns the message shown to the end user, mirroring the
// notification text of the original application.
func UserMessage(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case IsDuplicate(err):
		return "Este registro ya existe"
	case IsNotFound(err):
		return "No se encontraron registros"
	case IsPermissionDenied(err):
		return "No tienes permisos para realizar esta acción"
	default:
		var storageErr *StorageError
		if errors.As(err, &storageErr) && storageErr.Code == CodeFKViolation {
			return "Error de referencia: el registro relacionado no existe"
		}
		return err.Error()
	}
}
