package services

import (
	"database/sql"
	"errors"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
)

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// sumIncreasesForDay sums the amounts of a service's same-day 'aumento'
// movements. Always recomputed from the ledger; the cached
// monto_aumentado column is never trusted as an input.
func sumIncreasesForDay(q rowQueryer, serviceID, date string) (float64, error) {
	var sum float64
	err := q.QueryRow(`
		SELECT COALESCE(SUM(monto), 0)
		FROM movimientos_servicios
		WHERE id_servicio = $1 AND fecha = $2 AND tipo = $3`,
		serviceID, date, "aumento").Scan(&sum)
	if err != nil {
		return 0, apperrors.Wrap("sum increases", err)
	}
	return sum, nil
}

// resolveOpeningBalance finds the balance a new movement starts from:
// the closing balance of the same-day record, else the closing balance
// of the most recent prior record, else zero.
func resolveOpeningBalance(q rowQueryer, serviceID, date string) (float64, error) {
	var balance float64
	err := q.QueryRow(`
		SELECT saldo_final FROM registros_servicios
		WHERE id_servicio = $1 AND fecha = $2`,
		serviceID, date).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.Wrap("resolve opening balance", err)
	}

	err = q.QueryRow(`
		SELECT saldo_final FROM registros_servicios
		WHERE id_servicio = $1
		ORDER BY fecha DESC
		LIMIT 1`,
		serviceID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap("resolve opening balance", err)
	}
	return balance, nil
}

// serviceExists reports whether the service row is present.
func serviceExists(q rowQueryer, serviceID string) (bool, error) {
	var id string
	err := q.QueryRow(`SELECT id FROM servicios WHERE id = $1`, serviceID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap("check service", err)
	}
	return true, nil
}
