package services

import (
	"database/sql"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// MovementService owns the movimientos_servicios ledger. Every mutation
// (create, edit, delete) triggers a resync of the sibling daily record's
// monto_aumentado; for edit and delete the resync is best-effort and a
// failure never rolls back the primary mutation.
type MovementService struct {
	db      *sql.DB
	records *DailyRecordService
}

func NewMovementService(db *sql.DB, records *DailyRecordService) *MovementService {
	return &MovementService{db: db, records: records}
}

type CreateMovementInput struct {
	ServiceID string  `json:"id_servicio" validate:"required"`
	Amount    float64 `json:"monto" validate:"required,gt=0"`
	Date      string  `json:"fecha" validate:"required,localdate"`
	Time      string  `json:"hora" validate:"required,localtime"`
	UserID    string  `json:"id_usuario" validate:"required"`
	Note      string  `json:"observacion"`
}

// MovementResult reports which steps of the create chain completed. The
// insert and the record resync are separate remote calls with no shared
// transaction, so a caller seeing RecordSynced=false with a non-nil
// error knows the ledger holds the movement but the snapshot is stale.
type MovementResult struct {
	Movement     *models.ServiceMovement `json:"movement"`
	RecordSynced bool                    `json:"recordSynced"`
}

// Create inserts an increase movement. The balance-before resolves from
// the same-day record's closing balance, else the latest prior record,
// else zero; balance-after = balance-before + amount.
func (s *MovementService) Create(in CreateMovementInput) (*MovementResult, error) {
	if in.Amount <= 0 {
		return nil, apperrors.NewValidationError("monto", "debe ser mayor a cero")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, apperrors.NewValidationError("fecha", "formato esperado YYYY-MM-DD")
	}

	exists, err := serviceExists(s.db, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrServiceNotFound
	}

	balanceBefore, err := resolveOpeningBalance(s.db, in.ServiceID, in.Date)
	if err != nil {
		return nil, err
	}

	movement := &models.ServiceMovement{
		ServiceID:     in.ServiceID,
		Type:          models.MovementTypeIncrease,
		Amount:        in.Amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore + in.Amount,
		Date:          in.Date,
		Time:          in.Time,
		UserID:        in.UserID,
		Note:          in.Note,
	}

	err = s.db.QueryRow(`
		INSERT INTO movimientos_servicios (id_servicio, tipo, monto, saldo_anterior, saldo_nuevo, fecha, hora, id_usuario, observacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		movement.ServiceID, movement.Type, movement.Amount, movement.BalanceBefore, movement.BalanceAfter,
		movement.Date, movement.Time, movement.UserID, nullIfEmpty(movement.Note)).
		Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create movement", err)
	}

	result := &MovementResult{Movement: movement}
	if err := s.records.syncAmountIncreased(in.ServiceID, in.Date); err != nil {
		// Movement is already persisted; report the partial outcome.
		return result, err
	}
	result.RecordSynced = true
	return result, nil
}

func (s *MovementService) GetByID(id string) (*models.ServiceMovement, error) {
	movement, err := scanMovement(s.db.QueryRow(`
		SELECT id, id_servicio, tipo, monto, saldo_anterior, saldo_nuevo, fecha, hora, id_usuario, observacion, created_at
		FROM movimientos_servicios
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrMovementNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get movement", err)
	}
	return movement, nil
}

type MovementFilters struct {
	ServiceID string
	DateFrom  string
	DateTo    string
}

func (s *MovementService) List(filters MovementFilters) ([]models.ServiceMovement, error) {
	query := `
		SELECT id, id_servicio, tipo, monto, saldo_anterior, saldo_nuevo, fecha, hora, id_usuario, observacion, created_at
		FROM movimientos_servicios
		WHERE 1=1`
	args := []any{}
	if filters.ServiceID != "" {
		args = append(args, filters.ServiceID)
		query += ` AND id_servicio = $` + strconv.Itoa(len(args))
	}
	if filters.DateFrom != "" {
		args = append(args, filters.DateFrom)
		query += ` AND fecha >= $` + strconv.Itoa(len(args))
	}
	if filters.DateTo != "" {
		args = append(args, filters.DateTo)
		query += ` AND fecha <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY fecha DESC, hora DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap("list movements", err)
	}
	defer rows.Close()

	movements := []models.ServiceMovement{}
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, apperrors.Wrap("list movements", err)
		}
		movements = append(movements, *movement)
	}
	return movements, rows.Err()
}

// Edit changes a movement's amount (and optionally its note). The stored
// balance-before is never recomputed from ledger order; only
// balance-after moves with the new amount. The sibling record resync is
// best-effort: its failure is logged and the edit still succeeds.
func (s *MovementService) Edit(id string, newAmount float64, newNote *string) (*models.ServiceMovement, error) {
	if newAmount <= 0 {
		return nil, apperrors.NewValidationError("monto", "debe ser mayor a cero")
	}

	movement, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	movement.Amount = newAmount
	movement.BalanceAfter = movement.BalanceBefore + newAmount
	if newNote != nil {
		movement.Note = *newNote
	}

	_, err = s.db.Exec(`
		UPDATE movimientos_servicios
		SET monto = $1, saldo_nuevo = $2, observacion = $3
		WHERE id = $4`,
		movement.Amount, movement.BalanceAfter, nullIfEmpty(movement.Note), id)
	if err != nil {
		return nil, apperrors.Wrap("update movement", err)
	}

	if err := s.records.syncAmountIncreased(movement.ServiceID, movement.Date); err != nil {
		log.Printf("[SERVICIOS] daily record resync after movement edit failed: %v", err)
	}
	return movement, nil
}

// Delete removes a movement and resyncs the sibling record, so the
// cached increase sum never keeps counting a deleted top-up. The resync
// is best-effort like Edit's.
func (s *MovementService) Delete(id string) error {
	movement, err := s.GetByID(id)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`DELETE FROM movimientos_servicios WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap("delete movement", err)
	}

	if err := s.records.syncAmountIncreased(movement.ServiceID, movement.Date); err != nil {
		log.Printf("[SERVICIOS] daily record resync after movement delete failed: %v", err)
	}
	return nil
}

// SumIncreasesForDay exposes the ledger-derived same-day increase total.
func (s *MovementService) SumIncreasesForDay(serviceID, date string) (float64, error) {
	return sumIncreasesForDay(s.db, serviceID, date)
}

func scanMovement(row rowScanner) (*models.ServiceMovement, error) {
	var movement models.ServiceMovement
	var user, note sql.NullString
	err := row.Scan(&movement.ID, &movement.ServiceID, &movement.Type, &movement.Amount,
		&movement.BalanceBefore, &movement.BalanceAfter, &movement.Date, &movement.Time,
		&user, &note, &movement.CreatedAt)
	if err != nil {
		return nil, err
	}
	movement.UserID = user.String
	movement.Note = note.String
	return &movement, nil
}
