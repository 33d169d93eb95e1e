package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// CashRegisterService owns arqueos_caja, the daily cash reconciliation.
// Credit sales never count toward the expected cash, so the difference
// at close is counted cash minus opening amount minus the day's
// completed non-credit sales.
type CashRegisterService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCashRegisterService(db *sql.DB) *CashRegisterService {
	return &CashRegisterService{db: db, validator: NewValidationHelper()}
}

// GetOpen returns today's open register, or nil when none was opened.
func (s *CashRegisterService) GetOpen() (*models.CashRegister, error) {
	register, err := scanRegister(s.db.QueryRow(`
		SELECT id, fecha, hora_apertura, hora_cierre, monto_inicial, total_ventas, efectivo_real, diferencia, id_administrador, observacion, estado, created_at, updated_at
		FROM arqueos_caja
		WHERE fecha = $1 AND estado = $2`,
		LocalDate(time.Now()), models.RegisterOpen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap("get open register", err)
	}
	return register, nil
}

func (s *CashRegisterService) GetByID(id string) (*models.CashRegister, error) {
	register, err := scanRegister(s.db.QueryRow(`
		SELECT id, fecha, hora_apertura, hora_cierre, monto_inicial, total_ventas, efectivo_real, diferencia, id_administrador, observacion, estado, created_at, updated_at
		FROM arqueos_caja
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRegisterNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get register", err)
	}
	return register, nil
}

func (s *CashRegisterService) List() ([]models.CashRegister, error) {
	rows, err := s.db.Query(`
		SELECT id, fecha, hora_apertura, hora_cierre, monto_inicial, total_ventas, efectivo_real, diferencia, id_administrador, observacion, estado, created_at, updated_at
		FROM arqueos_caja
		ORDER BY fecha DESC, hora_apertura DESC`)
	if err != nil {
		return nil, apperrors.Wrap("list registers", err)
	}
	defer rows.Close()

	registers := []models.CashRegister{}
	for rows.Next() {
		register, err := scanRegister(rows)
		if err != nil {
			return nil, apperrors.Wrap("list registers", err)
		}
		registers = append(registers, *register)
	}
	return registers, rows.Err()
}

// daySalesTotal sums the day's completed sales, optionally cash-only.
// Credit sales are always excluded.
func (s *CashRegisterService) daySalesTotal(date string, cashOnly bool) (float64, error) {
	query := `
		SELECT COALESCE(SUM(total), 0) FROM ventas
		WHERE fecha = $1 AND estado = $2 AND metodo_pago <> $3`
	args := []any{date, models.SaleCompleted, models.PaymentCredit}
	if cashOnly {
		query = `
		SELECT COALESCE(SUM(total), 0) FROM ventas
		WHERE fecha = $1 AND estado = $2 AND metodo_pago = $3`
		args = []any{date, models.SaleCompleted, models.PaymentCash}
	}

	var total float64
	if err := s.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, apperrors.Wrap("day sales total", err)
	}
	return total, nil
}

// TodayCashSales is the cash counted against the drawer.
func (s *CashRegisterService) TodayCashSales() (float64, error) {
	return s.daySalesTotal(LocalDate(time.Now()), true)
}

// Open starts the day's register, seeded with the sales already made.
func (s *CashRegisterService) Open(openingAmount float64, adminID string) (*models.CashRegister, error) {
	if openingAmount < 0 {
		return nil, apperrors.NewValidationError("monto_inicial", "no puede ser negativo")
	}

	existing, err := s.GetOpen()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewValidationError("estado", "ya existe un arqueo abierto para hoy")
	}

	now := time.Now()
	date := LocalDate(now)
	salesTotal, err := s.daySalesTotal(date, false)
	if err != nil {
		return nil, err
	}

	register := &models.CashRegister{
		Date:          date,
		OpeningTime:   LocalTime(now),
		OpeningAmount: openingAmount,
		SalesTotal:    salesTotal,
		AdminID:       adminID,
		Status:        models.RegisterOpen,
	}
	err = s.db.QueryRow(`
		INSERT INTO arqueos_caja (fecha, hora_apertura, monto_inicial, total_ventas, diferencia, id_administrador, estado)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id, created_at, updated_at`,
		date, register.OpeningTime, openingAmount, salesTotal, adminID, models.RegisterOpen).
		Scan(&register.ID, &register.CreatedAt, &register.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap("open register", err)
	}
	return register, nil
}

// Close settles the register against the counted cash.
func (s *CashRegisterService) Close(id string, countedCash float64, note string) (*models.CashRegister, error) {
	if countedCash < 0 {
		return nil, apperrors.NewValidationError("efectivo_real", "no puede ser negativo")
	}

	register, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if register.Status == models.RegisterClosed {
		return nil, apperrors.NewValidationError("estado", "el arqueo ya está cerrado")
	}

	now := time.Now()
	expected := register.OpeningAmount + register.SalesTotal
	difference := countedCash - expected

	register.ClosingTime = LocalTime(now)
	register.CountedCash = &countedCash
	register.Difference = difference
	register.Note = note
	register.Status = models.RegisterClosed
	register.UpdatedAt = now

	_, err = s.db.Exec(`
		UPDATE arqueos_caja
		SET hora_cierre = $1, efectivo_real = $2, diferencia = $3, observacion = $4, estado = $5, updated_at = $6
		WHERE id = $7`,
		register.ClosingTime, countedCash, difference, nullIfEmpty(note), models.RegisterClosed, now, id)
	if err != nil {
		return nil, apperrors.Wrap("close register", err)
	}
	return register, nil
}

// RefreshSalesTotal re-derives total_ventas of an open register after
// new sales land.
func (s *CashRegisterService) RefreshSalesTotal(id string) (*models.CashRegister, error) {
	register, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	salesTotal, err := s.daySalesTotal(register.Date, false)
	if err != nil {
		return nil, err
	}

	register.SalesTotal = salesTotal
	register.UpdatedAt = time.Now()
	_, err = s.db.Exec(`
		UPDATE arqueos_caja SET total_ventas = $1, updated_at = $2 WHERE id = $3`,
		salesTotal, register.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("refresh register", err)
	}
	return register, nil
}

type RegisterUpdate struct {
	OpeningAmount *float64 `json:"monto_inicial"`
	CountedCash   *float64 `json:"efectivo_real"`
	Note          *string  `json:"observacion"`
}

// Update edits an arqueo and recomputes diferencia whenever either side
// of the equation changes.
func (s *CashRegisterService) Update(id string, upd RegisterUpdate) (*models.CashRegister, error) {
	register, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if upd.OpeningAmount != nil {
		register.OpeningAmount = *upd.OpeningAmount
	}
	if upd.CountedCash != nil {
		register.CountedCash = upd.CountedCash
	}
	if upd.Note != nil {
		register.Note = *upd.Note
	}

	if register.CountedCash != nil {
		register.Difference = *register.CountedCash - (register.OpeningAmount + register.SalesTotal)
	}

	register.UpdatedAt = time.Now()
	var counted any
	if register.CountedCash != nil {
		counted = *register.CountedCash
	}
	_, err = s.db.Exec(`
		UPDATE arqueos_caja
		SET monto_inicial = $1, efectivo_real = $2, diferencia = $3, observacion = $4, updated_at = $5
		WHERE id = $6`,
		register.OpeningAmount, counted, register.Difference, nullIfEmpty(register.Note), register.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("update register", err)
	}
	return register, nil
}

func scanRegister(row rowScanner) (*models.CashRegister, error) {
	var register models.CashRegister
	var closingTime, note sql.NullString
	var counted sql.NullFloat64
	err := row.Scan(&register.ID, &register.Date, &register.OpeningTime, &closingTime,
		&register.OpeningAmount, &register.SalesTotal, &counted, &register.Difference,
		&register.AdminID, &note, &register.Status, &register.CreatedAt, &register.UpdatedAt)
	if err != nil {
		return nil, err
	}
	register.ClosingTime = closingTime.String
	register.Note = note.String
	if counted.Valid {
		register.CountedCash = &counted.Float64
	}
	return &register, nil
}

// ---- HTTP handlers ----

func (s *CashRegisterService) GetOpenRegister(w http.ResponseWriter, r *http.Request) {
	register, err := s.GetOpen()
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	if register == nil {
		SendJSON(w, http.StatusOK, nil)
		return
	}
	SendJSON(w, http.StatusOK, register)
}

func (s *CashRegisterService) ListRegisters(w http.ResponseWriter, r *http.Request) {
	registers, err := s.List()
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, registers)
}

func (s *CashRegisterService) GetRegister(w http.ResponseWriter, r *http.Request) {
	register, err := s.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, register)
}

func (s *CashRegisterService) OpenRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpeningAmount float64 `json:"monto_inicial" validate:"gte=0"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	adminID, _ := r.Context().Value("userID").(string)
	register, err := s.Open(req.OpeningAmount, adminID)
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusCreated, register)
}

func (s *CashRegisterService) CloseRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CountedCash float64 `json:"efectivo_real" validate:"gte=0"`
		Note        string  `json:"observacion"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	register, err := s.Close(chi.URLParam(r, "id"), req.CountedCash, req.Note)
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, register)
}

func (s *CashRegisterService) UpdateRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterUpdate
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	register, err := s.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, register)
}

func (s *CashRegisterService) RefreshRegisterSales(w http.ResponseWriter, r *http.Request) {
	register, err := s.RefreshSalesTotal(chi.URLParam(r, "id"))
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, register)
}

func writeRegisterError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusBadRequest, nil)
	case apperrors.IsNotFound(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
	default:
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
	}
}
