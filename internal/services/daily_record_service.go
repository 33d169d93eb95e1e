package services

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// DailyRecordService owns the registros_servicios table: at most one
// record per (service, date), with monto_aumentado kept in sync with the
// movement ledger.
type DailyRecordService struct {
	db *sql.DB
}

func NewDailyRecordService(db *sql.DB) *DailyRecordService {
	return &DailyRecordService{db: db}
}

type CreateDailyRecordInput struct {
	ServiceID      string  `json:"id_servicio" validate:"required"`
	Date           string  `json:"fecha" validate:"required,localdate"`
	OpeningBalance float64 `json:"saldo_inicial" validate:"gte=0"`
	ClosingBalance float64 `json:"saldo_final" validate:"gte=0"`
	UserID         string  `json:"id_usuario" validate:"required"`
	Note           string  `json:"observacion"`
	// AmountIncreased overrides the ledger-derived sum when set.
	AmountIncreased *float64 `json:"monto_aumentado"`
}

// Create inserts the daily record for (service, date). Fails with
// ErrDuplicateDailyRecord when one already exists. When the caller does
// not pass monto_aumentado it is derived from the ledger.
func (s *DailyRecordService) Create(in CreateDailyRecordInput) (*models.DailyRecord, error) {
	if in.OpeningBalance < 0 {
		return nil, apperrors.NewValidationError("saldo_inicial", "no puede ser negativo")
	}
	if in.ClosingBalance < 0 {
		return nil, apperrors.NewValidationError("saldo_final", "no puede ser negativo")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, apperrors.NewValidationError("fecha", "formato esperado YYYY-MM-DD")
	}

	existing, err := s.GetByDate(in.ServiceID, in.Date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateDailyRecord
	}

	increased := float64(0)
	if in.AmountIncreased != nil {
		increased = *in.AmountIncreased
	} else {
		increased, err = sumIncreasesForDay(s.db, in.ServiceID, in.Date)
		if err != nil {
			return nil, err
		}
	}

	record := &models.DailyRecord{
		ServiceID:       in.ServiceID,
		Date:            in.Date,
		OpeningBalance:  in.OpeningBalance,
		ClosingBalance:  in.ClosingBalance,
		AmountIncreased: increased,
		UserID:          in.UserID,
		Note:            in.Note,
	}

	err = s.db.QueryRow(`
		INSERT INTO registros_servicios (id_servicio, fecha, saldo_inicial, saldo_final, monto_aumentado, id_usuario, observacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		in.ServiceID, in.Date, in.OpeningBalance, in.ClosingBalance, increased, in.UserID, nullIfEmpty(in.Note)).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create daily record", err)
	}
	return record, nil
}

func (s *DailyRecordService) GetByID(id string) (*models.DailyRecord, error) {
	record, err := scanDailyRecord(s.db.QueryRow(`
		SELECT id, id_servicio, fecha, saldo_inicial, saldo_final, monto_aumentado, id_usuario, observacion, created_at, updated_at
		FROM registros_servicios
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get daily record", err)
	}
	return record, nil
}

// GetByDate returns the record for (service, date), or nil when the day
// is still pending.
func (s *DailyRecordService) GetByDate(serviceID, date string) (*models.DailyRecord, error) {
	record, err := scanDailyRecord(s.db.QueryRow(`
		SELECT id, id_servicio, fecha, saldo_inicial, saldo_final, monto_aumentado, id_usuario, observacion, created_at, updated_at
		FROM registros_servicios
		WHERE id_servicio = $1 AND fecha = $2`, serviceID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap("get daily record by date", err)
	}
	return record, nil
}

type RecordFilters struct {
	ServiceID string
	DateFrom  string
	DateTo    string
}

func (s *DailyRecordService) List(filters RecordFilters) ([]models.DailyRecord, error) {
	query := `
		SELECT id, id_servicio, fecha, saldo_inicial, saldo_final, monto_aumentado, id_usuario, observacion, created_at, updated_at
		FROM registros_servicios
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
	query += ` ORDER BY fecha DESC, created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap("list daily records", err)
	}
	defer rows.Close()

	records := []models.DailyRecord{}
	for rows.Next() {
		record, err := scanDailyRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap("list daily records", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// DailyRecordUpdate carries the fields an update may change. Nil means
// "leave as stored", except AmountIncreased: when nil it is recomputed
// from the ledger, because the ledger is the source of truth unless the
// caller overrides it.
type DailyRecordUpdate struct {
	OpeningBalance  *float64 `json:"saldo_inicial"`
	ClosingBalance  *float64 `json:"saldo_final"`
	AmountIncreased *float64 `json:"monto_aumentado"`
	Note            *string  `json:"observacion"`
}

func (s *DailyRecordService) Update(id string, upd DailyRecordUpdate) (*models.DailyRecord, error) {
	if upd.OpeningBalance != nil && *upd.OpeningBalance < 0 {
		return nil, apperrors.NewValidationError("saldo_inicial", "no puede ser negativo")
	}
	if upd.ClosingBalance != nil && *upd.ClosingBalance < 0 {
		return nil, apperrors.NewValidationError("saldo_final", "no puede ser negativo")
	}

	record, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if upd.OpeningBalance != nil {
		record.OpeningBalance = *upd.OpeningBalance
	}
	if upd.ClosingBalance != nil {
		record.ClosingBalance = *upd.ClosingBalance
	}
	if upd.Note != nil {
		record.Note = *upd.Note
	}
	if upd.AmountIncreased != nil {
		record.AmountIncreased = *upd.AmountIncreased
	} else {
		increased, err := sumIncreasesForDay(s.db, record.ServiceID, record.Date)
		if err != nil {
			return nil, err
		}
		record.AmountIncreased = increased
	}

	record.UpdatedAt = time.Now()
	_, err = s.db.Exec(`
		UPDATE registros_servicios
		SET saldo_inicial = $1, saldo_final = $2, monto_aumentado = $3, observacion = $4, updated_at = $5
		WHERE id = $6`,
		record.OpeningBalance, record.ClosingBalance, record.AmountIncreased, nullIfEmpty(record.Note), record.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("update daily record", err)
	}
	return record, nil
}

// Delete removes the record only; ledger movements stay untouched. The
// day goes back to pending and can be re-registered.
func (s *DailyRecordService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM registros_servicios WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap("delete daily record", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap("delete daily record", err)
	}
	if affected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// RegisterOrUpdate creates the record for (service, date) or updates the
// existing one. The increase amount is always re-derived from the ledger
// here; only the explicit Create path can override it.
func (s *DailyRecordService) RegisterOrUpdate(serviceID, date string, opening, closing float64, userID, note string) (*models.DailyRecord, error) {
	existing, err := s.GetByDate(serviceID, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.Create(CreateDailyRecordInput{
			ServiceID:      serviceID,
			Date:           date,
			OpeningBalance: opening,
			ClosingBalance: closing,
			UserID:         userID,
			Note:           note,
		})
	}
	return s.Update(existing.ID, DailyRecordUpdate{
		OpeningBalance: &opening,
		ClosingBalance: &closing,
		Note:           &note,
	})
}

// GetServicesWithDailyStatus lists active services with their record for
// the date (when registered) and the live same-day increase sum.
func (s *DailyRecordService) GetServicesWithDailyStatus(date string) ([]models.ServiceDailyStatus, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.nombre, s.descripcion, s.estado, s.created_at, s.updated_at,
		       r.id, r.saldo_inicial, r.saldo_final, r.monto_aumentado, r.id_usuario, r.observacion, r.created_at, r.updated_at,
		       COALESCE((SELECT SUM(m.monto) FROM movimientos_servicios m
		                 WHERE m.id_servicio = s.id AND m.fecha = $1 AND m.tipo = 'aumento'), 0)
		FROM servicios s
		LEFT JOIN registros_servicios r ON r.id_servicio = s.id AND r.fecha = $1
		WHERE s.estado = 'activo'
		ORDER BY s.nombre`, date)
	if err != nil {
		return nil, apperrors.Wrap("daily status", err)
	}
	defer rows.Close()

	statuses := []models.ServiceDailyStatus{}
	for rows.Next() {
		var status models.ServiceDailyStatus
		var desc sql.NullString
		var recID, recUser, recNote sql.NullString
		var recOpening, recClosing, recIncreased sql.NullFloat64
		var recCreated, recUpdated sql.NullTime

		err := rows.Scan(
			&status.Service.ID, &status.Service.Name, &desc, &status.Service.Status,
			&status.Service.CreatedAt, &status.Service.UpdatedAt,
			&recID, &recOpening, &recClosing, &recIncreased, &recUser, &recNote, &recCreated, &recUpdated,
			&status.SumIncreased)
		if err != nil {
			return nil, apperrors.Wrap("daily status", err)
		}
		status.Service.Description = desc.String

		if recID.Valid {
			status.Record = &models.DailyRecord{
				ID:              recID.String,
				ServiceID:       status.Service.ID,
				Date:            date,
				OpeningBalance:  recOpening.Float64,
				ClosingBalance:  recClosing.Float64,
				AmountIncreased: recIncreased.Float64,
				UserID:          recUser.String,
				Note:            recNote.String,
				CreatedAt:       recCreated.Time,
				UpdatedAt:       recUpdated.Time,
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// syncAmountIncreased refreshes the cached monto_aumentado of the
// (service, date) record from the ledger. No-op when the day is pending.
func (s *DailyRecordService) syncAmountIncreased(serviceID, date string) error {
	record, err := s.GetByDate(serviceID, date)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	increased, err := sumIncreasesForDay(s.db, serviceID, date)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		UPDATE registros_servicios
		SET monto_aumentado = $1, updated_at = $2
		WHERE id = $3`,
		increased, time.Now(), record.ID)
	if err != nil {
		return apperrors.Wrap("sync daily record", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDailyRecord(row rowScanner) (*models.DailyRecord, error) {
	var record models.DailyRecord
	var user, note sql.NullString
	err := row.Scan(&record.ID, &record.ServiceID, &record.Date,
		&record.OpeningBalance, &record.ClosingBalance, &record.AmountIncreased,
		&user, &note, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.UserID = user.String
	record.Note = note.String
	return &record, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
