package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// SaleService owns ventas, detalle_ventas and abonos_creditos. Sale
// creation and cancellation move stock and sale rows inside one database
// transaction; a sale can never land without its stock decrement.
type SaleService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewSaleService(db *sql.DB) *SaleService {
	return &SaleService{db: db, validator: NewValidationHelper()}
}

type SaleItemInput struct {
	ProductID string `json:"id_producto" validate:"required"`
	Quantity  int    `json:"cantidad" validate:"required,gt=0"`
}

type CreateSaleInput struct {
	ClientID      string          `json:"id_cliente"`
	UserID        string          `json:"id_usuario" validate:"required"`
	PaymentMethod string          `json:"metodo_pago" validate:"required,oneof=efectivo qr transferencia credito"`
	Note          string          `json:"observacion"`
	Items         []SaleItemInput `json:"items" validate:"required,min=1,dive"`
}

// Create registers a sale. Prices come from the product rows at sale
// time, stock is decremented per item, and insufficient stock fails the
// whole transaction. Credit sales start pending with the full total
// outstanding; a credit sale requires a client to collect from.
func (s *SaleService) Create(in CreateSaleInput) (*models.Sale, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.NewValidationError("items", "la venta necesita al menos un producto")
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.NewValidationError("cantidad", "debe ser mayor a cero")
		}
	}
	if in.PaymentMethod == models.PaymentCredit && in.ClientID == "" {
		return nil, apperrors.NewValidationError("id_cliente", "requerido para ventas a crédito")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap("create sale", err)
	}
	defer tx.Rollback()

	now := time.Now()
	sale := &models.Sale{
		ID:            uuid.NewString(),
		ClientID:      in.ClientID,
		UserID:        in.UserID,
		Date:          LocalDate(now),
		Time:          LocalTime(now),
		PaymentMethod: in.PaymentMethod,
		Status:        models.SaleCompleted,
		Note:          in.Note,
	}

	items := make([]models.SaleItem, 0, len(in.Items))
	for _, item := range in.Items {
		var price float64
		var stock int
		err := tx.QueryRow(`
			SELECT precio_venta, stock_actual FROM productos
			WHERE id = $1 AND estado = 'activo'
			FOR UPDATE`, item.ProductID).Scan(&price, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrProductNotFound
		}
		if err != nil {
			return nil, apperrors.Wrap("create sale", err)
		}
		if stock < item.Quantity {
			return nil, apperrors.NewValidationError("cantidad", "stock insuficiente")
		}

		subtotal := price * float64(item.Quantity)
		sale.Total += subtotal
		items = append(items, models.SaleItem{
			SaleID:    sale.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
		})
	}

	if in.PaymentMethod == models.PaymentCredit {
		sale.Status = models.SalePending
		sale.PendingAmount = sale.Total
	}

	err = tx.QueryRow(`
		INSERT INTO ventas (id, id_cliente, id_usuario, fecha, hora, total, metodo_pago, estado, saldo_pendiente, observacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		sale.ID, nullIfEmpty(sale.ClientID), sale.UserID, sale.Date, sale.Time,
		sale.Total, sale.PaymentMethod, sale.Status, sale.PendingAmount, nullIfEmpty(sale.Note)).
		Scan(&sale.CreatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create sale", err)
	}

	for i := range items {
		item := &items[i]
		err = tx.QueryRow(`
			INSERT INTO detalle_ventas (id_venta, id_producto, cantidad, precio_unitario, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).
			Scan(&item.ID)
		if err != nil {
			return nil, apperrors.Wrap("create sale", err)
		}

		_, err = tx.Exec(`
			UPDATE productos SET stock_actual = stock_actual - $1, updated_at = $2 WHERE id = $3`,
			item.Quantity, now, item.ProductID)
		if err != nil {
			return nil, apperrors.Wrap("create sale", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap("create sale", err)
	}
	sale.Items = items
	return sale, nil
}

func (s *SaleService) GetByID(id string) (*models.Sale, error) {
	sale, err := scanSale(s.db.QueryRow(`
		SELECT id, id_cliente, id_usuario, fecha, hora, total, metodo_pago, estado, saldo_pendiente, observacion, created_at
		FROM ventas
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSaleNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get sale", err)
	}

	rows, err := s.db.Query(`
		SELECT id, id_venta, id_producto, cantidad, precio_unitario, subtotal
		FROM detalle_ventas
		WHERE id_venta = $1`, id)
	if err != nil {
		return nil, apperrors.Wrap("get sale items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, apperrors.Wrap("get sale items", err)
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

type SaleFilters struct {
	DateFrom      string
	DateTo        string
	Status        string
	PaymentMethod string
}

func (s *SaleService) List(filters SaleFilters) ([]models.Sale, error) {
	query := `
		SELECT id, id_cliente, id_usuario, fecha, hora, total, metodo_pago, estado, saldo_pendiente, observacion, created_at
		FROM ventas
		WHERE 1=1`
	args := []any{}
	if filters.DateFrom != "" {
		args = append(args, filters.DateFrom)
		query += ` AND fecha >= $` + strconv.Itoa(len(args))
	}
	if filters.DateTo != "" {
		args = append(args, filters.DateTo)
		query += ` AND fecha <= $` + strconv.Itoa(len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND estado = $` + strconv.Itoa(len(args))
	}
	if filters.PaymentMethod != "" {
		args = append(args, filters.PaymentMethod)
		query += ` AND metodo_pago = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY fecha DESC, hora DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap("list sales", err)
	}
	defer rows.Close()

	sales := []models.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, apperrors.Wrap("list sales", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// Cancel voids a sale and puts the sold stock back, in one transaction.
func (s *SaleService) Cancel(id string) (*models.Sale, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}
	defer tx.Rollback()

	sale, err := scanSale(tx.QueryRow(`
		SELECT id, id_cliente, id_usuario, fecha, hora, total, metodo_pago, estado, saldo_pendiente, observacion, created_at
		FROM ventas
		WHERE id = $1
		FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSaleNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}
	if sale.Status == models.SaleCancelled {
		return nil, apperrors.NewValidationError("estado", "la venta ya está anulada")
	}

	rows, err := tx.Query(`
		SELECT id_producto, cantidad FROM detalle_ventas WHERE id_venta = $1`, id)
	if err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}
	type restock struct {
		productID string
		quantity  int
	}
	restocks := []restock{}
	for rows.Next() {
		var r restock
		if err := rows.Scan(&r.productID, &r.quantity); err != nil {
			rows.Close()
			return nil, apperrors.Wrap("cancel sale", err)
		}
		restocks = append(restocks, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}

	now := time.Now()
	for _, r := range restocks {
		_, err = tx.Exec(`
			UPDATE productos SET stock_actual = stock_actual + $1, updated_at = $2 WHERE id = $3`,
			r.quantity, now, r.productID)
		if err != nil {
			return nil, apperrors.Wrap("cancel sale", err)
		}
	}

	_, err = tx.Exec(`UPDATE ventas SET estado = $1 WHERE id = $2`, models.SaleCancelled, id)
	if err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap("cancel sale", err)
	}
	sale.Status = models.SaleCancelled
	return sale, nil
}

// Totals accumulate from float64 subtotals and carry binary residue, so
// settlement comparisons work to half a centavo.
const settlementTolerance = 0.005

// RecordCreditPayment applies an abono against a pending credit sale.
// Paying the full outstanding balance completes the sale; overpayment is
// rejected before anything is written.
func (s *SaleService) RecordCreditPayment(saleID string, amount float64, userID string) (*models.Sale, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("monto", "debe ser mayor a cero")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap("credit payment", err)
	}
	defer tx.Rollback()

	sale, err := scanSale(tx.QueryRow(`
		SELECT id, id_cliente, id_usuario, fecha, hora, total, metodo_pago, estado, saldo_pendiente, observacion, created_at
		FROM ventas
		WHERE id = $1
		FOR UPDATE`, saleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSaleNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("credit payment", err)
	}
	if sale.PaymentMethod != models.PaymentCredit || sale.Status != models.SalePending {
		return nil, apperrors.NewValidationError("id_venta", "la venta no tiene crédito pendiente")
	}
	if amount > sale.PendingAmount+settlementTolerance {
		return nil, apperrors.NewValidationError("monto", "excede el saldo pendiente")
	}

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO abonos_creditos (id_venta, monto, fecha, id_usuario)
		VALUES ($1, $2, $3, $4)`,
		saleID, amount, LocalDate(now), userID)
	if err != nil {
		return nil, apperrors.Wrap("credit payment", err)
	}

	sale.PendingAmount -= amount
	if sale.PendingAmount < settlementTolerance {
		sale.PendingAmount = 0
	}
	if sale.PendingAmount == 0 {
		sale.Status = models.SaleCompleted
	}
	_, err = tx.Exec(`
		UPDATE ventas SET saldo_pendiente = $1, estado = $2 WHERE id = $3`,
		sale.PendingAmount, sale.Status, saleID)
	if err != nil {
		return nil, apperrors.Wrap("credit payment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap("credit payment", err)
	}
	return sale, nil
}

func scanSale(row rowScanner) (*models.Sale, error) {
	var sale models.Sale
	var clientID, note sql.NullString
	err := row.Scan(&sale.ID, &clientID, &sale.UserID, &sale.Date, &sale.Time,
		&sale.Total, &sale.PaymentMethod, &sale.Status, &sale.PendingAmount, &note, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.ClientID = clientID.String
	sale.Note = note.String
	return &sale, nil
}

// ---- HTTP handlers ----

func (s *SaleService) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleInput
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if userID, ok := r.Context().Value("userID").(string); ok && req.UserID == "" {
		req.UserID = userID
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	sale, err := s.Create(req)
	if err != nil {
		writeSaleError(w, err)
		return
	}
	SendJSON(w, http.StatusCreated, sale)
}

func (s *SaleService) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeSaleError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, sale)
}

func (s *SaleService) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sales, err := s.List(SaleFilters{
		DateFrom:      q.Get("fechaDesde"),
		DateTo:        q.Get("fechaHasta"),
		Status:        q.Get("estado"),
		PaymentMethod: q.Get("metodo_pago"),
	})
	if err != nil {
		writeSaleError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, sales)
}

func (s *SaleService) CancelSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeSaleError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, sale)
}

func (s *SaleService) CreateCreditPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"monto" validate:"required,gt=0"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	userID, _ := r.Context().Value("userID").(string)
	sale, err := s.RecordCreditPayment(chi.URLParam(r, "id"), req.Amount, userID)
	if err != nil {
		writeSaleError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, sale)
}

func writeSaleError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusBadRequest, nil)
	case apperrors.IsNotFound(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
	default:
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
	}
}
