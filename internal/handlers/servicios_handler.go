package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/services"
)

// ServiciosHandler exposes the service catalog, the movement ledger and
// the daily reconciliation records over HTTP.
type ServiciosHandler struct {
	catalog   *services.CatalogService
	movements *services.MovementService
	records   *services.DailyRecordService
	validator *services.ValidationHelper
}

func NewServiciosHandler(catalog *services.CatalogService, movements *services.MovementService, records *services.DailyRecordService) *ServiciosHandler {
	return &ServiciosHandler{
		catalog:   catalog,
		movements: movements,
		records:   records,
		validator: services.NewValidationHelper(),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		services.SendErrorResponse(w, apperrors.UserMessage(err), http.StatusBadRequest, nil)
	case apperrors.IsDuplicate(err):
		services.SendErrorResponse(w, apperrors.UserMessage(err), http.StatusConflict, nil)
	case apperrors.IsNotFound(err):
		services.SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
	case apperrors.IsPermissionDenied(err):
		services.SendErrorResponse(w, apperrors.UserMessage(err), http.StatusForbidden, nil)
	default:
		services.SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
	}
}

func requestUserID(r *http.Request) string {
	userID, _ := r.Context().Value("userID").(string)
	return userID
}

// ---- service catalog ----

func (h *ServiciosHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	list, err := h.catalog.ListServices(includeInactive)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, list)
}

func (h *ServiciosHandler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.catalog.GetService(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, service)
}

func (h *ServiciosHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req services.CreateServiceInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	service, err := h.catalog.CreateService(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, service)
}

func (h *ServiciosHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req services.ServiceUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	service, err := h.catalog.UpdateService(chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, service)
}

func (h *ServiciosHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteService(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- daily records ----

// DailyStatus lists active services with their record and live increase
// sum for one date.
func (h *ServiciosHandler) DailyStatus(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("fecha")
	if date == "" {
		services.SendErrorResponse(w, "fecha query parameter required", http.StatusBadRequest, nil)
		return
	}
	statuses, err := h.records.GetServicesWithDailyStatus(date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, statuses)
}

type registerDailyRequest struct {
	ServiceID      string  `json:"id_servicio" validate:"required"`
	Date           string  `json:"fecha" validate:"required,localdate"`
	OpeningBalance float64 `json:"saldo_inicial" validate:"gte=0"`
	ClosingBalance float64 `json:"saldo_final" validate:"gte=0"`
	Note           string  `json:"observacion"`
}

// RegisterDaily creates or updates the day's record for a service.
func (h *ServiciosHandler) RegisterDaily(w http.ResponseWriter, r *http.Request) {
	var req registerDailyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	record, err := h.records.RegisterOrUpdate(req.ServiceID, req.Date, req.OpeningBalance, req.ClosingBalance, requestUserID(r), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, record)
}

func (h *ServiciosHandler) ListDailyRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.records.List(services.RecordFilters{
		ServiceID: q.Get("id_servicio"),
		DateFrom:  q.Get("fechaDesde"),
		DateTo:    q.Get("fechaHasta"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, records)
}

func (h *ServiciosHandler) UpdateDailyRecord(w http.ResponseWriter, r *http.Request) {
	var req services.DailyRecordUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := h.records.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, record)
}

func (h *ServiciosHandler) DeleteDailyRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- movements ----

type recordIncreaseRequest struct {
	ServiceID string  `json:"id_servicio" validate:"required"`
	Amount    float64 `json:"monto" validate:"required,gt=0"`
	Date      string  `json:"fecha" validate:"required,localdate"`
	Time      string  `json:"hora" validate:"required,localtime"`
	Note      string  `json:"observacion"`
}

// RecordIncrease tops up a service balance. When the ledger insert
// succeeds but the record resync fails, the response still carries the
// movement with recordSynced=false.
func (h *ServiciosHandler) RecordIncrease(w http.ResponseWriter, r *http.Request) {
	var req recordIncreaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	result, err := h.movements.Create(services.CreateMovementInput{
		ServiceID: req.ServiceID,
		Amount:    req.Amount,
		Date:      req.Date,
		Time:      req.Time,
		UserID:    requestUserID(r),
		Note:      req.Note,
	})
	if err != nil {
		if result != nil && result.Movement != nil {
			// Ledger insert landed, snapshot is stale.
			services.SendJSON(w, http.StatusOK, result)
			return
		}
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, result)
}

func (h *ServiciosHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	movements, err := h.movements.List(services.MovementFilters{
		ServiceID: q.Get("id_servicio"),
		DateFrom:  q.Get("fechaDesde"),
		DateTo:    q.Get("fechaHasta"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, movements)
}

type editMovementRequest struct {
	Amount float64 `json:"monto" validate:"required,gt=0"`
	Note   *string `json:"observacion"`
}

func (h *ServiciosHandler) EditMovement(w http.ResponseWriter, r *http.Request) {
	var req editMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	movement, err := h.movements.Edit(chi.URLParam(r, "id"), req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, movement)
}

func (h *ServiciosHandler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	if err := h.movements.Delete(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
