package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// ClientService owns the clientes table. Deletes are soft.
type ClientService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewClientService(db *sql.DB) *ClientService {
	return &ClientService{db: db, validator: NewValidationHelper()}
}

type PaginatedClients struct {
	Data       []models.Client `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

type ClientQuery struct {
	Page            int
	PageSize        int
	IncludeInactive bool
	SearchTerm      string
}

func (s *ClientService) ListPaginated(q ClientQuery) (*PaginatedClients, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 50
	}

	where := ` WHERE 1=1`
	args := []any{}
	if !q.IncludeInactive {
		args = append(args, "activo")
		where += ` AND estado = $` + strconv.Itoa(len(args))
	}
	if q.SearchTerm != "" {
		args = append(args, "%"+q.SearchTerm+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (nombre ILIKE $` + n + ` OR ci_nit ILIKE $` + n + ` OR telefono ILIKE $` + n + `)`
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM clientes`+where, args...).Scan(&total); err != nil {
		return nil, apperrors.Wrap("count clients", err)
	}

	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := s.db.Query(`
		SELECT id, nombre, ci_nit, telefono, direccion, estado, created_at, updated_at
		FROM clientes`+where+`
		ORDER BY nombre
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, apperrors.Wrap("list clients", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, apperrors.Wrap("list clients", err)
		}
		clients = append(clients, *client)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap("list clients", err)
	}

	return &PaginatedClients{
		Data:       clients,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}, nil
}

func (s *ClientService) GetByID(id string) (*models.Client, error) {
	client, err := scanClient(s.db.QueryRow(`
		SELECT id, nombre, ci_nit, telefono, direccion, estado, created_at, updated_at
		FROM clientes
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrClientNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get client", err)
	}
	return client, nil
}

type CreateClientInput struct {
	Name    string `json:"nombre" validate:"required,min=2"`
	TaxID   string `json:"ci_nit"`
	Phone   string `json:"telefono"`
	Address string `json:"direccion"`
}

func (s *ClientService) Create(in CreateClientInput) (*models.Client, error) {
	client := &models.Client{
		Name:    in.Name,
		TaxID:   in.TaxID,
		Phone:   in.Phone,
		Address: in.Address,
		Status:  "activo",
	}
	err := s.db.QueryRow(`
		INSERT INTO clientes (nombre, ci_nit, telefono, direccion, estado)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		in.Name, nullIfEmpty(in.TaxID), nullIfEmpty(in.Phone), nullIfEmpty(in.Address), "activo").
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create client", err)
	}
	return client, nil
}

type ClientUpdate struct {
	Name    *string `json:"nombre"`
	TaxID   *string `json:"ci_nit"`
	Phone   *string `json:"telefono"`
	Address *string `json:"direccion"`
	Status  *string `json:"estado"`
}

func (s *ClientService) Update(id string, upd ClientUpdate) (*models.Client, error) {
	client, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		client.Name = *upd.Name
	}
	if upd.TaxID != nil {
		client.TaxID = *upd.TaxID
	}
	if upd.Phone != nil {
		client.Phone = *upd.Phone
	}
	if upd.Address != nil {
		client.Address = *upd.Address
	}
	if upd.Status != nil {
		client.Status = *upd.Status
	}

	client.UpdatedAt = time.Now()
	_, err = s.db.Exec(`
		UPDATE clientes
		SET nombre = $1, ci_nit = $2, telefono = $3, direccion = $4, estado = $5, updated_at = $6
		WHERE id = $7`,
		client.Name, nullIfEmpty(client.TaxID), nullIfEmpty(client.Phone), nullIfEmpty(client.Address),
		client.Status, client.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("update client", err)
	}
	return client, nil
}

func (s *ClientService) Delete(id string) error {
	result, err := s.db.Exec(`
		UPDATE clientes SET estado = 'inactivo', updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return apperrors.Wrap("delete client", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap("delete client", err)
	}
	if affected == 0 {
		return apperrors.ErrClientNotFound
	}
	return nil
}

func (s *ClientService) ToggleStatus(id string) (*models.Client, error) {
	client, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	// Legacy rows may miss estado; treat them as active.
	newStatus := "inactivo"
	if client.Status == "inactivo" {
		newStatus = "activo"
	}
	return s.Update(id, ClientUpdate{Status: &newStatus})
}

func scanClient(row rowScanner) (*models.Client, error) {
	var client models.Client
	var taxID, phone, address sql.NullString
	err := row.Scan(&client.ID, &client.Name, &taxID, &phone, &address, &client.Status,
		&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, err
	}
	client.TaxID = taxID.String
	client.Phone = phone.String
	client.Address = address.String
	return &client, nil
}

// ---- HTTP handlers ----

func (s *ClientService) ListClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	result, err := s.ListPaginated(ClientQuery{
		Page:            page,
		PageSize:        pageSize,
		IncludeInactive: q.Get("includeInactive") == "true",
		SearchTerm:      q.Get("search"),
	})
	if err != nil {
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, result)
}

func (s *ClientService) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeClientError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, client)
}

func (s *ClientService) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientInput
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	client, err := s.Create(req)
	if err != nil {
		writeClientError(w, err)
		return
	}
	SendJSON(w, http.StatusCreated, client)
}

func (s *ClientService) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientUpdate
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	client, err := s.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		writeClientError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, client)
}

func (s *ClientService) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(chi.URLParam(r, "id")); err != nil {
		writeClientError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ClientService) ToggleClientStatus(w http.ResponseWriter, r *http.Request) {
	client, err := s.ToggleStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeClientError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, client)
}

func writeClientError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusBadRequest, nil)
	case apperrors.IsNotFound(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
	case apperrors.IsDuplicate(err):
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusConflict, nil)
	default:
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
	}
}
