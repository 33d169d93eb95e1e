package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// CatalogService owns the servicios table. Services are soft-stateful:
// estado toggles between activo/inactivo and a hard delete exists for
// administrators.
type CatalogService struct {
	db *sql.DB
}

func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{db: db}
}

type CreateServiceInput struct {
	Name        string `json:"nombre" validate:"required,min=2"`
	Description string `json:"descripcion"`
	Status      string `json:"estado" validate:"omitempty,oneof=activo inactivo"`
}

func (s *CatalogService) ListServices(includeInactive bool) ([]models.Service, error) {
	query := `
		SELECT id, nombre, descripcion, estado, created_at, updated_at
		FROM servicios`
	args := []any{}
	if !includeInactive {
		query += ` WHERE estado = $1`
		args = append(args, "activo")
	}
	query += ` ORDER BY nombre`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap("list services", err)
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, apperrors.Wrap("list services", err)
		}
		services = append(services, *service)
	}
	return services, rows.Err()
}

func (s *CatalogService) GetService(id string) (*models.Service, error) {
	service, err := scanService(s.db.QueryRow(`
		SELECT id, nombre, descripcion, estado, created_at, updated_at
		FROM servicios
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrServiceNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get service", err)
	}
	return service, nil
}

func (s *CatalogService) CreateService(in CreateServiceInput) (*models.Service, error) {
	if in.Name == "" {
		return nil, apperrors.NewValidationError("nombre", "es obligatorio")
	}
	status := in.Status
	if status == "" {
		status = "activo"
	}

	service := &models.Service{
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
	}
	err := s.db.QueryRow(`
		INSERT INTO servicios (nombre, descripcion, estado)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		in.Name, nullIfEmpty(in.Description), status).
		Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create service", err)
	}
	return service, nil
}

type ServiceUpdate struct {
	Name        *string `json:"nombre"`
	Description *string `json:"descripcion"`
	Status      *string `json:"estado"`
}

func (s *CatalogService) UpdateService(id string, upd ServiceUpdate) (*models.Service, error) {
	service, err := s.GetService(id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		service.Name = *upd.Name
	}
	if upd.Description != nil {
		service.Description = *upd.Description
	}
	if upd.Status != nil {
		if *upd.Status != "activo" && *upd.Status != "inactivo" {
			return nil, apperrors.NewValidationError("estado", "valores permitidos: activo, inactivo")
		}
		service.Status = *upd.Status
	}

	service.UpdatedAt = time.Now()
	_, err = s.db.Exec(`
		UPDATE servicios
		SET nombre = $1, descripcion = $2, estado = $3, updated_at = $4
		WHERE id = $5`,
		service.Name, nullIfEmpty(service.Description), service.Status, service.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("update service", err)
	}
	return service, nil
}

func (s *CatalogService) DeleteService(id string) error {
	result, err := s.db.Exec(`DELETE FROM servicios WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap("delete service", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap("delete service", err)
	}
	if affected == 0 {
		return apperrors.ErrServiceNotFound
	}
	return nil
}

func scanService(row rowScanner) (*models.Service, error) {
	var service models.Service
	var desc sql.NullString
	err := row.Scan(&service.ID, &service.Name, &desc, &service.Status,
		&service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		return nil, err
	}
	service.Description = desc.String
	return &service, nil
}
