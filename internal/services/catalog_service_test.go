package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
)

func serviceColumns() []string {
	return []string{"id", "nombre", "descripcion", "estado", "created_at", "updated_at"}
}

func TestCatalogService_ListServices(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewCatalogService(db)

	t.Run("active only by default", func(t *testing.T) {
		mock.ExpectQuery("FROM servicios WHERE estado").
			WithArgs("activo").
			WillReturnRows(sqlmock.NewRows(serviceColumns()).
				AddRow("svc-1", "Tigo Money", "billetera móvil", "activo", time.Now(), time.Now()))

		list, err := service.ListServices(false)
		assert.NoError(t, err)
		assert.Len(t, list, 1)
		assert.Equal(t, "Tigo Money", list[0].Name)
	})

	t.Run("includes inactive on request", func(t *testing.T) {
		mock.ExpectQuery("FROM servicios ORDER BY nombre").
			WillReturnRows(sqlmock.NewRows(serviceColumns()).
				AddRow("svc-1", "Tigo Money", nil, "activo", time.Now(), time.Now()).
				AddRow("svc-2", "Viva", nil, "inactivo", time.Now(), time.Now()))

		list, err := service.ListServices(true)
		assert.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestCatalogService_CreateService(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewCatalogService(db)

	t.Run("defaults to activo", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO servicios").
			WithArgs("Entel", nil, "activo").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("svc-3", time.Now(), time.Now()))

		created, err := service.CreateService(CreateServiceInput{Name: "Entel"})
		assert.NoError(t, err)
		assert.Equal(t, "activo", created.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := service.CreateService(CreateServiceInput{})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestCatalogService_UpdateService(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewCatalogService(db)

	t.Run("partial update keeps the rest", func(t *testing.T) {
		status := "inactivo"
		mock.ExpectQuery("FROM servicios").
			WithArgs("svc-1").
			WillReturnRows(sqlmock.NewRows(serviceColumns()).
				AddRow("svc-1", "Tigo Money", "billetera", "activo", time.Now(), time.Now()))
		mock.ExpectExec("UPDATE servicios").
			WillReturnResult(sqlmock.NewResult(0, 1))

		updated, err := service.UpdateService("svc-1", ServiceUpdate{Status: &status})
		assert.NoError(t, err)
		assert.Equal(t, "inactivo", updated.Status)
		assert.Equal(t, "Tigo Money", updated.Name)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		status := "archivado"
		mock.ExpectQuery("FROM servicios").
			WillReturnRows(sqlmock.NewRows(serviceColumns()).
				AddRow("svc-1", "Tigo Money", nil, "activo", time.Now(), time.Now()))

		_, err := service.UpdateService("svc-1", ServiceUpdate{Status: &status})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestCatalogService_DeleteService(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewCatalogService(db)

	t.Run("deletes", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM servicios").
			WithArgs("svc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, service.DeleteService("svc-1"))
	})

	t.Run("unknown service", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM servicios").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, service.DeleteService("missing"), apperrors.ErrServiceNotFound)
	})
}

func TestCatalogService_GetService(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewCatalogService(db)

	mock.ExpectQuery("FROM servicios").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = service.GetService("missing")
	assert.ErrorIs(t, err, apperrors.ErrServiceNotFound)
}
