package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
)

func clientColumns() []string {
	return []string{"id", "nombre", "ci_nit", "telefono", "direccion", "estado", "created_at", "updated_at"}
}

func TestClientService_ListPaginated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewClientService(db)

	t.Run("search hits name, ci/nit and phone", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("activo", "%7045%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("FROM clientes").
			WithArgs("activo", "%7045%", 50, 0).
			WillReturnRows(sqlmock.NewRows(clientColumns()).
				AddRow("cli-1", "Carlos Mamani", "7045123", "70451234", nil, "activo", time.Now(), time.Now()))

		result, err := service.ListPaginated(ClientQuery{SearchTerm: "7045"})

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, "Carlos Mamani", result.Data[0].Name)
	})
}

func TestClientService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewClientService(db)

	mock.ExpectQuery("INSERT INTO clientes").
		WithArgs("Carlos Mamani", "7045123", nil, nil, "activo").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("cli-1", time.Now(), time.Now()))

	client, err := service.Create(CreateClientInput{Name: "Carlos Mamani", TaxID: "7045123"})

	assert.NoError(t, err)
	assert.Equal(t, "activo", client.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientService_ToggleStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewClientService(db)

	mock.ExpectQuery("FROM clientes").
		WithArgs("cli-1").
		WillReturnRows(sqlmock.NewRows(clientColumns()).
			AddRow("cli-1", "Carlos Mamani", nil, nil, nil, "activo", time.Now(), time.Now()))
	// Update reloads before writing
	mock.ExpectQuery("FROM clientes").
		WithArgs("cli-1").
		WillReturnRows(sqlmock.NewRows(clientColumns()).
			AddRow("cli-1", "Carlos Mamani", nil, nil, nil, "activo", time.Now(), time.Now()))
	mock.ExpectExec("UPDATE clientes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	client, err := service.ToggleStatus("cli-1")

	assert.NoError(t, err)
	assert.Equal(t, "inactivo", client.Status)
}

func TestClientService_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewClientService(db)

	t.Run("soft delete", func(t *testing.T) {
		mock.ExpectExec("UPDATE clientes SET estado = 'inactivo'").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, service.Delete("cli-1"))
	})

	t.Run("unknown client", func(t *testing.T) {
		mock.ExpectExec("UPDATE clientes SET estado = 'inactivo'").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, service.Delete("missing"), apperrors.ErrClientNotFound)
	})
}

func TestClientService_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewClientService(db)

	mock.ExpectQuery("FROM clientes").
		WillReturnError(sql.ErrNoRows)

	_, err = service.GetByID("missing")
	assert.ErrorIs(t, err, apperrors.ErrClientNotFound)
}
