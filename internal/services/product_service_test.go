package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

func productColumns() []string {
	return []string{"id", "nombre", "descripcion", "codigo", "id_categoria", "precio_venta", "stock_actual", "stock_minimo", "imagen_url", "estado", "created_at", "updated_at"}
}

func TestProductService_ListPaginated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewProductService(db, nil)

	t.Run("paginates with defaults", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("activo").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
		mock.ExpectQuery("FROM productos").
			WithArgs("activo", 50, 0).
			WillReturnRows(sqlmock.NewRows(productColumns()).
				AddRow("prod-1", "Coca Cola 2L", nil, "779001", nil, 15.5, 24, 6, nil, "activo", time.Now(), time.Now()))

		result, err := service.ListPaginated(ProductQuery{})

		assert.NoError(t, err)
		assert.Equal(t, 120, result.Total)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 3, result.TotalPages)
		assert.Len(t, result.Data, 1)
	})

	t.Run("search hits name and code", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("activo", "%coca%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("FROM productos").
			WithArgs("activo", "%coca%", 50, 0).
			WillReturnRows(sqlmock.NewRows(productColumns()).
				AddRow("prod-1", "Coca Cola 2L", nil, "779001", nil, 15.5, 24, 6, nil, "activo", time.Now(), time.Now()))

		result, err := service.ListPaginated(ProductQuery{SearchTerm: "coca"})

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Total)
	})
}

func TestProductService_GetByCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewProductService(db, nil)

	mock.ExpectQuery("WHERE codigo").
		WithArgs("779001").
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("prod-1", "Coca Cola 2L", nil, "779001", nil, 15.5, 24, 6, nil, "activo", time.Now(), time.Now()))

	product, err := service.GetByCode("779001")
	assert.NoError(t, err)
	assert.Equal(t, "prod-1", product.ID)

	mock.ExpectQuery("WHERE codigo").
		WillReturnError(sql.ErrNoRows)

	_, err = service.GetByCode("000000")
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestProductService_Stats(t *testing.T) {
	t.Run("cold cache falls through to the database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewProductService(db, redisClient)

		stats := models.ProductStats{Total: 80, Active: 72, LowStock: 5}
		payload, _ := json.Marshal(&stats)

		redisMock.ExpectGet(productStatsCacheKey).RedisNil()
		mock.ExpectQuery("FROM productos").
			WillReturnRows(sqlmock.NewRows([]string{"total", "activos", "bajo"}).AddRow(80, 72, 5))
		redisMock.ExpectSet(productStatsCacheKey, payload, productStatsCacheTTL).SetVal("OK")

		got, err := service.Stats(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, stats, *got)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("warm cache skips the database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewProductService(db, redisClient)

		payload, _ := json.Marshal(&models.ProductStats{Total: 80, Active: 72, LowStock: 5})
		redisMock.ExpectGet(productStatsCacheKey).SetVal(string(payload))

		got, err := service.Stats(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 80, got.Total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("works without redis", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewProductService(db, nil)

		mock.ExpectQuery("FROM productos").
			WillReturnRows(sqlmock.NewRows([]string{"total", "activos", "bajo"}).AddRow(10, 9, 1))

		got, err := service.Stats(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 10, got.Total)
	})
}

func TestProductService_AdjustStock(t *testing.T) {
	t.Run("records the delta as an inventory movement", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewProductService(db, nil)

		mock.ExpectQuery("FROM productos").
			WithArgs("prod-1").
			WillReturnRows(sqlmock.NewRows(productColumns()).
				AddRow("prod-1", "Coca Cola 2L", nil, "779001", nil, 15.5, 24, 6, nil, "activo", time.Now(), time.Now()))
		mock.ExpectExec("UPDATE productos SET stock_actual").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO movimientos_inventario").
			WithArgs("prod-1", "salida", 4, "ajuste", sqlmock.AnyArg(), "user-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		product, err := service.AdjustStock("prod-1", 20, "user-1")

		assert.NoError(t, err)
		assert.Equal(t, 20, product.Stock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no movement when the stock does not change", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewProductService(db, nil)

		mock.ExpectQuery("FROM productos").
			WillReturnRows(sqlmock.NewRows(productColumns()).
				AddRow("prod-1", "Coca Cola 2L", nil, "779001", nil, 15.5, 24, 6, nil, "activo", time.Now(), time.Now()))
		mock.ExpectExec("UPDATE productos SET stock_actual").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err = service.AdjustStock("prod-1", 24, "user-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects negative stock", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		_, err = NewProductService(db, nil).AdjustStock("prod-1", -1, "user-1")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestProductService_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewProductService(db, nil)

	t.Run("soft delete", func(t *testing.T) {
		mock.ExpectExec("UPDATE productos SET estado = 'inactivo'").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, service.Delete("prod-1"))
	})

	t.Run("unknown product", func(t *testing.T) {
		mock.ExpectExec("UPDATE productos SET estado = 'inactivo'").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, service.Delete("missing"), apperrors.ErrProductNotFound)
	})
}
