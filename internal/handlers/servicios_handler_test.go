package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ugarte24/ventacontrol-pro/internal/services"
)

func newTestRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	catalog := services.NewCatalogService(db)
	records := services.NewDailyRecordService(db)
	movements := services.NewMovementService(db, records)
	handler := NewServiciosHandler(catalog, movements, records)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), "userID", "user-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/servicios", handler.ListServices)
	r.Get("/servicios-dia", handler.DailyStatus)
	r.Post("/registros-servicios", handler.RegisterDaily)
	r.Put("/registros-servicios/{id}", handler.UpdateDailyRecord)
	r.Post("/movimientos-servicios", handler.RecordIncrease)
	r.Put("/movimientos-servicios/{id}", handler.EditMovement)

	return r, mock, func() { db.Close() }
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "id_servicio", "fecha", "saldo_inicial", "saldo_final", "monto_aumentado", "id_usuario", "observacion", "created_at", "updated_at"})
}

func TestServiciosHandler_DailyStatus(t *testing.T) {
	t.Run("requires fecha", func(t *testing.T) {
		router, _, close := newTestRouter(t)
		defer close()

		r := httptest.NewRequest("GET", "/servicios-dia", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServiciosHandler_RecordIncrease(t *testing.T) {
	t.Run("created with record synced", func(t *testing.T) {
		router, mock, close := newTestRouter(t)
		defer close()

		mock.ExpectQuery("SELECT id FROM servicios").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("svc-1"))
		mock.ExpectQuery("SELECT saldo_final FROM registros_servicios").
			WillReturnRows(sqlmock.NewRows([]string{"saldo_final"}).AddRow(100.0))
		mock.ExpectQuery("INSERT INTO movimientos_servicios").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("mov-1", time.Now()))
		mock.ExpectQuery("SELECT id, id_servicio, fecha").
			WillReturnRows(recordRows().
				AddRow("rec-1", "svc-1", "2024-03-15", 100.0, 100.0, 0.0, "user-1", nil, time.Now(), time.Now()))
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(50.0))
		mock.ExpectExec("UPDATE registros_servicios").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body, _ := json.Marshal(map[string]any{
			"id_servicio": "svc-1",
			"monto":       50,
			"fecha":       "2024-03-15",
			"hora":        "10:30",
		})
		r := httptest.NewRequest("POST", "/movimientos-servicios", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp services.MovementResult
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.True(t, resp.RecordSynced)
		assert.Equal(t, 150.0, resp.Movement.BalanceAfter)
	})

	t.Run("partial outcome when the resync fails", func(t *testing.T) {
		router, mock, close := newTestRouter(t)
		defer close()

		mock.ExpectQuery("SELECT id FROM servicios").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("svc-1"))
		mock.ExpectQuery("SELECT saldo_final FROM registros_servicios").
			WillReturnRows(sqlmock.NewRows([]string{"saldo_final"}).AddRow(100.0))
		mock.ExpectQuery("INSERT INTO movimientos_servicios").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("mov-1", time.Now()))
		mock.ExpectQuery("SELECT id, id_servicio, fecha").
			WillReturnRows(recordRows().
				AddRow("rec-1", "svc-1", "2024-03-15", 100.0, 100.0, 0.0, "user-1", nil, time.Now(), time.Now()))
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(50.0))
		mock.ExpectExec("UPDATE registros_servicios").
			WillReturnError(sql.ErrConnDone)

		body, _ := json.Marshal(map[string]any{
			"id_servicio": "svc-1",
			"monto":       50,
			"fecha":       "2024-03-15",
			"hora":        "10:30",
		})
		r := httptest.NewRequest("POST", "/movimientos-servicios", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp services.MovementResult
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.False(t, resp.RecordSynced)
		assert.NotNil(t, resp.Movement)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		router, _, close := newTestRouter(t)
		defer close()

		body, _ := json.Marshal(map[string]any{
			"id_servicio": "svc-1",
			"monto":       50,
			"fecha":       "15/03/2024",
			"hora":        "10:30",
		})
		r := httptest.NewRequest("POST", "/movimientos-servicios", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		router, _, close := newTestRouter(t)
		defer close()

		r := httptest.NewRequest("POST", "/movimientos-servicios", bytes.NewBufferString(`{"foo": 1}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServiciosHandler_RegisterDaily(t *testing.T) {
	t.Run("creates the record for a pending day", func(t *testing.T) {
		router, mock, close := newTestRouter(t)
		defer close()

		mock.ExpectQuery("SELECT id, id_servicio, fecha").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT id, id_servicio, fecha").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(200.0))
		mock.ExpectQuery("INSERT INTO registros_servicios").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("rec-1", time.Now(), time.Now()))

		body, _ := json.Marshal(map[string]any{
			"id_servicio":   "svc-1",
			"fecha":         "2024-03-15",
			"saldo_inicial": 500,
			"saldo_final":   450,
		})
		r := httptest.NewRequest("POST", "/registros-servicios", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var record map[string]any
		json.Unmarshal(w.Body.Bytes(), &record)
		assert.Equal(t, 200.0, record["monto_aumentado"])
	})
}

func TestServiciosHandler_UpdateDailyRecord(t *testing.T) {
	t.Run("unknown record", func(t *testing.T) {
		router, mock, close := newTestRouter(t)
		defer close()

		mock.ExpectQuery("SELECT id, id_servicio, fecha").
			WillReturnError(sql.ErrNoRows)

		body, _ := json.Marshal(map[string]any{"saldo_final": 400})
		r := httptest.NewRequest("PUT", "/registros-servicios/missing", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
