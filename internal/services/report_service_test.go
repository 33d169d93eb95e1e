package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestReportService_Summary(t *testing.T) {
	t.Run("full range report", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewReportService(db)

		mock.ExpectQuery("FROM ventas").
			WithArgs("anulada", "2024-03-01", "2024-03-31").
			WillReturnRows(sqlmock.NewRows([]string{"total", "count", "pendiente"}).
				AddRow(1250.0, 10, 120.0))
		mock.ExpectQuery("GROUP BY metodo_pago").
			WithArgs("anulada", "2024-03-01", "2024-03-31").
			WillReturnRows(sqlmock.NewRows([]string{"metodo_pago", "total"}).
				AddRow("efectivo", 900.0).
				AddRow("qr", 230.0).
				AddRow("credito", 120.0))
		// the joined query filters on the qualified sale columns
		mock.ExpectQuery(`JOIN ventas(.|\n)*WHERE v\.estado <> \$1 AND v\.fecha >= \$2 AND v\.fecha <= \$3`).
			WithArgs("anulada", "2024-03-01", "2024-03-31", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id_producto", "nombre", "cantidad", "total"}).
				AddRow("prod-1", "Coca Cola 2L", 40, 620.0).
				AddRow("prod-2", "Pan", 35, 70.0))

		summary, err := service.Summary("2024-03-01", "2024-03-31", 0)

		assert.NoError(t, err)
		assert.Equal(t, 1250.0, summary.SalesTotal)
		assert.Equal(t, 10, summary.SalesCount)
		assert.Equal(t, 125.0, summary.AvgTicket)
		assert.Equal(t, 900.0, summary.ByMethod["efectivo"])
		assert.Equal(t, 120.0, summary.CreditOwed)
		assert.Len(t, summary.TopProducts, 2)
		assert.Equal(t, "Coca Cola 2L", summary.TopProducts[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty range has no average", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewReportService(db)

		mock.ExpectQuery("FROM ventas").
			WillReturnRows(sqlmock.NewRows([]string{"total", "count", "pendiente"}).AddRow(0.0, 0, 0.0))
		mock.ExpectQuery("GROUP BY metodo_pago").
			WillReturnRows(sqlmock.NewRows([]string{"metodo_pago", "total"}))
		mock.ExpectQuery("JOIN ventas").
			WillReturnRows(sqlmock.NewRows([]string{"id_producto", "nombre", "cantidad", "total"}))

		summary, err := service.Summary("", "", 0)

		assert.NoError(t, err)
		assert.Equal(t, 0.0, summary.AvgTicket)
		assert.Empty(t, summary.TopProducts)
	})
}
