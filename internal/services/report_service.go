package services

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// ReportService aggregates sales figures for the dashboard and the
// export screens. Cancelled sales are never counted.
type ReportService struct {
	db *sql.DB
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

type SalesSummary struct {
	DateFrom    string             `json:"fechaDesde,omitempty"`
	DateTo      string             `json:"fechaHasta,omitempty"`
	SalesTotal  float64            `json:"totalVentas"`
	SalesCount  int                `json:"cantidadVentas"`
	AvgTicket   float64            `json:"ticketPromedio"`
	ByMethod    map[string]float64 `json:"porMetodoPago"`
	CreditOwed  float64            `json:"saldoPendienteCredito"`
	TopProducts []ProductRanking   `json:"productosTop"`
}

type ProductRanking struct {
	ProductID string  `json:"id_producto"`
	Name      string  `json:"nombre"`
	Quantity  int     `json:"cantidad"`
	Total     float64 `json:"total"`
}

// Summary builds the sales report for a date range. Empty bounds mean
// an open range on that side.
func (s *ReportService) Summary(dateFrom, dateTo string, topN int) (*SalesSummary, error) {
	if topN < 1 {
		topN = 5
	}

	// the joined top-products query needs the same filter with its
	// columns qualified, so both variants are built together
	where := ` WHERE estado <> $1`
	joinWhere := ` WHERE v.estado <> $1`
	args := []any{models.SaleCancelled}
	if dateFrom != "" {
		args = append(args, dateFrom)
		n := strconv.Itoa(len(args))
		where += ` AND fecha >= $` + n
		joinWhere += ` AND v.fecha >= $` + n
	}
	if dateTo != "" {
		args = append(args, dateTo)
		n := strconv.Itoa(len(args))
		where += ` AND fecha <= $` + n
		joinWhere += ` AND v.fecha <= $` + n
	}

	summary := &SalesSummary{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		ByMethod: map[string]float64{},
	}

	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(total), 0), COUNT(*), COALESCE(SUM(saldo_pendiente), 0)
		FROM ventas`+where, args...).
		Scan(&summary.SalesTotal, &summary.SalesCount, &summary.CreditOwed)
	if err != nil {
		return nil, apperrors.Wrap("sales summary", err)
	}
	if summary.SalesCount > 0 {
		summary.AvgTicket = summary.SalesTotal / float64(summary.SalesCount)
	}

	rows, err := s.db.Query(`
		SELECT metodo_pago, COALESCE(SUM(total), 0)
		FROM ventas`+where+`
		GROUP BY metodo_pago`, args...)
	if err != nil {
		return nil, apperrors.Wrap("sales summary", err)
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var total float64
		if err := rows.Scan(&method, &total); err != nil {
			return nil, apperrors.Wrap("sales summary", err)
		}
		summary.ByMethod[method] = total
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap("sales summary", err)
	}

	top, err := s.topProducts(joinWhere, args, topN)
	if err != nil {
		return nil, err
	}
	summary.TopProducts = top
	return summary, nil
}

// topProducts ranks products by units sold inside the range. The where
// clause and args come from Summary so both queries see the same range.
func (s *ReportService) topProducts(where string, args []any, limit int) ([]ProductRanking, error) {
	args = append(args, limit)
	rows, err := s.db.Query(`
		SELECT d.id_producto, p.nombre, SUM(d.cantidad), SUM(d.subtotal)
		FROM detalle_ventas d
		JOIN ventas v ON v.id = d.id_venta
		JOIN productos p ON p.id = d.id_producto`+
		where+`
		GROUP BY d.id_producto, p.nombre
		ORDER BY SUM(d.cantidad) DESC
		LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, apperrors.Wrap("top products", err)
	}
	defer rows.Close()

	ranking := []ProductRanking{}
	for rows.Next() {
		var item ProductRanking
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.Total); err != nil {
			return nil, apperrors.Wrap("top products", err)
		}
		ranking = append(ranking, item)
	}
	return ranking, rows.Err()
}

// ---- HTTP handlers ----

func (s *ReportService) SalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topN, _ := strconv.Atoi(q.Get("top"))
	summary, err := s.Summary(q.Get("fechaDesde"), q.Get("fechaHasta"), topN)
	if err != nil {
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, summary)
}
