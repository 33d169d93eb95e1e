package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

const productStatsCacheKey = "products:stats"
const productStatsCacheTTL = time.Minute

// ProductService owns the productos and movimientos_inventario tables.
// Deletes are soft (estado flips to inactivo); manual stock adjustments
// leave an inventory movement behind.
type ProductService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

func NewProductService(db *sql.DB, redisClient *redis.Client) *ProductService {
	return &ProductService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

type PaginatedProducts struct {
	Data       []models.Product `json:"data"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

type ProductQuery struct {
	Page            int
	PageSize        int
	IncludeInactive bool
	SearchTerm      string
}

func (s *ProductService) ListPaginated(q ProductQuery) (*PaginatedProducts, error) {
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
		where += ` AND (nombre ILIKE $` + n + ` OR codigo ILIKE $` + n + `)`
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM productos`+where, args...).Scan(&total); err != nil {
		return nil, apperrors.Wrap("count products", err)
	}

	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := s.db.Query(`
		SELECT id, nombre, descripcion, codigo, id_categoria, precio_venta, stock_actual, stock_minimo, imagen_url, estado, created_at, updated_at
		FROM productos`+where+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, apperrors.Wrap("list products", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.Wrap("list products", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap("list products", err)
	}

	totalPages := (total + q.PageSize - 1) / q.PageSize
	return &PaginatedProducts{
		Data:       products,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *ProductService) GetByID(id string) (*models.Product, error) {
	product, err := scanProduct(s.db.QueryRow(`
		SELECT id, nombre, descripcion, codigo, id_categoria, precio_venta, stock_actual, stock_minimo, imagen_url, estado, created_at, updated_at
		FROM productos
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get product", err)
	}
	return product, nil
}

// GetByCode resolves an active product by its barcode, the scanner path
// at the register.
func (s *ProductService) GetByCode(code string) (*models.Product, error) {
	product, err := scanProduct(s.db.QueryRow(`
		SELECT id, nombre, descripcion, codigo, id_categoria, precio_venta, stock_actual, stock_minimo, imagen_url, estado, created_at, updated_at
		FROM productos
		WHERE codigo = $1 AND estado = 'activo'`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap("get product by code", err)
	}
	return product, nil
}

type CreateProductInput struct {
	Name        string  `json:"nombre" validate:"required,min=2"`
	Description string  `json:"descripcion"`
	Code        string  `json:"codigo" validate:"required"`
	CategoryID  string  `json:"id_categoria"`
	SalePrice   float64 `json:"precio_venta" validate:"required,gt=0"`
	Stock       int     `json:"stock_actual" validate:"gte=0"`
	MinStock    int     `json:"stock_minimo" validate:"gte=0"`
	ImageURL    string  `json:"imagen_url"`
}

func (s *ProductService) Create(in CreateProductInput) (*models.Product, error) {
	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Code:        in.Code,
		CategoryID:  in.CategoryID,
		SalePrice:   in.SalePrice,
		Stock:       in.Stock,
		MinStock:    in.MinStock,
		ImageURL:    in.ImageURL,
		Status:      "activo",
	}
	err := s.db.QueryRow(`
		INSERT INTO productos (nombre, descripcion, codigo, id_categoria, precio_venta, stock_actual, stock_minimo, imagen_url, estado)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		in.Name, nullIfEmpty(in.Description), in.Code, nullIfEmpty(in.CategoryID),
		in.SalePrice, in.Stock, in.MinStock, nullIfEmpty(in.ImageURL), "activo").
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap("create product", err)
	}
	s.invalidateStats()
	return product, nil
}

type ProductUpdate struct {
	Name        *string  `json:"nombre"`
	Description *string  `json:"descripcion"`
	Code        *string  `json:"codigo"`
	CategoryID  *string  `json:"id_categoria"`
	SalePrice   *float64 `json:"precio_venta"`
	MinStock    *int     `json:"stock_minimo"`
	ImageURL    *string  `json:"imagen_url"`
	Status      *string  `json:"estado"`
}

func (s *ProductService) Update(id string, upd ProductUpdate) (*models.Product, error) {
	product, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		product.Name = *upd.Name
	}
	if upd.Description != nil {
		product.Description = *upd.Description
	}
	if upd.Code != nil {
		product.Code = *upd.Code
	}
	if upd.CategoryID != nil {
		product.CategoryID = *upd.CategoryID
	}
	if upd.SalePrice != nil {
		if *upd.SalePrice <= 0 {
			return nil, apperrors.NewValidationError("precio_venta", "debe ser mayor a cero")
		}
		product.SalePrice = *upd.SalePrice
	}
	if upd.MinStock != nil {
		product.MinStock = *upd.MinStock
	}
	if upd.ImageURL != nil {
		product.ImageURL = *upd.ImageURL
	}
	if upd.Status != nil {
		product.Status = *upd.Status
	}

	product.UpdatedAt = time.Now()
	_, err = s.db.Exec(`
		UPDATE productos
		SET nombre = $1, descripcion = $2, codigo = $3, id_categoria = $4, precio_venta = $5, stock_minimo = $6, imagen_url = $7, estado = $8, updated_at = $9
		WHERE id = $10`,
		product.Name, nullIfEmpty(product.Description), product.Code, nullIfEmpty(product.CategoryID),
		product.SalePrice, product.MinStock, nullIfEmpty(product.ImageURL), product.Status, product.UpdatedAt, id)
	if err != nil {
		return nil, apperrors.Wrap("update product", err)
	}
	s.invalidateStats()
	return product, nil
}

// Delete deactivates a product. Sales history keeps referencing it.
func (s *ProductService) Delete(id string) error {
	result, err := s.db.Exec(`
		UPDATE productos SET estado = 'inactivo', updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return apperrors.Wrap("delete product", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap("delete product", err)
	}
	if affected == 0 {
		return apperrors.ErrProductNotFound
	}
	s.invalidateStats()
	return nil
}

func (s *ProductService) ToggleStatus(id string) (*models.Product, error) {
	product, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	newStatus := "inactivo"
	if product.Status == "inactivo" {
		newStatus = "activo"
	}
	return s.Update(id, ProductUpdate{Status: &newStatus})
}

func (s *ProductService) LowStock() ([]models.Product, error) {
	rows, err := s.db.Query(`
		SELECT id, nombre, descripcion, codigo, id_categoria, precio_venta, stock_actual, stock_minimo, imagen_url, estado, created_at, updated_at
		FROM productos
		WHERE estado = 'activo' AND stock_actual <= stock_minimo
		ORDER BY stock_actual`)
	if err != nil {
		return nil, apperrors.Wrap("low stock", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.Wrap("low stock", err)
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}

// Stats returns total/active/low-stock counts, cached in Redis for a
// minute. A cold or absent cache falls through to the database.
func (s *ProductService) Stats(ctx context.Context) (*models.ProductStats, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, productStatsCacheKey).Bytes(); err == nil {
			var stats models.ProductStats
			if json.Unmarshal(cached, &stats) == nil {
				return &stats, nil
			}
		}
	}

	var stats models.ProductStats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE estado = 'activo'),
		       COUNT(*) FILTER (WHERE estado = 'activo' AND stock_actual <= stock_minimo)
		FROM productos`).Scan(&stats.Total, &stats.Active, &stats.LowStock)
	if err != nil {
		return nil, apperrors.Wrap("product stats", err)
	}

	if s.redis != nil {
		if payload, err := json.Marshal(&stats); err == nil {
			if err := s.redis.Set(ctx, productStatsCacheKey, payload, productStatsCacheTTL).Err(); err != nil {
				log.Printf("[PRODUCTS] stats cache write failed: %v", err)
			}
		}
	}
	return &stats, nil
}

// AdjustStock sets the absolute stock and records the delta as an
// inventory movement. A failed movement insert is logged, the stock
// change stands (original behavior).
func (s *ProductService) AdjustStock(id string, newStock int, userID string) (*models.Product, error) {
	if newStock < 0 {
		return nil, apperrors.NewValidationError("stock_actual", "no puede ser negativo")
	}

	product, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	previous := product.Stock
	diff := newStock - previous

	_, err = s.db.Exec(`
		UPDATE productos SET stock_actual = $1, updated_at = $2 WHERE id = $3`,
		newStock, time.Now(), id)
	if err != nil {
		return nil, apperrors.Wrap("adjust stock", err)
	}
	product.Stock = newStock

	if diff != 0 {
		movementType := "entrada"
		if diff < 0 {
			movementType = "salida"
			diff = -diff
		}
		_, err = s.db.Exec(`
			INSERT INTO movimientos_inventario (id_producto, tipo_movimiento, cantidad, motivo, fecha, id_usuario, observacion)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, movementType, diff, "ajuste", LocalDate(time.Now()), nullIfEmpty(userID),
			"Ajuste de stock: "+strconv.Itoa(previous)+" -> "+strconv.Itoa(newStock))
		if err != nil {
			log.Printf("[PRODUCTS] inventory movement insert failed: %v", err)
		}
	}

	s.invalidateStats()
	return product, nil
}

func (s *ProductService) invalidateStats() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.Background(), productStatsCacheKey).Err(); err != nil {
		log.Printf("[PRODUCTS] stats cache invalidation failed: %v", err)
	}
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var product models.Product
	var desc, category, image sql.NullString
	err := row.Scan(&product.ID, &product.Name, &desc, &product.Code, &category,
		&product.SalePrice, &product.Stock, &product.MinStock, &image, &product.Status,
		&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	product.Description = desc.String
	product.CategoryID = category.String
	product.ImageURL = image.String
	return &product, nil
}

// ---- HTTP handlers ----

func (s *ProductService) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	result, err := s.ListPaginated(ProductQuery{
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

func (s *ProductService) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

func (s *ProductService) GetProductByCode(w http.ResponseWriter, r *http.Request) {
	product, err := s.GetByCode(chi.URLParam(r, "codigo"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

func (s *ProductService) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductInput
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	product, err := s.Create(req)
	if err != nil {
		if apperrors.IsDuplicate(err) {
			SendErrorResponse(w, "El código ya existe. Por favor, usa un código diferente.", http.StatusConflict, nil)
			return
		}
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusCreated, product)
}

func (s *ProductService) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductUpdate
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	product, err := s.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		writeProductError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

func (s *ProductService) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(chi.URLParam(r, "id")); err != nil {
		writeProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ProductService) ToggleProductStatus(w http.ResponseWriter, r *http.Request) {
	product, err := s.ToggleStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeProductError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

func (s *ProductService) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := s.LowStock()
	if err != nil {
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, products)
}

func (s *ProductService) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, stats)
}

func (s *ProductService) AdjustProductStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock int `json:"stock_actual" validate:"gte=0"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	userID, _ := r.Context().Value("userID").(string)
	product, err := s.AdjustStock(chi.URLParam(r, "id"), req.Stock, userID)
	if err != nil {
		writeProductError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

func writeProductError(w http.ResponseWriter, err error) {
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
