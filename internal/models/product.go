package models

import "time"

type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"nombre" db:"nombre"`
	Description string    `json:"descripcion,omitempty" db:"descripcion"`
	Code        string    `json:"codigo" db:"codigo"`
	CategoryID  string    `json:"id_categoria,omitempty" db:"id_categoria"`
	SalePrice   float64   `json:"precio_venta" db:"precio_venta"`
	Stock       int       `json:"stock_actual" db:"stock_actual"`
	MinStock    int       `json:"stock_minimo" db:"stock_minimo"`
	ImageURL    string    `json:"imagen_url,omitempty" db:"imagen_url"`
	Status      string    `json:"estado" db:"estado"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryMovement records a stock entry/exit (manual adjustments, sales).
type InventoryMovement struct {
	ID        string    `json:"id" db:"id"`
	ProductID string    `json:"id_producto" db:"id_producto"`
	Type      string    `json:"tipo_movimiento" db:"tipo_movimiento"` // entrada | salida
	Quantity  int       `json:"cantidad" db:"cantidad"`
	Reason    string    `json:"motivo" db:"motivo"` // ajuste | venta | anulacion
	Date      string    `json:"fecha" db:"fecha"`
	UserID    string    `json:"id_usuario,omitempty" db:"id_usuario"`
	Note      string    `json:"observacion,omitempty" db:"observacion"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ProductStats struct {
	Total    int `json:"total"`
	Active   int `json:"activos"`
	LowStock int `json:"stockBajo"`
}
