package models

import "time"

// Payment methods accepted at the register.
const (
	PaymentCash     = "efectivo"
	PaymentQR       = "qr"
	PaymentTransfer = "transferencia"
	PaymentCredit   = "credito"
)

// Sale states.
const (
	SaleCompleted = "completada"
	SalePending   = "pendiente" // credit sale with outstanding balance
	SaleCancelled = "anulada"
)

type Sale struct {
	ID            string     `json:"id" db:"id"`
	ClientID      string     `json:"id_cliente,omitempty" db:"id_cliente"`
	UserID        string     `json:"id_usuario" db:"id_usuario"`
	Date          string     `json:"fecha" db:"fecha"`
	Time          string     `json:"hora" db:"hora"`
	Total         float64    `json:"total" db:"total"`
	PaymentMethod string     `json:"metodo_pago" db:"metodo_pago"`
	Status        string     `json:"estado" db:"estado"`
	PendingAmount float64    `json:"saldo_pendiente" db:"saldo_pendiente"` // credit sales only
	Note          string     `json:"observacion,omitempty" db:"observacion"`
	Items         []SaleItem `json:"items,omitempty"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

type SaleItem struct {
	ID        string  `json:"id" db:"id"`
	SaleID    string  `json:"id_venta" db:"id_venta"`
	ProductID string  `json:"id_producto" db:"id_producto"`
	Quantity  int     `json:"cantidad" db:"cantidad"`
	UnitPrice float64 `json:"precio_unitario" db:"precio_unitario"`
	Subtotal  float64 `json:"subtotal" db:"subtotal"`
}

// CreditPayment is a partial payment (abono) against a credit sale.
type CreditPayment struct {
	ID        string    `json:"id" db:"id"`
	SaleID    string    `json:"id_venta" db:"id_venta"`
	Amount    float64   `json:"monto" db:"monto"`
	Date      string    `json:"fecha" db:"fecha"`
	UserID    string    `json:"id_usuario" db:"id_usuario"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
