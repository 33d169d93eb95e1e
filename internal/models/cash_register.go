package models

import "time"

// CashRegister is one day's cash reconciliation (arqueo de caja).
// Difference = counted cash - (opening amount + day's sales).
type CashRegister struct {
	ID            string    `json:"id" db:"id"`
	Date          string    `json:"fecha" db:"fecha"`
	OpeningTime   string    `json:"hora_apertura" db:"hora_apertura"`
	ClosingTime   string    `json:"hora_cierre,omitempty" db:"hora_cierre"`
	OpeningAmount float64   `json:"monto_inicial" db:"monto_inicial"`
	SalesTotal    float64   `json:"total_ventas" db:"total_ventas"`
	CountedCash   *float64  `json:"efectivo_real" db:"efectivo_real"`
	Difference    float64   `json:"diferencia" db:"diferencia"`
	AdminID       string    `json:"id_administrador" db:"id_administrador"`
	Note          string    `json:"observacion,omitempty" db:"observacion"`
	Status        string    `json:"estado" db:"estado"` // abierto | cerrado
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

const (
	RegisterOpen   = "abierto"
	RegisterClosed = "cerrado"
)
