package models

import "time"

// Service is a balance-bearing reseller account (mobile top-ups, utility
// payments). The running balance is derived from the movement ledger and
// the daily records; there is no cached balance column.
type Service struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"nombre" db:"nombre"`
	Description string    `json:"descripcion,omitempty" db:"descripcion"`
	Status      string    `json:"estado" db:"estado"` // activo | inactivo
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ServiceMovement is a balance-changing event for one service on one date.
// BalanceAfter = BalanceBefore + Amount holds at creation time; edits keep
// BalanceBefore untouched and recompute BalanceAfter only.
type ServiceMovement struct {
	ID            string    `json:"id" db:"id"`
	ServiceID     string    `json:"id_servicio" db:"id_servicio"`
	Type          string    `json:"tipo" db:"tipo"` // only 'aumento' today
	Amount        float64   `json:"monto" db:"monto"`
	BalanceBefore float64   `json:"saldo_anterior" db:"saldo_anterior"`
	BalanceAfter  float64   `json:"saldo_nuevo" db:"saldo_nuevo"`
	Date          string    `json:"fecha" db:"fecha"` // YYYY-MM-DD
	Time          string    `json:"hora" db:"hora"`   // HH:MM
	UserID        string    `json:"id_usuario" db:"id_usuario"`
	Note          string    `json:"observacion,omitempty" db:"observacion"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const MovementTypeIncrease = "aumento"

// DailyRecord is the opening/closing snapshot for one (service, date) pair.
// AmountIncreased is a cached copy of the same-day increase sum; the ledger
// remains the source of truth and every movement mutation refreshes it.
type DailyRecord struct {
	ID              string    `json:"id" db:"id"`
	ServiceID       string    `json:"id_servicio" db:"id_servicio"`
	Date            string    `json:"fecha" db:"fecha"`
	OpeningBalance  float64   `json:"saldo_inicial" db:"saldo_inicial"`
	ClosingBalance  float64   `json:"saldo_final" db:"saldo_final"`
	AmountIncreased float64   `json:"monto_aumentado" db:"monto_aumentado"`
	UserID          string    `json:"id_usuario" db:"id_usuario"`
	Note            string    `json:"observacion,omitempty" db:"observacion"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// NetTransacted is the funds paid out on the day: opening + increased - closing.
// Positive means balance left the account through sales.
func (r *DailyRecord) NetTransacted() float64 {
	return r.OpeningBalance + r.AmountIncreased - r.ClosingBalance
}

// ServiceDailyStatus pairs a service with its (optional) record for one date
// and the live increase sum recomputed from the ledger.
type ServiceDailyStatus struct {
	Service      Service      `json:"service"`
	Record       *DailyRecord `json:"record,omitempty"`
	SumIncreased float64      `json:"sumIncreased"`
}
