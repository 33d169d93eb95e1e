package models

import "time"

type Client struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"nombre" db:"nombre"`
	TaxID     string    `json:"ci_nit,omitempty" db:"ci_nit"`
	Phone     string    `json:"telefono,omitempty" db:"telefono"`
	Address   string    `json:"direccion,omitempty" db:"direccion"`
	Status    string    `json:"estado" db:"estado"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
