package models

import "time"

// User roles.
const (
	RoleAdmin  = "admin"
	RoleSeller = "vendedor"
)

type User struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"nombre" db:"nombre"`
	Username  string     `json:"usuario" db:"usuario"`
	Role      string     `json:"rol" db:"rol"`
	Status    string     `json:"estado" db:"estado"`
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
