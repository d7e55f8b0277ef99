// internal/domain/user.go
package domain

import (
	"time"
)

// Role определяет уровень доступа пользователя
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	RoleSuper  Role = "super"
)

// Valid сообщает, является ли роль одной из известных
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleSuper:
		return true
	}
	return false
}

// IsStaff — admin или super
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuper
}

// User представляет модель пользователя в системе.
// Соответствует таблице 'users' в базе данных.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ClientSummary — клиент вместе с названиями назначенных ему галерей
type ClientSummary struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Galleries []string  `json:"galleries"`
}

// Identity — проверенная личность из токена. Ядро доверяет этой паре и больше ничего не проверяет.
type Identity struct {
	UserID int64
	Role   Role
}
