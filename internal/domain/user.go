package domain

import (
	"time"
)

// User represents a registered account. Accounts are created by signup and
// updated through the profile endpoint; they are never deleted.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
