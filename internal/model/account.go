package model

import "time"

// Account is a registered chat user, keyed by login
type Account struct {
	Login        string    `json:"login"`         // unique, immutable
	PasswordHash string    `json:"password_hash"` // bcrypt hash
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
