package model

import "time"

// AdminUser is an administrative account persisted in the admin_users table.
// Passwords are stored as bcrypt hashes and never leave the service layer.
type AdminUser struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// PublicAdmin is the sanitized view of an AdminUser returned to callers.
// It has no field for the password hash at all.
type PublicAdmin struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Public returns the sanitized view of the admin.
func (a *AdminUser) Public() *PublicAdmin {
	if a == nil {
		return nil
	}
	return &PublicAdmin{
		ID:        a.ID,
		Email:     a.Email,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}
