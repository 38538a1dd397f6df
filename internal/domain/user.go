package domain

import "time"

// Roles soportados por el portal.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	DisplayName      string     `json:"display_name,omitempty"`
	Role             string     `json:"role"`
	PasswordHash     string     `json:"-"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsAdmin indica si el usuario tiene rol de administrador.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
