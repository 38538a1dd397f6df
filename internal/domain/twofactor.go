package domain

import "time"

// TwoFactorChallenge es el registro efímero entre un login que exige 2FA
// y la verificación del código enviado al usuario.
type TwoFactorChallenge struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CodeHash  string    `json:"code_hash"`
	Attempts  int       `json:"attempts"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired indica si el desafío superó su ventana de validez.
func (c TwoFactorChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
