package domain

import "time"

// PermissionLevel define el nivel de acceso otorgado sobre un documento.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

type DocumentPermission struct {
	DocumentID string          `json:"document_id"`
	UserID     string          `json:"user_id"`
	UserEmail  string          `json:"user_email,omitempty"`
	UserName   string          `json:"user_name,omitempty"`
	Level      PermissionLevel `json:"permission"`
	GrantedAt  time.Time       `json:"granted_at"`
	GrantedBy  string          `json:"granted_by"`
}

// ValidPermissionLevel valida los niveles aceptados al compartir.
func ValidPermissionLevel(l PermissionLevel) bool {
	switch l {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// Covers indica si el nivel otorgado cubre el nivel requerido.
func (l PermissionLevel) Covers(required PermissionLevel) bool {
	rank := map[PermissionLevel]int{
		PermissionRead:  1,
		PermissionWrite: 2,
		PermissionAdmin: 3,
	}
	return rank[l] >= rank[required]
}
