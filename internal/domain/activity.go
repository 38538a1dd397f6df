package domain

import "time"

// ActivityAction clasifica los eventos registrados en la bitácora.
type ActivityAction string

const (
	ActionUpload   ActivityAction = "upload"
	ActionDownload ActivityAction = "download"
	ActionShare    ActivityAction = "share"
	ActionDelete   ActivityAction = "delete"
	ActionView     ActivityAction = "view"
	ActionLogin    ActivityAction = "login"
	ActionLogout   ActivityAction = "logout"
)

type ActivityEntry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"user_id"`
	UserName     string         `json:"user_name,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	Action       ActivityAction `json:"action"`
	DocumentID   string         `json:"document_id,omitempty"`
	DocumentName string         `json:"document_name,omitempty"`
	Details      string         `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

// ValidActivityAction valida las acciones aceptadas en filtros.
func ValidActivityAction(a ActivityAction) bool {
	switch a {
	case ActionUpload, ActionDownload, ActionShare, ActionDelete, ActionView, ActionLogin, ActionLogout:
		return true
	}
	return false
}
