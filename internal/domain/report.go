package domain

import "time"

// ReportStats agrega los totales que alimentan el panel de reportes.
type ReportStats struct {
	TotalDocuments             int                    `json:"total_documents"`
	DocumentsWithSensitiveData int                    `json:"documents_with_sensitive_data"`
	TotalUsers                 int                    `json:"total_users"`
	UploadsThisMonth           int                    `json:"uploads_this_month"`
	SensitiveDataByType        map[string]int         `json:"sensitive_data_by_type"`
	DocumentsByStatus          map[DocumentStatus]int `json:"documents_by_status"`
	UploadTrend                []UploadTrendPoint     `json:"upload_trend"`
	TopUsers                   []TopUser              `json:"top_users"`
}

type UploadTrendPoint struct {
	Date              string `json:"date"`
	Uploads           int    `json:"uploads"`
	SensitiveDetected int    `json:"sensitive_detected"`
}

type TopUser struct {
	UserID             string `json:"user_id"`
	UserName           string `json:"user_name"`
	UserEmail          string `json:"user_email"`
	DocumentCount      int    `json:"document_count"`
	SensitiveDataCount int    `json:"sensitive_data_count"`
}

// ReportFilters acota estadísticas y bitácora por fecha, usuario o acción.
type ReportFilters struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	UserID     string
	Action     ActivityAction
	DocumentID string
}
