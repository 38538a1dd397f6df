package domain

import "time"

// DocumentStatus representa la fase del documento dentro del pipeline de escaneo.
type DocumentStatus string

const (
	StatusUploading         DocumentStatus = "uploading"
	StatusProcessing        DocumentStatus = "processing"
	StatusCompleted         DocumentStatus = "completed"
	StatusError             DocumentStatus = "error"
	StatusSensitiveDetected DocumentStatus = "sensitive_detected"
)

// Categorías de datos sensibles reportadas por el servicio de detección.
const (
	FindingPII          = "pii"
	FindingFinancial    = "financial"
	FindingMedical      = "medical"
	FindingConfidential = "confidential"
)

// Severidades asignadas a cada hallazgo.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type Document struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	ContentType   string         `json:"type"`
	Size          int64          `json:"size"`
	Status        DocumentStatus `json:"status"`
	UploadedBy    string         `json:"uploaded_by"`
	UploaderName  string         `json:"uploader_name,omitempty"`
	UploaderEmail string         `json:"uploader_email,omitempty"`
	UploadedAt    time.Time      `json:"uploaded_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}

// SensitiveFinding es un hallazgo precomputado: caja, confianza y severidad.
type SensitiveFinding struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"`
}

// ValidDocumentStatus valida los estados aceptados en filtros.
func ValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusError, StatusSensitiveDetected:
		return true
	}
	return false
}
