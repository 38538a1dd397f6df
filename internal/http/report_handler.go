package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/service"
)

// ReportHandler mantiene dependencias para endpoints de reportes.
type ReportHandler struct {
	logger  *zap.Logger
	reports *service.ReportService
}

// NewReportHandler crea una instancia de ReportHandler con dependencias necesarias.
func NewReportHandler(logger *zap.Logger, reports *service.ReportService) *ReportHandler {
	return &ReportHandler{logger: logger, reports: reports}
}

// Stats maneja GET /reports/stats.
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("report stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Activity maneja GET /reports/activity.
func (h *ReportHandler) Activity(c *gin.Context) {
	filters, err := activityFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 50)

	entries, total, err := h.reports.ActivityLogs(c.Request.Context(), filters, page, limit)
	if err != nil {
		h.logger.Error("report activity failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Export maneja GET /reports/export.
func (h *ReportHandler) Export(c *gin.Context) {
	kind := c.DefaultQuery("kind", "stats")
	filters, err := activityFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.reports.ExportCSV(c.Request.Context(), kind, filters)
	if err != nil {
		if errors.Is(err, service.ErrUnknownExportKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown export kind"})
			return
		}
		h.logger.Error("report export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not export report"})
		return
	}

	filename := fmt.Sprintf("docguard-%s-%s.csv", kind, time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

func activityFilters(c *gin.Context) (domain.ReportFilters, error) {
	filters := domain.ReportFilters{
		UserID:     c.Query("user_id"),
		Action:     domain.ActivityAction(c.Query("action")),
		DocumentID: c.Query("document_id"),
	}
	if filters.Action != "" && !domain.ValidActivityAction(filters.Action) {
		return domain.ReportFilters{}, errors.New("invalid action")
	}
	var err error
	if filters.DateFrom, err = parseDateQuery(c, "date_from"); err != nil {
		return domain.ReportFilters{}, errors.New("invalid date_from")
	}
	if filters.DateTo, err = parseDateQuery(c, "date_to"); err != nil {
		return domain.ReportFilters{}, errors.New("invalid date_to")
	}
	return filters, nil
}
