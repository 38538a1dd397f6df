package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/metrics"
	"docguard/internal/repository"
	"docguard/internal/service"
)

// DocumentHandler mantiene dependencias para endpoints de documentos.
type DocumentHandler struct {
	logger    *zap.Logger
	docs      *service.DocumentService
	collector *metrics.Collector
	maxBytes  int64
}

// NewDocumentHandler crea una instancia de DocumentHandler con dependencias necesarias.
func NewDocumentHandler(logger *zap.Logger, docs *service.DocumentService, collector *metrics.Collector, maxUploadMB int64) *DocumentHandler {
	return &DocumentHandler{
		logger:    logger,
		docs:      docs,
		collector: collector,
		maxBytes:  maxUploadMB * 1024 * 1024,
	}
}

// Upload maneja POST /documents.
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if h.maxBytes > 0 && header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.logger.Error("read upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read file"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}
	contentType := header.Header.Get("Content-Type")

	doc, err := h.docs.Upload(c.Request.Context(), user, name, contentType, content, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, service.ErrEmptyDocument):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		default:
			h.logger.Error("upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not upload document"})
		}
		return
	}

	if h.collector != nil {
		h.collector.RecordUpload()
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// List maneja GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	filter := repository.DocumentFilter{
		Status:      domain.DocumentStatus(c.Query("status")),
		ContentType: c.Query("content_type"),
		Search:      c.Query("search"),
	}
	if filter.Status != "" && !domain.ValidDocumentStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	var err error
	if filter.DateFrom, err = parseDateQuery(c, "date_from"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from"})
		return
	}
	if filter.DateTo, err = parseDateQuery(c, "date_to"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to"})
		return
	}

	docs, err := h.docs.List(c.Request.Context(), user, filter)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get maneja GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	doc, err := h.docs.Get(c.Request.Context(), user, c.Param("id"), requestMeta(c))
	if err != nil {
		h.respondDocError(c, err, "get document failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// Content maneja GET /documents/:id/content.
func (h *DocumentHandler) Content(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	content, findings, err := h.docs.ContentWithFindings(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.respondDocError(c, err, "get content failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "findings": findings})
}

// Download maneja GET /documents/:id/download.
func (h *DocumentHandler) Download(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	doc, content, err := h.docs.Download(c.Request.Context(), user, c.Param("id"), requestMeta(c))
	if err != nil {
		h.respondDocError(c, err, "download failed")
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Data(http.StatusOK, contentType, content)
}

// Findings maneja GET /documents/:id/findings.
func (h *DocumentHandler) Findings(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	findings, err := h.docs.Findings(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.respondDocError(c, err, "get findings failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings})
}

// Permissions maneja GET /documents/:id/permissions.
func (h *DocumentHandler) Permissions(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	perms, err := h.docs.Permissions(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.respondDocError(c, err, "get permissions failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

// Share maneja POST /documents/:id/share.
func (h *DocumentHandler) Share(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
		Level   string   `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid share request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.docs.Share(c.Request.Context(), user, c.Param("id"), req.UserIDs, domain.PermissionLevel(req.Level), requestMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidLevel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission level"})
			return
		}
		h.respondDocError(c, err, "share failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePermissions maneja PUT /documents/:id/permissions.
func (h *DocumentHandler) UpdatePermissions(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Permissions []struct {
			UserID string `json:"user_id" binding:"required"`
			Level  string `json:"level" binding:"required"`
		} `json:"permissions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid permissions request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	perms := make([]domain.DocumentPermission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, domain.DocumentPermission{
			UserID: p.UserID,
			Level:  domain.PermissionLevel(p.Level),
		})
	}

	err := h.docs.UpdatePermissions(c.Request.Context(), user, c.Param("id"), perms, requestMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidLevel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission level"})
			return
		}
		h.respondDocError(c, err, "update permissions failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete maneja DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	user, ok := AuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.docs.Delete(c.Request.Context(), user, c.Param("id"), requestMeta(c)); err != nil {
		h.respondDocError(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) respondDocError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process document"})
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
