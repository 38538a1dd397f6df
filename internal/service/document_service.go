package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
)

// ScanQueue encola documentos para escaneo en segundo plano.
type ScanQueue interface {
	Enqueue(documentID string)
}

// DocumentService coordina subida, visibilidad y permisos de documentos.
type DocumentService struct {
	logger   *zap.Logger
	docs     repository.DocumentRepository
	perms    repository.PermissionRepository
	users    repository.UserRepository
	scans    ScanQueue
	activity *ActivityRecorder
	maxBytes int64
}

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyDocument    = errors.New("empty document")
	ErrInvalidLevel     = errors.New("invalid permission level")
)

func NewDocumentService(
	logger *zap.Logger,
	docs repository.DocumentRepository,
	perms repository.PermissionRepository,
	users repository.UserRepository,
	scans ScanQueue,
	activity *ActivityRecorder,
	maxBytes int64,
) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &DocumentService{
		logger:   logger,
		docs:     docs,
		perms:    perms,
		users:    users,
		scans:    scans,
		activity: activity,
		maxBytes: maxBytes,
	}
}

// RequestMeta acompaña cada operación con los datos del request que alimentan la bitácora.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func (s *DocumentService) Upload(ctx context.Context, owner domain.User, name, contentType string, content []byte, meta RequestMeta) (domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(content) == 0 {
		return domain.Document{}, ErrEmptyDocument
	}
	if int64(len(content)) > s.maxBytes {
		return domain.Document{}, ErrFileTooLarge
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	doc := domain.Document{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Status:      domain.StatusUploading,
		UploadedBy:  owner.ID,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc, content); err != nil {
		return domain.Document{}, err
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, nil); err != nil {
		if s.logger != nil {
			s.logger.Warn("mark document processing failed", zap.Error(err), zap.String("document_id", doc.ID))
		}
	} else {
		doc.Status = domain.StatusProcessing
	}
	if s.scans != nil {
		s.scans.Enqueue(doc.ID)
	}

	s.record(owner, domain.ActionUpload, doc, "document uploaded", meta)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, viewer domain.User, filter repository.DocumentFilter) ([]domain.Document, error) {
	filter.ViewerID = viewer.ID
	filter.ViewerIsAdmin = viewer.IsAdmin()
	return s.docs.List(ctx, filter)
}

func (s *DocumentService) Get(ctx context.Context, viewer domain.User, id string, meta RequestMeta) (domain.Document, error) {
	doc, err := s.authorize(ctx, viewer, id, domain.PermissionRead)
	if err != nil {
		return domain.Document{}, err
	}
	s.record(viewer, domain.ActionView, doc, "document viewed", meta)
	return doc, nil
}

// ContentWithFindings devuelve bytes y hallazgos para la vista de resaltado.
func (s *DocumentService) ContentWithFindings(ctx context.Context, viewer domain.User, id string) ([]byte, []domain.SensitiveFinding, error) {
	if _, err := s.authorize(ctx, viewer, id, domain.PermissionRead); err != nil {
		return nil, nil, err
	}
	content, err := s.docs.GetContent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	findings, err := s.docs.GetFindings(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return content, findings, nil
}

func (s *DocumentService) Download(ctx context.Context, viewer domain.User, id string, meta RequestMeta) (domain.Document, []byte, error) {
	doc, err := s.authorize(ctx, viewer, id, domain.PermissionRead)
	if err != nil {
		return domain.Document{}, nil, err
	}
	content, err := s.docs.GetContent(ctx, id)
	if err != nil {
		return domain.Document{}, nil, err
	}
	s.record(viewer, domain.ActionDownload, doc, "document downloaded", meta)
	return doc, content, nil
}

func (s *DocumentService) Findings(ctx context.Context, viewer domain.User, id string) ([]domain.SensitiveFinding, error) {
	if _, err := s.authorize(ctx, viewer, id, domain.PermissionRead); err != nil {
		return nil, err
	}
	return s.docs.GetFindings(ctx, id)
}

func (s *DocumentService) Permissions(ctx context.Context, viewer domain.User, id string) ([]domain.DocumentPermission, error) {
	if _, err := s.authorizeManage(ctx, viewer, id); err != nil {
		return nil, err
	}
	return s.perms.ListByDocument(ctx, id)
}

// Share otorga un nivel de acceso a una lista de usuarios.
func (s *DocumentService) Share(ctx context.Context, actor domain.User, id string, userIDs []string, level domain.PermissionLevel, meta RequestMeta) error {
	if !domain.ValidPermissionLevel(level) {
		return ErrInvalidLevel
	}
	doc, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" || userID == doc.UploadedBy {
			continue
		}
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		perm := domain.DocumentPermission{
			DocumentID: id,
			UserID:     userID,
			Level:      level,
			GrantedAt:  now,
			GrantedBy:  actor.ID,
		}
		if err := s.perms.Grant(ctx, perm); err != nil {
			return err
		}
	}

	s.record(actor, domain.ActionShare, doc, "document shared", meta)
	return nil
}

// UpdatePermissions reemplaza el conjunto completo de permisos del documento.
func (s *DocumentService) UpdatePermissions(ctx context.Context, actor domain.User, id string, perms []domain.DocumentPermission, meta RequestMeta) error {
	doc, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range perms {
		if !domain.ValidPermissionLevel(perms[i].Level) {
			return ErrInvalidLevel
		}
		perms[i].DocumentID = id
		if perms[i].GrantedAt.IsZero() {
			perms[i].GrantedAt = now
		}
		if perms[i].GrantedBy == "" {
			perms[i].GrantedBy = actor.ID
		}
	}
	if err := s.perms.Replace(ctx, id, perms); err != nil {
		return err
	}

	s.record(actor, domain.ActionShare, doc, "permissions updated", meta)
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, actor domain.User, id string, meta RequestMeta) error {
	doc, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}
	s.record(actor, domain.ActionDelete, doc, "document deleted", meta)
	return nil
}

// authorize resuelve el documento y verifica el nivel mínimo requerido.
func (s *DocumentService) authorize(ctx context.Context, viewer domain.User, id string, required domain.PermissionLevel) (domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{}, ErrDocumentNotFound
		}
		return domain.Document{}, err
	}
	if viewer.IsAdmin() || doc.UploadedBy == viewer.ID {
		return doc, nil
	}
	level, err := s.perms.GetLevel(ctx, id, viewer.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{}, ErrPermissionDenied
		}
		return domain.Document{}, err
	}
	if !level.Covers(required) {
		return domain.Document{}, ErrPermissionDenied
	}
	return doc, nil
}

// authorizeManage exige ser admin del portal, dueño o tener permiso admin sobre el documento.
func (s *DocumentService) authorizeManage(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	return s.authorize(ctx, actor, id, domain.PermissionAdmin)
}

func (s *DocumentService) record(user domain.User, action domain.ActivityAction, doc domain.Document, details string, meta RequestMeta) {
	if s.activity == nil {
		return
	}
	s.activity.Record(domain.ActivityEntry{
		UserID:       user.ID,
		UserName:     user.DisplayName,
		UserEmail:    user.Email,
		Action:       action,
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
}
