package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
)

type mockDocumentRepo struct {
	docs     map[string]domain.Document
	contents map[string][]byte
	findings map[string][]domain.SensitiveFinding
	statuses []domain.DocumentStatus
	deleted  []string
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{
		docs:     make(map[string]domain.Document),
		contents: make(map[string][]byte),
		findings: make(map[string][]domain.SensitiveFinding),
	}
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc domain.Document, content []byte) error {
	m.docs[doc.ID] = doc
	m.contents[doc.ID] = content
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id string) (domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, pgx.ErrNoRows
	}
	return doc, nil
}

func (m *mockDocumentRepo) GetContent(ctx context.Context, id string) ([]byte, error) {
	content, ok := m.contents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return content, nil
}

func (m *mockDocumentRepo) List(ctx context.Context, filter repository.DocumentFilter) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range m.docs {
		if !filter.ViewerIsAdmin && filter.ViewerID != "" && doc.UploadedBy != filter.ViewerID {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, processedAt *time.Time) error {
	doc, ok := m.docs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	doc.Status = status
	m.docs[id] = doc
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockDocumentRepo) ReplaceFindings(ctx context.Context, documentID string, findings []domain.SensitiveFinding) error {
	m.findings[documentID] = findings
	return nil
}

func (m *mockDocumentRepo) GetFindings(ctx context.Context, documentID string) ([]domain.SensitiveFinding, error) {
	return m.findings[documentID], nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.docs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPermissionRepo struct {
	levels   map[string]domain.PermissionLevel // clave documentID:userID
	granted  []domain.DocumentPermission
	replaced map[string][]domain.DocumentPermission
}

func newMockPermissionRepo() *mockPermissionRepo {
	return &mockPermissionRepo{
		levels:   make(map[string]domain.PermissionLevel),
		replaced: make(map[string][]domain.DocumentPermission),
	}
}

func (m *mockPermissionRepo) key(documentID, userID string) string {
	return documentID + ":" + userID
}

func (m *mockPermissionRepo) Grant(ctx context.Context, perm domain.DocumentPermission) error {
	m.granted = append(m.granted, perm)
	m.levels[m.key(perm.DocumentID, perm.UserID)] = perm.Level
	return nil
}

func (m *mockPermissionRepo) Replace(ctx context.Context, documentID string, perms []domain.DocumentPermission) error {
	m.replaced[documentID] = perms
	return nil
}

func (m *mockPermissionRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPermission, error) {
	var out []domain.DocumentPermission
	for _, perm := range m.granted {
		if perm.DocumentID == documentID {
			out = append(out, perm)
		}
	}
	return out, nil
}

func (m *mockPermissionRepo) GetLevel(ctx context.Context, documentID, userID string) (domain.PermissionLevel, error) {
	level, ok := m.levels[m.key(documentID, userID)]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return level, nil
}

type mockScanQueue struct {
	enqueued []string
}

func (m *mockScanQueue) Enqueue(documentID string) {
	m.enqueued = append(m.enqueued, documentID)
}

type docFixture struct {
	svc   *DocumentService
	docs  *mockDocumentRepo
	perms *mockPermissionRepo
	users *mockUserRepo
	scans *mockScanQueue
}

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()
	docs := newMockDocumentRepo()
	perms := newMockPermissionRepo()
	users := newMockUserRepo()
	scans := &mockScanQueue{}
	svc := NewDocumentService(zap.NewNop(), docs, perms, users, scans, nil, 1<<20)
	return &docFixture{svc: svc, docs: docs, perms: perms, users: users, scans: scans}
}

func docOwner() domain.User {
	return domain.User{ID: "owner", Email: "owner@example.com", Role: domain.RoleUser}
}

func docAdmin() domain.User {
	return domain.User{ID: "admin", Email: "admin@example.com", Role: domain.RoleAdmin}
}

func docStranger() domain.User {
	return domain.User{ID: "stranger", Email: "other@example.com", Role: domain.RoleUser}
}

func (f *docFixture) seedDocument(t *testing.T) domain.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), docOwner(), "report.pdf", "application/pdf", []byte("contenido"), RequestMeta{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return doc
}

func TestDocumentService_UploadLifecycle(t *testing.T) {
	f := newDocFixture(t)

	doc := f.seedDocument(t)
	if doc.Status != domain.StatusProcessing {
		t.Fatalf("expected processing status, got %q", doc.Status)
	}
	if doc.Size != int64(len("contenido")) {
		t.Fatalf("unexpected size %d", doc.Size)
	}
	if len(f.scans.enqueued) != 1 || f.scans.enqueued[0] != doc.ID {
		t.Fatalf("expected document enqueued for scan")
	}
	if !bytes.Equal(f.docs.contents[doc.ID], []byte("contenido")) {
		t.Fatalf("expected content persisted")
	}
	// La transición uploading -> processing queda registrada.
	if len(f.docs.statuses) != 1 || f.docs.statuses[0] != domain.StatusProcessing {
		t.Fatalf("unexpected status transitions: %v", f.docs.statuses)
	}
}

func TestDocumentService_UploadValidation(t *testing.T) {
	f := newDocFixture(t)

	if _, err := f.svc.Upload(context.Background(), docOwner(), "", "text/plain", []byte("x"), RequestMeta{}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected empty document for blank name, got %v", err)
	}
	if _, err := f.svc.Upload(context.Background(), docOwner(), "a.txt", "text/plain", nil, RequestMeta{}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected empty document for no content, got %v", err)
	}
	big := make([]byte, (1<<20)+1)
	if _, err := f.svc.Upload(context.Background(), docOwner(), "a.txt", "text/plain", big, RequestMeta{}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
}

func TestDocumentService_AccessMatrix(t *testing.T) {
	f := newDocFixture(t)
	doc := f.seedDocument(t)

	if _, err := f.svc.Get(context.Background(), docOwner(), doc.ID, RequestMeta{}); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), docAdmin(), doc.ID, RequestMeta{}); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), docStranger(), doc.ID, RequestMeta{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected stranger denied, got %v", err)
	}

	// Con permiso read el tercero puede leer pero no administrar.
	f.perms.levels[f.perms.key(doc.ID, "stranger")] = domain.PermissionRead
	if _, err := f.svc.Get(context.Background(), docStranger(), doc.ID, RequestMeta{}); err != nil {
		t.Fatalf("stranger with read: %v", err)
	}
	if err := f.svc.Delete(context.Background(), docStranger(), doc.ID, RequestMeta{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected manage denied with read level, got %v", err)
	}

	// Con permiso admin sobre el documento puede administrar.
	f.perms.levels[f.perms.key(doc.ID, "stranger")] = domain.PermissionAdmin
	if err := f.svc.Delete(context.Background(), docStranger(), doc.ID, RequestMeta{}); err != nil {
		t.Fatalf("stranger with doc admin: %v", err)
	}
}

func TestDocumentService_GetNotFound(t *testing.T) {
	f := newDocFixture(t)

	if _, err := f.svc.Get(context.Background(), docAdmin(), "missing", RequestMeta{}); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDocumentService_ShareValidatesUsersAndLevel(t *testing.T) {
	f := newDocFixture(t)
	doc := f.seedDocument(t)
	f.users.add(domain.User{ID: "colleague", Email: "c@example.com", Username: "colleague", Role: domain.RoleUser})

	if err := f.svc.Share(context.Background(), docOwner(), doc.ID, []string{"colleague"}, "superpowers", RequestMeta{}); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected invalid level, got %v", err)
	}
	if err := f.svc.Share(context.Background(), docOwner(), doc.ID, []string{"ghost"}, domain.PermissionRead, RequestMeta{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected unknown user rejected, got %v", err)
	}

	if err := f.svc.Share(context.Background(), docOwner(), doc.ID, []string{"colleague", "owner"}, domain.PermissionWrite, RequestMeta{}); err != nil {
		t.Fatalf("share: %v", err)
	}
	// El dueño no se comparte a sí mismo.
	if len(f.perms.granted) != 1 {
		t.Fatalf("expected one grant, got %d", len(f.perms.granted))
	}
	if f.perms.granted[0].UserID != "colleague" || f.perms.granted[0].Level != domain.PermissionWrite {
		t.Fatalf("unexpected grant: %+v", f.perms.granted[0])
	}
}

func TestDocumentService_ShareRequiresManage(t *testing.T) {
	f := newDocFixture(t)
	doc := f.seedDocument(t)
	f.users.add(domain.User{ID: "colleague", Email: "c@example.com", Username: "colleague", Role: domain.RoleUser})

	err := f.svc.Share(context.Background(), docStranger(), doc.ID, []string{"colleague"}, domain.PermissionRead, RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestDocumentService_UpdatePermissionsReplacesSet(t *testing.T) {
	f := newDocFixture(t)
	doc := f.seedDocument(t)

	perms := []domain.DocumentPermission{
		{UserID: "a", Level: domain.PermissionRead},
		{UserID: "b", Level: domain.PermissionAdmin},
	}
	if err := f.svc.UpdatePermissions(context.Background(), docOwner(), doc.ID, perms, RequestMeta{}); err != nil {
		t.Fatalf("update permissions: %v", err)
	}

	replaced := f.perms.replaced[doc.ID]
	if len(replaced) != 2 {
		t.Fatalf("expected replaced set of 2, got %d", len(replaced))
	}
	for _, perm := range replaced {
		if perm.DocumentID != doc.ID || perm.GrantedBy != "owner" || perm.GrantedAt.IsZero() {
			t.Fatalf("expected normalized permission, got %+v", perm)
		}
	}

	bad := []domain.DocumentPermission{{UserID: "a", Level: "root"}}
	if err := f.svc.UpdatePermissions(context.Background(), docOwner(), doc.ID, bad, RequestMeta{}); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected invalid level, got %v", err)
	}
}

func TestDocumentService_ListScopesToViewer(t *testing.T) {
	f := newDocFixture(t)
	f.seedDocument(t)

	docs, err := f.svc.List(context.Background(), docStranger(), repository.DocumentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected stranger to see nothing, got %d", len(docs))
	}

	docs, err = f.svc.List(context.Background(), docAdmin(), repository.DocumentFilter{})
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected admin to see all, got %d", len(docs))
	}
}

func TestDocumentService_DownloadReturnsContent(t *testing.T) {
	f := newDocFixture(t)
	doc := f.seedDocument(t)

	got, content, err := f.svc.Download(context.Background(), docOwner(), doc.ID, RequestMeta{})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got.ID != doc.ID {
		t.Fatalf("unexpected document: %+v", got)
	}
	if !bytes.Equal(content, []byte("contenido")) {
		t.Fatalf("unexpected content: %q", content)
	}
}
