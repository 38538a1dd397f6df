package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
	"docguard/internal/service"
)

type mockDocRepo struct {
	docs     map[string]domain.Document
	contents map[string][]byte
	findings map[string][]domain.SensitiveFinding
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{
		docs:     make(map[string]domain.Document),
		contents: make(map[string][]byte),
		findings: make(map[string][]domain.SensitiveFinding),
	}
}

func (m *mockDocRepo) Create(_ context.Context, doc domain.Document, content []byte) error {
	m.docs[doc.ID] = doc
	m.contents[doc.ID] = content
	return nil
}

func (m *mockDocRepo) GetByID(_ context.Context, id string) (domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, pgx.ErrNoRows
	}
	return doc, nil
}

func (m *mockDocRepo) GetContent(_ context.Context, id string) ([]byte, error) {
	content, ok := m.contents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return content, nil
}

func (m *mockDocRepo) List(_ context.Context, filter repository.DocumentFilter) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range m.docs {
		if !filter.ViewerIsAdmin && doc.UploadedBy != filter.ViewerID {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *mockDocRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, _ *time.Time) error {
	doc, ok := m.docs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	doc.Status = status
	m.docs[id] = doc
	return nil
}

func (m *mockDocRepo) ReplaceFindings(_ context.Context, documentID string, findings []domain.SensitiveFinding) error {
	m.findings[documentID] = findings
	return nil
}

func (m *mockDocRepo) GetFindings(_ context.Context, documentID string) ([]domain.SensitiveFinding, error) {
	return m.findings[documentID], nil
}

func (m *mockDocRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}

type mockPermRepo struct {
	levels map[string]domain.PermissionLevel
}

func newMockPermRepo() *mockPermRepo {
	return &mockPermRepo{levels: make(map[string]domain.PermissionLevel)}
}

func (m *mockPermRepo) Grant(_ context.Context, perm domain.DocumentPermission) error {
	m.levels[perm.DocumentID+":"+perm.UserID] = perm.Level
	return nil
}

func (m *mockPermRepo) Replace(_ context.Context, documentID string, perms []domain.DocumentPermission) error {
	for _, perm := range perms {
		m.levels[documentID+":"+perm.UserID] = perm.Level
	}
	return nil
}

func (m *mockPermRepo) ListByDocument(_ context.Context, documentID string) ([]domain.DocumentPermission, error) {
	return nil, nil
}

func (m *mockPermRepo) GetLevel(_ context.Context, documentID, userID string) (domain.PermissionLevel, error) {
	level, ok := m.levels[documentID+":"+userID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return level, nil
}

type noScanQueue struct{}

func (noScanQueue) Enqueue(string) {}

type docHandlerFixture struct {
	router *gin.Engine
	repo   *mockDocRepo
	jwtSvc *service.JWTService
}

func newDocHandlerFixture(t *testing.T) *docHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	docRepo := newMockDocRepo()
	permRepo := newMockPermRepo()
	userRepo := newMockUserRepo()

	docSvc := service.NewDocumentService(logger, docRepo, permRepo, userRepo, noScanQueue{}, nil, 1<<20)
	jwtSvc := newTestJWTService()
	handler := NewDocumentHandler(logger, docSvc, nil, 1)

	r := gin.New()
	docs := r.Group("/documents", JWTAuthMiddleware(jwtSvc))
	docs.POST("", handler.Upload)
	docs.GET("", handler.List)
	docs.GET("/:id", handler.Get)
	docs.GET("/:id/download", handler.Download)
	docs.DELETE("/:id", handler.Delete)

	return &docHandlerFixture{router: r, repo: docRepo, jwtSvc: jwtSvc}
}

func (f *docHandlerFixture) token(t *testing.T, user domain.User) string {
	t.Helper()
	pair, err := f.jwtSvc.GeneratePair(user)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	return pair.AccessToken
}

func (f *docHandlerFixture) upload(t *testing.T, bearer, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func portalUser() domain.User {
	return domain.User{ID: "u1", Email: "user@example.com", Username: "user", Role: domain.RoleUser}
}

func TestDocumentHandler_UploadAndGet(t *testing.T) {
	f := newDocHandlerFixture(t)
	bearer := f.token(t, portalUser())

	rec := f.upload(t, bearer, "report.pdf", []byte("contenido"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Document domain.Document `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Document.Name != "report.pdf" || resp.Document.Status != domain.StatusProcessing {
		t.Fatalf("unexpected document: %+v", resp.Document)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+resp.Document.ID, nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	getRec := httptest.NewRecorder()
	f.router.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
}

func TestDocumentHandler_UploadRequiresFile(t *testing.T) {
	f := newDocHandlerFixture(t)
	bearer := f.token(t, portalUser())

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDocumentHandler_ForeignDocumentHidden(t *testing.T) {
	f := newDocHandlerFixture(t)
	owner := f.token(t, portalUser())

	rec := f.upload(t, owner, "report.pdf", []byte("contenido"))
	var resp struct {
		Document domain.Document `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	stranger := f.token(t, domain.User{ID: "u2", Email: "other@example.com", Username: "other", Role: domain.RoleUser})
	req := httptest.NewRequest(http.MethodGet, "/documents/"+resp.Document.ID, nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	getRec := httptest.NewRecorder()
	f.router.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", getRec.Code)
	}

	// También queda fuera del listado del tercero.
	listReq := httptest.NewRequest(http.MethodGet, "/documents", nil)
	listReq.Header.Set("Authorization", "Bearer "+stranger)
	listRec := httptest.NewRecorder()
	f.router.ServeHTTP(listRec, listReq)
	var listResp struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Documents) != 0 {
		t.Fatalf("expected empty list, got %d", len(listResp.Documents))
	}
}

func TestDocumentHandler_DownloadSetsAttachment(t *testing.T) {
	f := newDocHandlerFixture(t)
	bearer := f.token(t, portalUser())

	rec := f.upload(t, bearer, "report.pdf", []byte("contenido"))
	var resp struct {
		Document domain.Document `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+resp.Document.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	dlRec := httptest.NewRecorder()
	f.router.ServeHTTP(dlRec, req)

	if dlRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", dlRec.Code)
	}
	if !bytes.Equal(dlRec.Body.Bytes(), []byte("contenido")) {
		t.Fatalf("unexpected body: %q", dlRec.Body.String())
	}
	if cd := dlRec.Header().Get("Content-Disposition"); cd == "" {
		t.Fatalf("expected attachment disposition")
	}
}

func TestDocumentHandler_DeleteNotFound(t *testing.T) {
	f := newDocHandlerFixture(t)
	bearer := f.token(t, portalUser())

	req := httptest.NewRequest(http.MethodDelete, "/documents/missing", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
