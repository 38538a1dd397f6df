package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docguard/internal/domain"
)

// DocumentFilter acota el listado de documentos visibles para un usuario.
type DocumentFilter struct {
	ViewerID      string
	ViewerIsAdmin bool
	Status        domain.DocumentStatus
	ContentType   string
	Search        string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// DocumentRepository define el contrato de persistencia para documentos y hallazgos.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document, content []byte) error
	GetByID(ctx context.Context, id string) (domain.Document, error)
	GetContent(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, processedAt *time.Time) error
	ReplaceFindings(ctx context.Context, documentID string, findings []domain.SensitiveFinding) error
	GetFindings(ctx context.Context, documentID string) ([]domain.SensitiveFinding, error)
	Delete(ctx context.Context, id string) error
}

// PgDocumentRepository implementa DocumentRepository usando pgxpool.
type PgDocumentRepository struct {
	pool *pgxpool.Pool
}

func NewPgDocumentRepository(pool *pgxpool.Pool) *PgDocumentRepository {
	return &PgDocumentRepository{pool: pool}
}

const documentColumns = `
	d.id, d.name, d.content_type, d.size, d.status,
	d.uploaded_by, u.display_name, u.email, d.uploaded_at, d.processed_at
`

func (r *PgDocumentRepository) Create(ctx context.Context, doc domain.Document, content []byte) error {
	const query = `
		INSERT INTO documents (id, name, content_type, size, status, content, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.Name,
		doc.ContentType,
		doc.Size,
		doc.Status,
		content,
		doc.UploadedBy,
		doc.UploadedAt,
	)
	return err
}

func (r *PgDocumentRepository) GetByID(ctx context.Context, id string) (domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		JOIN users u ON u.id = d.uploaded_by
		WHERE d.id = $1
	`
	var d domain.Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.ContentType,
		&d.Size,
		&d.Status,
		&d.UploadedBy,
		&d.UploaderName,
		&d.UploaderEmail,
		&d.UploadedAt,
		&d.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, err
	}
	return d, err
}

func (r *PgDocumentRepository) GetContent(ctx context.Context, id string) ([]byte, error) {
	const query = `SELECT content FROM documents WHERE id = $1`
	var content []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&content)
	return content, err
}

func (r *PgDocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]domain.Document, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.ViewerIsAdmin {
		p := arg(filter.ViewerID)
		conditions = append(conditions, fmt.Sprintf(
			"(d.uploaded_by = %s OR EXISTS (SELECT 1 FROM document_permissions dp WHERE dp.document_id = d.id AND dp.user_id = %s))",
			p, p,
		))
	}
	if filter.Status != "" {
		conditions = append(conditions, "d.status = "+arg(filter.Status))
	}
	if filter.ContentType != "" {
		conditions = append(conditions, "d.content_type = "+arg(filter.ContentType))
	}
	if filter.Search != "" {
		conditions = append(conditions, "d.name ILIKE "+arg("%"+filter.Search+"%"))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "d.uploaded_at >= "+arg(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "d.uploaded_at <= "+arg(*filter.DateTo))
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		JOIN users u ON u.id = d.uploaded_by
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY d.uploaded_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.ContentType,
			&d.Size,
			&d.Status,
			&d.UploadedBy,
			&d.UploaderName,
			&d.UploaderEmail,
			&d.UploadedAt,
			&d.ProcessedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PgDocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, processedAt *time.Time) error {
	const query = `UPDATE documents SET status = $2, processed_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status, processedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgDocumentRepository) ReplaceFindings(ctx context.Context, documentID string, findings []domain.SensitiveFinding) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM findings WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	const insert = `
		INSERT INTO findings (id, document_id, kind, content, page, x, y, width, height, confidence, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, f := range findings {
		if _, err := tx.Exec(ctx, insert,
			f.ID,
			documentID,
			f.Type,
			f.Content,
			f.Page,
			f.X,
			f.Y,
			f.Width,
			f.Height,
			f.Confidence,
			f.Severity,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgDocumentRepository) GetFindings(ctx context.Context, documentID string) ([]domain.SensitiveFinding, error) {
	const query = `
		SELECT id, document_id, kind, content, page, x, y, width, height, confidence, severity
		FROM findings
		WHERE document_id = $1
		ORDER BY page, y, x
	`
	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []domain.SensitiveFinding
	for rows.Next() {
		var f domain.SensitiveFinding
		if err := rows.Scan(
			&f.ID,
			&f.DocumentID,
			&f.Type,
			&f.Content,
			&f.Page,
			&f.X,
			&f.Y,
			&f.Width,
			&f.Height,
			&f.Confidence,
			&f.Severity,
		); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (r *PgDocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

var _ DocumentRepository = (*PgDocumentRepository)(nil)
