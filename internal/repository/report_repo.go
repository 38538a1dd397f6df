package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"docguard/internal/domain"
)

// ReportRepository expone los agregados que alimentan el panel de reportes.
type ReportRepository interface {
	CountDocuments(ctx context.Context) (int, error)
	CountDocumentsWithFindings(ctx context.Context) (int, error)
	CountUploadsSince(ctx context.Context, since time.Time) (int, error)
	FindingsByType(ctx context.Context) (map[string]int, error)
	DocumentsByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)
	UploadTrend(ctx context.Context, days int) ([]domain.UploadTrendPoint, error)
	TopUsers(ctx context.Context, limit int) ([]domain.TopUser, error)
}

// PgReportRepository implementa ReportRepository usando pgxpool.
type PgReportRepository struct {
	pool *pgxpool.Pool
}

func NewPgReportRepository(pool *pgxpool.Pool) *PgReportRepository {
	return &PgReportRepository{pool: pool}
}

func (r *PgReportRepository) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (r *PgReportRepository) CountDocumentsWithFindings(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT document_id) FROM findings`).Scan(&n)
	return n, err
}

func (r *PgReportRepository) CountUploadsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE uploaded_at >= $1`, since).Scan(&n)
	return n, err
}

func (r *PgReportRepository) FindingsByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT kind, COUNT(*) FROM findings GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func (r *PgReportRepository) DocumentsByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.DocumentStatus]int)
	for rows.Next() {
		var status domain.DocumentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *PgReportRepository) UploadTrend(ctx context.Context, days int) ([]domain.UploadTrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	const query = `
		SELECT to_char(date_trunc('day', uploaded_at), 'YYYY-MM-DD') AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'sensitive_detected')
		FROM documents
		WHERE uploaded_at >= now() - make_interval(days => $1)
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trend []domain.UploadTrendPoint
	for rows.Next() {
		var p domain.UploadTrendPoint
		if err := rows.Scan(&p.Date, &p.Uploads, &p.SensitiveDetected); err != nil {
			return nil, err
		}
		trend = append(trend, p)
	}
	return trend, rows.Err()
}

func (r *PgReportRepository) TopUsers(ctx context.Context, limit int) ([]domain.TopUser, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
		SELECT u.id, u.display_name, u.email,
		       COUNT(d.id),
		       COALESCE(SUM((SELECT COUNT(*) FROM findings f WHERE f.document_id = d.id)), 0)
		FROM users u
		JOIN documents d ON d.uploaded_by = u.id
		GROUP BY u.id, u.display_name, u.email
		ORDER BY COUNT(d.id) DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []domain.TopUser
	for rows.Next() {
		var t domain.TopUser
		if err := rows.Scan(&t.UserID, &t.UserName, &t.UserEmail, &t.DocumentCount, &t.SensitiveDataCount); err != nil {
			return nil, err
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

var _ ReportRepository = (*PgReportRepository)(nil)
