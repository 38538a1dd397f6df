package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"docguard/internal/domain"
)

// ActivityRepository define el contrato de persistencia para la bitácora.
type ActivityRepository interface {
	Insert(ctx context.Context, entry domain.ActivityEntry) error
	List(ctx context.Context, filters domain.ReportFilters, page, limit int) ([]domain.ActivityEntry, int, error)
}

// PgActivityRepository implementa ActivityRepository usando pgxpool.
type PgActivityRepository struct {
	pool *pgxpool.Pool
}

func NewPgActivityRepository(pool *pgxpool.Pool) *PgActivityRepository {
	return &PgActivityRepository{pool: pool}
}

func (r *PgActivityRepository) Insert(ctx context.Context, entry domain.ActivityEntry) error {
	const query = `
		INSERT INTO activity_log (id, ts, user_id, action, document_id, document_name, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.UserID,
		entry.Action,
		entry.DocumentID,
		entry.DocumentName,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
	)
	return err
}

func (r *PgActivityRepository) List(ctx context.Context, filters domain.ReportFilters, page, limit int) ([]domain.ActivityEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.DateFrom != nil {
		conditions = append(conditions, "a.ts >= "+arg(*filters.DateFrom))
	}
	if filters.DateTo != nil {
		conditions = append(conditions, "a.ts <= "+arg(*filters.DateTo))
	}
	if filters.UserID != "" {
		conditions = append(conditions, "a.user_id = "+arg(filters.UserID))
	}
	if filters.Action != "" {
		conditions = append(conditions, "a.action = "+arg(filters.Action))
	}
	if filters.DocumentID != "" {
		conditions = append(conditions, "a.document_id = "+arg(filters.DocumentID))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM activity_log a` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT a.id, a.ts, a.user_id, u.display_name, u.email, a.action,
		       COALESCE(a.document_id::text, ''), a.document_name, a.details, a.ip_address, a.user_agent
		FROM activity_log a
		JOIN users u ON u.id = a.user_id
	` + where + fmt.Sprintf(" ORDER BY a.ts DESC LIMIT %s OFFSET %s", arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.UserID,
			&e.UserName,
			&e.UserEmail,
			&e.Action,
			&e.DocumentID,
			&e.DocumentName,
			&e.Details,
			&e.IPAddress,
			&e.UserAgent,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

var _ ActivityRepository = (*PgActivityRepository)(nil)
