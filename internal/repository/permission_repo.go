package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docguard/internal/domain"
)

// PermissionRepository define el contrato de persistencia para permisos de documentos.
type PermissionRepository interface {
	Grant(ctx context.Context, perm domain.DocumentPermission) error
	Replace(ctx context.Context, documentID string, perms []domain.DocumentPermission) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPermission, error)
	GetLevel(ctx context.Context, documentID, userID string) (domain.PermissionLevel, error)
}

// PgPermissionRepository implementa PermissionRepository usando pgxpool.
type PgPermissionRepository struct {
	pool *pgxpool.Pool
}

func NewPgPermissionRepository(pool *pgxpool.Pool) *PgPermissionRepository {
	return &PgPermissionRepository{pool: pool}
}

func (r *PgPermissionRepository) Grant(ctx context.Context, perm domain.DocumentPermission) error {
	const query = `
		INSERT INTO document_permissions (document_id, user_id, level, granted_at, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, user_id)
		DO UPDATE SET level = EXCLUDED.level, granted_at = EXCLUDED.granted_at, granted_by = EXCLUDED.granted_by
	`
	_, err := r.pool.Exec(ctx, query,
		perm.DocumentID,
		perm.UserID,
		perm.Level,
		perm.GrantedAt,
		perm.GrantedBy,
	)
	return err
}

func (r *PgPermissionRepository) Replace(ctx context.Context, documentID string, perms []domain.DocumentPermission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_permissions WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	const insert = `
		INSERT INTO document_permissions (document_id, user_id, level, granted_at, granted_by)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range perms {
		if _, err := tx.Exec(ctx, insert, documentID, p.UserID, p.Level, p.GrantedAt, p.GrantedBy); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgPermissionRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPermission, error) {
	const query = `
		SELECT dp.document_id, dp.user_id, u.email, u.display_name, dp.level, dp.granted_at, dp.granted_by
		FROM document_permissions dp
		JOIN users u ON u.id = dp.user_id
		WHERE dp.document_id = $1
		ORDER BY dp.granted_at
	`
	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []domain.DocumentPermission
	for rows.Next() {
		var p domain.DocumentPermission
		if err := rows.Scan(
			&p.DocumentID,
			&p.UserID,
			&p.UserEmail,
			&p.UserName,
			&p.Level,
			&p.GrantedAt,
			&p.GrantedBy,
		); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *PgPermissionRepository) GetLevel(ctx context.Context, documentID, userID string) (domain.PermissionLevel, error) {
	const query = `
		SELECT level FROM document_permissions
		WHERE document_id = $1 AND user_id = $2
	`
	var level domain.PermissionLevel
	err := r.pool.QueryRow(ctx, query, documentID, userID).Scan(&level)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	return level, err
}

var _ PermissionRepository = (*PgPermissionRepository)(nil)
