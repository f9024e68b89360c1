package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines persistence for in-app notifications.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) error
	ListForUser(ctx context.Context, tenantID, userID string, page, perPage int) ([]Notification, int, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification.
func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications (id, tenant_id, user_id, title, message, related_to, related_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		n.ID, n.TenantID, n.UserID, n.Title, n.Message, n.RelatedTo, n.RelatedID)
	return err
}

// ListForUser returns a user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, tenantID, userID string, page, perPage int) ([]Notification, int, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE tenant_id=$1 AND user_id=$2`,
		tenantID, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, user_id, title, message, related_to, related_id, read_at, created_at
FROM notifications WHERE tenant_id=$1 AND user_id=$2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Title, &n.Message, &n.RelatedTo, &n.RelatedID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// MarkRead stamps a notification as read. Already-read rows are a no-op.
func (r *Repository) MarkRead(ctx context.Context, tenantID, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at=COALESCE(read_at, NOW())
WHERE tenant_id=$1 AND user_id=$2 AND id=$3`, tenantID, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
