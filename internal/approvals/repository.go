package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines persistence for approval requests. Decide is the
// authoritative double-decision guard: it updates only rows still PENDING and
// reports whether this caller won the write.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (ApprovalRequest, error)
	GetForTenant(ctx context.Context, tenantID, id string) (ApprovalRequest, error)
	ListPending(ctx context.Context, tenantID string, page, perPage int) ([]ApprovalRequest, int, error)
	Decide(ctx context.Context, id, status, deciderID string, decidedAt time.Time, rejectionReason *string) (bool, error)
}

const approvalColumns = `id, tenant_id, related_to, related_id, status, approver_ids, requested_by, decided_by, decided_at, rejection_reason, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanApproval(row pgx.Row) (ApprovalRequest, error) {
	var a ApprovalRequest
	err := row.Scan(&a.ID, &a.TenantID, &a.RelatedTo, &a.RelatedID, &a.Status, &a.ApproverIDs,
		&a.RequestedBy, &a.DecidedBy, &a.DecidedAt, &a.RejectionReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalRequest{}, shared.ErrNotFound
		}
		return ApprovalRequest{}, err
	}
	return a, nil
}

// Get fetches a request without tenant scoping. Reserved for super users.
func (r *Repository) Get(ctx context.Context, id string) (ApprovalRequest, error) {
	return scanApproval(r.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id=$1`, id))
}

// GetForTenant fetches a request within the tenant. Rows outside the tenant
// are indistinguishable from absent rows.
func (r *Repository) GetForTenant(ctx context.Context, tenantID, id string) (ApprovalRequest, error) {
	return scanApproval(r.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// ListPending returns undecided requests for a tenant, newest first.
func (r *Repository) ListPending(ctx context.Context, tenantID string, page, perPage int) ([]ApprovalRequest, int, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM approval_requests WHERE tenant_id=$1 AND status=$2`,
		tenantID, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests
WHERE tenant_id=$1 AND status=$2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, StatusPending, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Decide flips a PENDING request to its decided status. The WHERE clause
// keeps the status predicate so concurrent deciders race on the row itself;
// the affected-row count, not a prior read, decides the winner.
func (r *Repository) Decide(ctx context.Context, id, status, deciderID string, decidedAt time.Time, rejectionReason *string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE approval_requests
SET status=$1, decided_by=$2, decided_at=$3, rejection_reason=$4, updated_at=NOW()
WHERE id=$5 AND status=$6`,
		status, deciderID, decidedAt, rejectionReason, id, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ RepositoryPort = (*Repository)(nil)
