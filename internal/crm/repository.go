package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// RepositoryPort defines tenant-scoped persistence for governed entities.
// The tenant id appears in every query predicate; rows are never fetched
// unscoped and filtered afterwards.
type RepositoryPort interface {
	CreateDeal(ctx context.Context, deal Deal) error
	GetDeal(ctx context.Context, tenantID, id string) (Deal, error)
	ListDeals(ctx context.Context, tenantID string, filters ListFilters) ([]Deal, int, error)

	CreateQuote(ctx context.Context, quote Quote) error
	GetQuote(ctx context.Context, tenantID, id string) (Quote, error)
	ListQuotes(ctx context.Context, tenantID string, filters ListFilters) ([]Quote, int, error)

	CreateInvoice(ctx context.Context, invoice Invoice) error
	GetInvoice(ctx context.Context, tenantID, id string) (Invoice, error)
	ListInvoices(ctx context.Context, tenantID string, filters ListFilters) ([]Invoice, int, error)

	CreateContract(ctx context.Context, contract Contract) error
	GetContract(ctx context.Context, tenantID, id string) (Contract, error)
	ListContracts(ctx context.Context, tenantID string, filters ListFilters) ([]Contract, int, error)

	GetEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id string) (string, error)
	ApplyEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id, state string, lostReason *string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateDeal inserts a new deal.
func (r *Repository) CreateDeal(ctx context.Context, deal Deal) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO deals (id, tenant_id, name, amount, currency, stage, owner_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		deal.ID, deal.TenantID, deal.Name, deal.Amount, deal.Currency, deal.Stage, deal.OwnerID)
	return err
}

// GetDeal fetches a deal within the tenant.
func (r *Repository) GetDeal(ctx context.Context, tenantID, id string) (Deal, error) {
	var d Deal
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, amount, currency, stage, lost_reason, owner_id, created_at, updated_at
FROM deals WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.Name, &d.Amount, &d.Currency, &d.Stage, &d.LostReason, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deal{}, shared.ErrNotFound
		}
		return Deal{}, err
	}
	return d, nil
}

// ListDeals returns deals for a tenant, optionally filtered by stage.
func (r *Repository) ListDeals(ctx context.Context, tenantID string, filters ListFilters) ([]Deal, int, error) {
	limit, offset := pageWindow(filters)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deals WHERE tenant_id=$1 AND ($2 = '' OR stage=$2)`,
		tenantID, filters.State).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, name, amount, currency, stage, lost_reason, owner_id, created_at, updated_at
FROM deals WHERE tenant_id=$1 AND ($2 = '' OR stage=$2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, filters.State, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Deal
	for rows.Next() {
		var d Deal
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.Amount, &d.Currency, &d.Stage, &d.LostReason, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CreateQuote inserts a new quote. Quote numbers are unique per tenant.
func (r *Repository) CreateQuote(ctx context.Context, quote Quote) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO quotes (id, tenant_id, deal_id, quote_number, amount, currency, status, valid_until, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		quote.ID, quote.TenantID, quote.DealID, quote.QuoteNumber, quote.Amount, quote.Currency, quote.Status, quote.ValidUntil, quote.CreatedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: quote number already in use", shared.ErrStateConflict)
	}
	return err
}

// GetQuote fetches a quote within the tenant.
func (r *Repository) GetQuote(ctx context.Context, tenantID, id string) (Quote, error) {
	var q Quote
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, deal_id, quote_number, amount, currency, status, valid_until, created_by, created_at, updated_at
FROM quotes WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&q.ID, &q.TenantID, &q.DealID, &q.QuoteNumber, &q.Amount, &q.Currency, &q.Status, &q.ValidUntil, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

// ListQuotes returns quotes for a tenant, optionally filtered by status.
func (r *Repository) ListQuotes(ctx context.Context, tenantID string, filters ListFilters) ([]Quote, int, error) {
	limit, offset := pageWindow(filters)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE tenant_id=$1 AND ($2 = '' OR status=$2)`,
		tenantID, filters.State).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, deal_id, quote_number, amount, currency, status, valid_until, created_by, created_at, updated_at
FROM quotes WHERE tenant_id=$1 AND ($2 = '' OR status=$2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, filters.State, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ID, &q.TenantID, &q.DealID, &q.QuoteNumber, &q.Amount, &q.Currency, &q.Status, &q.ValidUntil, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CreateInvoice inserts a new invoice. Invoice numbers are unique per tenant.
func (r *Repository) CreateInvoice(ctx context.Context, invoice Invoice) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO invoices (id, tenant_id, invoice_number, amount, currency, status, due_date, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		invoice.ID, invoice.TenantID, invoice.InvoiceNumber, invoice.Amount, invoice.Currency, invoice.Status, invoice.DueDate, invoice.CreatedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: invoice number already in use", shared.ErrStateConflict)
	}
	return err
}

// GetInvoice fetches an invoice within the tenant.
func (r *Repository) GetInvoice(ctx context.Context, tenantID, id string) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, invoice_number, amount, currency, status, due_date, created_by, created_at, updated_at
FROM invoices WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.Amount, &inv.Currency, &inv.Status, &inv.DueDate, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

// ListInvoices returns invoices for a tenant, optionally filtered by status.
func (r *Repository) ListInvoices(ctx context.Context, tenantID string, filters ListFilters) ([]Invoice, int, error) {
	limit, offset := pageWindow(filters)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE tenant_id=$1 AND ($2 = '' OR status=$2)`,
		tenantID, filters.State).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, invoice_number, amount, currency, status, due_date, created_by, created_at, updated_at
FROM invoices WHERE tenant_id=$1 AND ($2 = '' OR status=$2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, filters.State, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.Amount, &inv.Currency, &inv.Status, &inv.DueDate, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CreateContract inserts a new contract.
func (r *Repository) CreateContract(ctx context.Context, contract Contract) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO contracts (id, tenant_id, title, status, starts_at, ends_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		contract.ID, contract.TenantID, contract.Title, contract.Status, contract.StartsAt, contract.EndsAt, contract.CreatedBy)
	return err
}

// GetContract fetches a contract within the tenant.
func (r *Repository) GetContract(ctx context.Context, tenantID, id string) (Contract, error) {
	var c Contract
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, title, status, starts_at, ends_at, created_by, created_at, updated_at
FROM contracts WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&c.ID, &c.TenantID, &c.Title, &c.Status, &c.StartsAt, &c.EndsAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, shared.ErrNotFound
		}
		return Contract{}, err
	}
	return c, nil
}

// ListContracts returns contracts for a tenant, optionally filtered by status.
func (r *Repository) ListContracts(ctx context.Context, tenantID string, filters ListFilters) ([]Contract, int, error) {
	limit, offset := pageWindow(filters)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contracts WHERE tenant_id=$1 AND ($2 = '' OR status=$2)`,
		tenantID, filters.State).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, title, status, starts_at, ends_at, created_by, created_at, updated_at
FROM contracts WHERE tenant_id=$1 AND ($2 = '' OR status=$2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, filters.State, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Title, &c.Status, &c.StartsAt, &c.EndsAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// entityTable maps each governed entity type onto its table and state column.
func entityTable(entity workflow.EntityType) (table, column string, err error) {
	switch entity {
	case workflow.EntityDeal:
		return "deals", "stage", nil
	case workflow.EntityQuote:
		return "quotes", "status", nil
	case workflow.EntityInvoice:
		return "invoices", "status", nil
	case workflow.EntityContract:
		return "contracts", "status", nil
	default:
		return "", "", workflow.ErrUnknownEntityType
	}
}

// GetEntityState reads the current status/stage of a governed entity.
func (r *Repository) GetEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id string) (string, error) {
	table, column, err := entityTable(entity)
	if err != nil {
		return "", err
	}
	var state string
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id=$1 AND id=$2`, column, table)
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return state, nil
}

// ApplyEntityState writes a new status/stage. For deals a lost reason is
// stored alongside the stage when provided.
func (r *Repository) ApplyEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id, state string, lostReason *string) error {
	table, column, err := entityTable(entity)
	if err != nil {
		return err
	}
	if entity == workflow.EntityDeal && lostReason != nil {
		query := fmt.Sprintf(`UPDATE %s SET %s=$1, lost_reason=$2, updated_at=NOW() WHERE tenant_id=$3 AND id=$4`, table, column)
		tag, err := r.pool.Exec(ctx, query, state, *lostReason, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET %s=$1, updated_at=NOW() WHERE tenant_id=$2 AND id=$3`, table, column)
	tag, err := r.pool.Exec(ctx, query, state, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func pageWindow(filters ListFilters) (limit, offset int) {
	perPage := filters.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}

var _ RepositoryPort = (*Repository)(nil)
