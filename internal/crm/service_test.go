package crm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

type memoryRepo struct {
	mu        sync.Mutex
	deals     map[string]Deal
	quotes    map[string]Quote
	invoices  map[string]Invoice
	contracts map[string]Contract
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		deals:     map[string]Deal{},
		quotes:    map[string]Quote{},
		invoices:  map[string]Invoice{},
		contracts: map[string]Contract{},
	}
}

func (m *memoryRepo) CreateDeal(ctx context.Context, deal Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[deal.ID] = deal
	return nil
}

func (m *memoryRepo) GetDeal(ctx context.Context, tenantID, id string) (Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok || d.TenantID != tenantID {
		return Deal{}, shared.ErrNotFound
	}
	return d, nil
}

func (m *memoryRepo) ListDeals(ctx context.Context, tenantID string, filters ListFilters) ([]Deal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Deal
	for _, d := range m.deals {
		if d.TenantID == tenantID && (filters.State == "" || d.Stage == filters.State) {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateQuote(ctx context.Context, quote Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[quote.ID] = quote
	return nil
}

func (m *memoryRepo) GetQuote(ctx context.Context, tenantID, id string) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.TenantID != tenantID {
		return Quote{}, shared.ErrNotFound
	}
	return q, nil
}

func (m *memoryRepo) ListQuotes(ctx context.Context, tenantID string, filters ListFilters) ([]Quote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quote
	for _, q := range m.quotes {
		if q.TenantID == tenantID && (filters.State == "" || q.Status == filters.State) {
			out = append(out, q)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateInvoice(ctx context.Context, invoice Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[invoice.ID] = invoice
	return nil
}

func (m *memoryRepo) GetInvoice(ctx context.Context, tenantID, id string) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) ListInvoices(ctx context.Context, tenantID string, filters ListFilters) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.TenantID == tenantID && (filters.State == "" || inv.Status == filters.State) {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateContract(ctx context.Context, contract Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[contract.ID] = contract
	return nil
}

func (m *memoryRepo) GetContract(ctx context.Context, tenantID, id string) (Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok || c.TenantID != tenantID {
		return Contract{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListContracts(ctx context.Context, tenantID string, filters ListFilters) ([]Contract, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Contract
	for _, c := range m.contracts {
		if c.TenantID == tenantID && (filters.State == "" || c.Status == filters.State) {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch entity {
	case workflow.EntityDeal:
		if d, ok := m.deals[id]; ok && d.TenantID == tenantID {
			return d.Stage, nil
		}
	case workflow.EntityQuote:
		if q, ok := m.quotes[id]; ok && q.TenantID == tenantID {
			return q.Status, nil
		}
	case workflow.EntityInvoice:
		if inv, ok := m.invoices[id]; ok && inv.TenantID == tenantID {
			return inv.Status, nil
		}
	case workflow.EntityContract:
		if c, ok := m.contracts[id]; ok && c.TenantID == tenantID {
			return c.Status, nil
		}
	}
	return "", shared.ErrNotFound
}

func (m *memoryRepo) ApplyEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id, state string, lostReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch entity {
	case workflow.EntityDeal:
		d, ok := m.deals[id]
		if !ok || d.TenantID != tenantID {
			return shared.ErrNotFound
		}
		d.Stage = state
		if lostReason != nil {
			d.LostReason = lostReason
		}
		m.deals[id] = d
	case workflow.EntityQuote:
		q, ok := m.quotes[id]
		if !ok || q.TenantID != tenantID {
			return shared.ErrNotFound
		}
		q.Status = state
		m.quotes[id] = q
	case workflow.EntityInvoice:
		inv, ok := m.invoices[id]
		if !ok || inv.TenantID != tenantID {
			return shared.ErrNotFound
		}
		inv.Status = state
		m.invoices[id] = inv
	case workflow.EntityContract:
		c, ok := m.contracts[id]
		if !ok || c.TenantID != tenantID {
			return shared.ErrNotFound
		}
		c.Status = state
		m.contracts[id] = c
	default:
		return workflow.ErrUnknownEntityType
	}
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func seedDeal(t *testing.T, svc *Service, tenantID, stage string) Deal {
	t.Helper()
	deal, err := svc.CreateDeal(context.Background(), tenantID, "owner-1", CreateDealRequest{
		Name:     "Acme renewal",
		Amount:   12000,
		Currency: "USD",
	})
	require.NoError(t, err)
	if stage != workflow.DealStageLead {
		repo := svc.repo.(*memoryRepo)
		repo.mu.Lock()
		d := repo.deals[deal.ID]
		d.Stage = stage
		repo.deals[deal.ID] = d
		repo.mu.Unlock()
		deal.Stage = stage
	}
	return deal
}

func TestCreateDealStartsAsLead(t *testing.T) {
	svc := NewService(newMemoryRepo())

	deal, err := svc.CreateDeal(context.Background(), "t1", "owner-1", CreateDealRequest{
		Name:     "New pipeline deal",
		Amount:   500,
		Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.DealStageLead, deal.Stage)
	assert.Equal(t, "owner-1", deal.OwnerID)
}

func TestMoveDealStage(t *testing.T) {
	ctx := context.Background()

	t.Run("legal move advances the pipeline", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		deal := seedDeal(t, svc, "t1", workflow.DealStageLead)

		moved, err := svc.MoveDealStage(ctx, "t1", deal.ID, workflow.DealStageQualified, nil)
		require.NoError(t, err)
		assert.Equal(t, workflow.DealStageQualified, moved.Stage)
	})

	t.Run("skipping stages is a state conflict", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		deal := seedDeal(t, svc, "t1", workflow.DealStageLead)

		_, err := svc.MoveDealStage(ctx, "t1", deal.ID, workflow.DealStageWon, nil)
		require.ErrorIs(t, err, shared.ErrStateConflict)

		unchanged, getErr := svc.GetDeal(ctx, "t1", deal.ID)
		require.NoError(t, getErr)
		assert.Equal(t, workflow.DealStageLead, unchanged.Stage)
	})

	t.Run("losing a deal requires a reason", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		deal := seedDeal(t, svc, "t1", workflow.DealStageLead)

		_, err := svc.MoveDealStage(ctx, "t1", deal.ID, workflow.DealStageLost, nil)
		var validationErr *shared.ValidationError
		require.ErrorAs(t, err, &validationErr)

		reason := "no budget this quarter"
		lost, err := svc.MoveDealStage(ctx, "t1", deal.ID, workflow.DealStageLost, &reason)
		require.NoError(t, err)
		require.NotNil(t, lost.LostReason)
		assert.Equal(t, reason, *lost.LostReason)
	})

	t.Run("terminal deals are immutable", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		deal := seedDeal(t, svc, "t1", workflow.DealStageWon)

		_, err := svc.MoveDealStage(ctx, "t1", deal.ID, workflow.DealStageLead, nil)
		require.ErrorIs(t, err, shared.ErrStateConflict)
	})

	t.Run("other tenants cannot touch the deal", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		deal := seedDeal(t, svc, "t1", workflow.DealStageLead)

		_, err := svc.MoveDealStage(ctx, "t2", deal.ID, workflow.DealStageQualified, nil)
		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestChangeQuoteStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo())

	quote, err := svc.CreateQuote(ctx, "t1", "u1", CreateQuoteRequest{
		QuoteNumber: "Q-1001",
		Amount:      900,
		Currency:    "USD",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.QuoteStatusDraft, quote.Status)

	sent, err := svc.ChangeQuoteStatus(ctx, "t1", quote.ID, workflow.QuoteStatusSent)
	require.NoError(t, err)
	assert.Equal(t, workflow.QuoteStatusSent, sent.Status)

	// Draft quotes cannot be accepted directly.
	fresh, err := svc.CreateQuote(ctx, "t1", "u1", CreateQuoteRequest{
		QuoteNumber: "Q-1002",
		Amount:      100,
		Currency:    "USD",
	})
	require.NoError(t, err)
	_, err = svc.ChangeQuoteStatus(ctx, "t1", fresh.ID, workflow.QuoteStatusAccepted)
	require.ErrorIs(t, err, shared.ErrStateConflict)

	// An expired quote may be re-sent.
	expired, err := svc.ChangeQuoteStatus(ctx, "t1", sent.ID, workflow.QuoteStatusExpired)
	require.NoError(t, err)
	resent, err := svc.ChangeQuoteStatus(ctx, "t1", expired.ID, workflow.QuoteStatusSent)
	require.NoError(t, err)
	assert.Equal(t, workflow.QuoteStatusSent, resent.Status)
}

func TestCreateQuoteVerifiesDealWithinTenant(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo())
	deal := seedDeal(t, svc, "t1", workflow.DealStageLead)

	_, err := svc.CreateQuote(ctx, "t2", "u1", CreateQuoteRequest{
		DealID:      &deal.ID,
		QuoteNumber: "Q-2001",
		Amount:      100,
		Currency:    "USD",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestChangeInvoiceStatusFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo())

	invoice, err := svc.CreateInvoice(ctx, "t1", "u1", CreateInvoiceRequest{
		InvoiceNumber: "INV-1",
		Amount:        250,
		Currency:      "USD",
	})
	require.NoError(t, err)

	// DRAFT cannot jump straight to PAID.
	_, err = svc.ChangeInvoiceStatus(ctx, "t1", invoice.ID, workflow.InvoiceStatusPaid)
	require.ErrorIs(t, err, shared.ErrStateConflict)

	for _, next := range []string{
		workflow.InvoiceStatusPendingApproval,
		workflow.InvoiceStatusApproved,
		workflow.InvoiceStatusSent,
		workflow.InvoiceStatusPartiallyPaid,
		workflow.InvoiceStatusPaid,
	} {
		invoice, err = svc.ChangeInvoiceStatus(ctx, "t1", invoice.ID, next)
		require.NoError(t, err, "transition to %s", next)
	}
	assert.Equal(t, workflow.InvoiceStatusPaid, invoice.Status)
}

func TestChangeContractStatusFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo())

	contract, err := svc.CreateContract(ctx, "t1", "u1", CreateContractRequest{Title: "Support agreement"})
	require.NoError(t, err)

	_, err = svc.ChangeContractStatus(ctx, "t1", contract.ID, workflow.ContractStatusActive)
	require.ErrorIs(t, err, shared.ErrStateConflict)

	pending, err := svc.ChangeContractStatus(ctx, "t1", contract.ID, workflow.ContractStatusPendingApproval)
	require.NoError(t, err)
	active, err := svc.ChangeContractStatus(ctx, "t1", pending.ID, workflow.ContractStatusActive)
	require.NoError(t, err)
	assert.Equal(t, workflow.ContractStatusActive, active.Status)
}
