package crm

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// Service orchestrates governed-entity operations. Module permissions are
// enforced at the route layer; every state change is re-checked here against
// the transition policy before anything is persisted, so a client that skips
// the optimistic check gets the same verdict.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateDeal inserts a deal at the start of the pipeline.
func (s *Service) CreateDeal(ctx context.Context, tenantID, ownerID string, req CreateDealRequest) (Deal, error) {
	deal := Deal{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     req.Name,
		Amount:   req.Amount,
		Currency: req.Currency,
		Stage:    workflow.DealStageLead,
		OwnerID:  ownerID,
	}
	if err := s.repo.CreateDeal(ctx, deal); err != nil {
		return Deal{}, fmt.Errorf("create deal: %w", err)
	}
	return s.repo.GetDeal(ctx, tenantID, deal.ID)
}

// GetDeal fetches a deal within the tenant.
func (s *Service) GetDeal(ctx context.Context, tenantID, id string) (Deal, error) {
	return s.repo.GetDeal(ctx, tenantID, id)
}

// ListDeals returns tenant deals plus pagination metadata.
func (s *Service) ListDeals(ctx context.Context, tenantID string, filters ListFilters) ([]Deal, shared.Pagination, error) {
	deals, total, err := s.repo.ListDeals(ctx, tenantID, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return deals, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// MoveDealStage validates and persists a pipeline move. Moving to LOST
// requires a reason, which is stored as the lost reason.
func (s *Service) MoveDealStage(ctx context.Context, tenantID, id, toStage string, reason *string) (Deal, error) {
	deal, err := s.repo.GetDeal(ctx, tenantID, id)
	if err != nil {
		return Deal{}, err
	}
	if err := s.checkTransition(workflow.EntityDeal, deal.Stage, toStage); err != nil {
		return Deal{}, err
	}
	if toStage == workflow.DealStageLost && (reason == nil || *reason == "") {
		return Deal{}, shared.NewValidationError("reason", "a reason is required when marking a deal lost")
	}
	var lostReason *string
	if toStage == workflow.DealStageLost {
		lostReason = reason
	}
	if err := s.repo.ApplyEntityState(ctx, tenantID, workflow.EntityDeal, id, toStage, lostReason); err != nil {
		return Deal{}, fmt.Errorf("move deal stage: %w", err)
	}
	return s.repo.GetDeal(ctx, tenantID, id)
}

// CreateQuote inserts a quote in DRAFT.
func (s *Service) CreateQuote(ctx context.Context, tenantID, createdBy string, req CreateQuoteRequest) (Quote, error) {
	if req.DealID != nil {
		if _, err := s.repo.GetDeal(ctx, tenantID, *req.DealID); err != nil {
			return Quote{}, fmt.Errorf("verify deal: %w", err)
		}
	}
	quote := Quote{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		DealID:      req.DealID,
		QuoteNumber: req.QuoteNumber,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      workflow.QuoteStatusDraft,
		ValidUntil:  req.ValidUntil,
		CreatedBy:   createdBy,
	}
	if err := s.repo.CreateQuote(ctx, quote); err != nil {
		return Quote{}, fmt.Errorf("create quote: %w", err)
	}
	return s.repo.GetQuote(ctx, tenantID, quote.ID)
}

// GetQuote fetches a quote within the tenant.
func (s *Service) GetQuote(ctx context.Context, tenantID, id string) (Quote, error) {
	return s.repo.GetQuote(ctx, tenantID, id)
}

// ListQuotes returns tenant quotes plus pagination metadata.
func (s *Service) ListQuotes(ctx context.Context, tenantID string, filters ListFilters) ([]Quote, shared.Pagination, error) {
	quotes, total, err := s.repo.ListQuotes(ctx, tenantID, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return quotes, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// ChangeQuoteStatus validates and persists a quote status change.
func (s *Service) ChangeQuoteStatus(ctx context.Context, tenantID, id, toStatus string) (Quote, error) {
	quote, err := s.repo.GetQuote(ctx, tenantID, id)
	if err != nil {
		return Quote{}, err
	}
	if err := s.checkTransition(workflow.EntityQuote, quote.Status, toStatus); err != nil {
		return Quote{}, err
	}
	if err := s.repo.ApplyEntityState(ctx, tenantID, workflow.EntityQuote, id, toStatus, nil); err != nil {
		return Quote{}, fmt.Errorf("change quote status: %w", err)
	}
	return s.repo.GetQuote(ctx, tenantID, id)
}

// CreateInvoice inserts an invoice in DRAFT.
func (s *Service) CreateInvoice(ctx context.Context, tenantID, createdBy string, req CreateInvoiceRequest) (Invoice, error) {
	invoice := Invoice{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        workflow.InvoiceStatusDraft,
		DueDate:       req.DueDate,
		CreatedBy:     createdBy,
	}
	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return s.repo.GetInvoice(ctx, tenantID, invoice.ID)
}

// GetInvoice fetches an invoice within the tenant.
func (s *Service) GetInvoice(ctx context.Context, tenantID, id string) (Invoice, error) {
	return s.repo.GetInvoice(ctx, tenantID, id)
}

// ListInvoices returns tenant invoices plus pagination metadata.
func (s *Service) ListInvoices(ctx context.Context, tenantID string, filters ListFilters) ([]Invoice, shared.Pagination, error) {
	invoices, total, err := s.repo.ListInvoices(ctx, tenantID, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// ChangeInvoiceStatus validates and persists an invoice status change.
func (s *Service) ChangeInvoiceStatus(ctx context.Context, tenantID, id, toStatus string) (Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, tenantID, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := s.checkTransition(workflow.EntityInvoice, invoice.Status, toStatus); err != nil {
		return Invoice{}, err
	}
	if err := s.repo.ApplyEntityState(ctx, tenantID, workflow.EntityInvoice, id, toStatus, nil); err != nil {
		return Invoice{}, fmt.Errorf("change invoice status: %w", err)
	}
	return s.repo.GetInvoice(ctx, tenantID, id)
}

// CreateContract inserts a contract in DRAFT.
func (s *Service) CreateContract(ctx context.Context, tenantID, createdBy string, req CreateContractRequest) (Contract, error) {
	contract := Contract{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     req.Title,
		Status:    workflow.ContractStatusDraft,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		CreatedBy: createdBy,
	}
	if err := s.repo.CreateContract(ctx, contract); err != nil {
		return Contract{}, fmt.Errorf("create contract: %w", err)
	}
	return s.repo.GetContract(ctx, tenantID, contract.ID)
}

// GetContract fetches a contract within the tenant.
func (s *Service) GetContract(ctx context.Context, tenantID, id string) (Contract, error) {
	return s.repo.GetContract(ctx, tenantID, id)
}

// ListContracts returns tenant contracts plus pagination metadata.
func (s *Service) ListContracts(ctx context.Context, tenantID string, filters ListFilters) ([]Contract, shared.Pagination, error) {
	contracts, total, err := s.repo.ListContracts(ctx, tenantID, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return contracts, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// ChangeContractStatus validates and persists a contract status change.
func (s *Service) ChangeContractStatus(ctx context.Context, tenantID, id, toStatus string) (Contract, error) {
	contract, err := s.repo.GetContract(ctx, tenantID, id)
	if err != nil {
		return Contract{}, err
	}
	if err := s.checkTransition(workflow.EntityContract, contract.Status, toStatus); err != nil {
		return Contract{}, err
	}
	if err := s.repo.ApplyEntityState(ctx, tenantID, workflow.EntityContract, id, toStatus, nil); err != nil {
		return Contract{}, fmt.Errorf("change contract status: %w", err)
	}
	return s.repo.GetContract(ctx, tenantID, id)
}

// checkTransition runs the authoritative server-side transition re-check.
func (s *Service) checkTransition(entity workflow.EntityType, from, to string) error {
	result, err := workflow.ValidateTransition(entity, from, to)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s", shared.ErrStateConflict, result.Reason)
	}
	return nil
}
