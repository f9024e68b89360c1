package users

import (
	"context"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Service exposes tenant-scoped user reads.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get fetches a user within the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (User, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns tenant users plus pagination metadata.
func (s *Service) List(ctx context.Context, tenantID string, page, perPage int) ([]User, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, tenantID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}
