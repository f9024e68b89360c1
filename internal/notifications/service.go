package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// Service stores and lists in-app notifications. Notify satisfies the
// best-effort notifier contract the approval decision path dispatches into.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Notify records a notification for a user.
func (s *Service) Notify(ctx context.Context, tenantID, userID, title, message string, relatedTo workflow.EntityType, relatedID string) error {
	n := Notification{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		UserID:   userID,
		Title:    title,
		Message:  message,
	}
	if relatedTo != "" {
		n.RelatedTo = &relatedTo
	}
	if relatedID != "" {
		n.RelatedID = &relatedID
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListMine returns the caller's notifications.
func (s *Service) ListMine(ctx context.Context, tenantID, userID string, page, perPage int) ([]Notification, shared.Pagination, error) {
	items, total, err := s.repo.ListForUser(ctx, tenantID, userID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// MarkRead stamps one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, tenantID, userID, id string) error {
	return s.repo.MarkRead(ctx, tenantID, userID, id)
}
