package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// AccessChecker is the slice of the permission resolver the decision path
// needs: the decider's identity and a single capability answer.
type AccessChecker interface {
	ActingUser(ctx context.Context, userID string) (authz.ActingUser, error)
	HasPermission(ctx context.Context, userID, moduleCode string, action authz.Action) (bool, error)
}

// EntityStore reads and writes the governed entity a request is attached to.
type EntityStore interface {
	GetEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id string) (string, error)
	ApplyEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id, state string, lostReason *string) error
}

// Notifier records an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, tenantID, userID, title, message string, relatedTo workflow.EntityType, relatedID string) error
}

// DecisionEmail is the payload handed to the mail side channel. The worker
// resolves addresses and copy at send time.
type DecisionEmail struct {
	RequestID   string              `json:"request_id"`
	TenantID    string              `json:"tenant_id"`
	RequesterID string              `json:"requester_id"`
	DeciderID   string              `json:"decider_id"`
	Decision    Decision            `json:"decision"`
	Reason      *string             `json:"reason,omitempty"`
	RelatedTo   workflow.EntityType `json:"related_to"`
	RelatedID   string              `json:"related_id"`
}

// DecisionMailer enqueues the decision email for background delivery.
type DecisionMailer interface {
	EnqueueDecisionEmail(ctx context.Context, email DecisionEmail) error
}

// Auditor records an audit trail entry.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DecisionCounter increments the decision metric.
type DecisionCounter interface {
	CountDecision(entity, decision string)
}

// Service decides approval requests and applies the entity mutation each
// decision carries.
type Service struct {
	logger     *slog.Logger
	repo       RepositoryPort
	entities   EntityStore
	access     AccessChecker
	audit      Auditor
	notifier   Notifier
	mailer     DecisionMailer
	bestEffort *shared.BestEffort
	counter    DecisionCounter
	now        func() time.Time
}

// NewService constructs a Service. Audit, notifier, mailer and counter are
// optional side channels; a nil value simply skips that channel.
func NewService(
	logger *slog.Logger,
	repo RepositoryPort,
	entities EntityStore,
	access AccessChecker,
	audit Auditor,
	notifier Notifier,
	mailer DecisionMailer,
	bestEffort *shared.BestEffort,
	counter DecisionCounter,
) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		entities:   entities,
		access:     access,
		audit:      audit,
		notifier:   notifier,
		mailer:     mailer,
		bestEffort: bestEffort,
		counter:    counter,
		now:        time.Now,
	}
}

// GetForDecider loads a request visible to the decider. Non-super users never
// see rows outside their own tenant.
func (s *Service) GetForDecider(ctx context.Context, deciderID, requestID string) (ApprovalRequest, error) {
	actor, err := s.access.ActingUser(ctx, deciderID)
	if err != nil {
		return ApprovalRequest{}, err
	}
	if actor.RoleKind.IsSuper() {
		return s.repo.Get(ctx, requestID)
	}
	return s.repo.GetForTenant(ctx, actor.TenantID, requestID)
}

// ListPending returns undecided requests in the caller's tenant.
func (s *Service) ListPending(ctx context.Context, tenantID string, page, perPage int) ([]ApprovalRequest, shared.Pagination, error) {
	requests, total, err := s.repo.ListPending(ctx, tenantID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return requests, shared.NewPagination(page, perPage, total), nil
}

// Decide settles a pending request and applies the fixed entity mutation for
// the decision. The sequence is: load within the decider's visibility, check
// the approvals capability, check the approver list, then race on the
// conditional status flip. Only the winner mutates the entity and dispatches
// side effects.
func (s *Service) Decide(ctx context.Context, requestID, deciderID string, decision Decision, reason *string) (ApprovalRequest, error) {
	actor, err := s.access.ActingUser(ctx, deciderID)
	if err != nil {
		return ApprovalRequest{}, err
	}

	var request ApprovalRequest
	if actor.RoleKind.IsSuper() {
		request, err = s.repo.Get(ctx, requestID)
	} else {
		request, err = s.repo.GetForTenant(ctx, actor.TenantID, requestID)
	}
	if err != nil {
		return ApprovalRequest{}, err
	}

	allowed, err := s.access.HasPermission(ctx, deciderID, "approvals", authz.ActionUpdate)
	if err != nil {
		return ApprovalRequest{}, err
	}
	if !allowed {
		return ApprovalRequest{}, shared.ErrForbidden
	}

	if request.Status != StatusPending {
		return ApprovalRequest{}, fmt.Errorf("%w: request already decided", shared.ErrStateConflict)
	}

	if len(request.ApproverIDs) > 0 && !actor.RoleKind.IsSuper() && !slices.Contains(request.ApproverIDs, deciderID) {
		return ApprovalRequest{}, shared.ErrForbidden
	}

	var rejectionReason *string
	switch decision {
	case DecisionApprove:
		// An approve never stores a reason, even if one was sent.
	case DecisionReject:
		if reason == nil || *reason == "" {
			return ApprovalRequest{}, shared.NewValidationError("reason", "a reason is required to reject a request")
		}
		rejectionReason = reason
	default:
		return ApprovalRequest{}, shared.NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}

	won, err := s.repo.Decide(ctx, request.ID, decision.Status(), deciderID, s.now().UTC(), rejectionReason)
	if err != nil {
		return ApprovalRequest{}, fmt.Errorf("decide request: %w", err)
	}
	if !won {
		return ApprovalRequest{}, fmt.Errorf("%w: request already decided", shared.ErrStateConflict)
	}
	if s.counter != nil {
		s.counter.CountDecision(string(request.RelatedTo), string(decision))
	}

	s.applyOutcome(ctx, request, decision, rejectionReason)

	decided, err := s.repo.Get(ctx, request.ID)
	if err != nil {
		return ApprovalRequest{}, err
	}
	s.dispatchSideEffects(ctx, decided, deciderID, decision, rejectionReason)
	return decided, nil
}

// applyOutcome moves the related entity to the state the decision table
// declares. The table is fixed at build time, so an illegal edge here is a
// contract bug to log, never a user-facing failure.
func (s *Service) applyOutcome(ctx context.Context, request ApprovalRequest, decision Decision, reason *string) {
	target, ok := outcomeFor(request.RelatedTo, decision)
	if !ok {
		s.logger.Error("decision outcome table has no entry",
			slog.String("entity", string(request.RelatedTo)),
			slog.String("decision", string(decision)))
		return
	}

	current, err := s.entities.GetEntityState(ctx, request.TenantID, request.RelatedTo, request.RelatedID)
	if err != nil {
		s.logger.Error("load entity for decision outcome",
			slog.String("request_id", request.ID),
			slog.String("entity", string(request.RelatedTo)),
			slog.String("entity_id", request.RelatedID),
			slog.Any("error", err))
		return
	}

	verdict, err := workflow.ValidateTransition(request.RelatedTo, current, target)
	if err != nil || !verdict.Valid {
		reasonText := ""
		if err != nil {
			reasonText = err.Error()
		} else {
			reasonText = verdict.Reason
		}
		s.logger.Error("decision outcome violates transition policy",
			slog.String("request_id", request.ID),
			slog.String("entity", string(request.RelatedTo)),
			slog.String("from", current),
			slog.String("to", target),
			slog.String("reason", reasonText))
		return
	}

	var lostReason *string
	if request.RelatedTo == workflow.EntityDeal && decision == DecisionReject && reason != nil {
		text := "Approval rejected: " + *reason
		lostReason = &text
	}
	if err := s.entities.ApplyEntityState(ctx, request.TenantID, request.RelatedTo, request.RelatedID, target, lostReason); err != nil {
		s.logger.Error("apply decision outcome",
			slog.String("request_id", request.ID),
			slog.String("entity", string(request.RelatedTo)),
			slog.String("entity_id", request.RelatedID),
			slog.Any("error", err))
	}
}

func (s *Service) dispatchSideEffects(ctx context.Context, request ApprovalRequest, deciderID string, decision Decision, reason *string) {
	if s.audit != nil {
		s.bestEffort.Dispatch(ctx, "approval audit", func(ctx context.Context) error {
			meta := map[string]any{
				"decision":   string(decision),
				"related_to": string(request.RelatedTo),
				"related_id": request.RelatedID,
			}
			if reason != nil {
				meta["reason"] = *reason
			}
			return s.audit.Record(ctx, shared.AuditLog{
				TenantID:    request.TenantID,
				ActorID:     deciderID,
				Action:      "approval." + string(decision),
				Entity:      "approval_request",
				EntityID:    request.ID,
				Description: fmt.Sprintf("approval request %s %s", request.ID, request.Status),
				Meta:        meta,
			})
		})
	}
	if s.notifier != nil {
		s.bestEffort.Dispatch(ctx, "approval notification", func(ctx context.Context) error {
			title, message := decisionCopy(request, decision, reason)
			return s.notifier.Notify(ctx, request.TenantID, request.RequestedBy, title, message, request.RelatedTo, request.RelatedID)
		})
	}
	if s.mailer != nil {
		s.bestEffort.Dispatch(ctx, "approval email", func(ctx context.Context) error {
			return s.mailer.EnqueueDecisionEmail(ctx, DecisionEmail{
				RequestID:   request.ID,
				TenantID:    request.TenantID,
				RequesterID: request.RequestedBy,
				DeciderID:   deciderID,
				Decision:    decision,
				Reason:      reason,
				RelatedTo:   request.RelatedTo,
				RelatedID:   request.RelatedID,
			})
		})
	}
}
