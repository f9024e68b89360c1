package approvals

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// Approval request statuses. PENDING is the only non-terminal status; a
// request is decided exactly once.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Decision is the verdict a decider hands down on a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision normalizes raw input into a Decision.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("unknown decision %q", raw)
	}
}

// Status returns the request status the decision resolves to.
func (d Decision) Status() string {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// ApprovalRequest gates a governed-entity transition behind an explicit
// decision. When ApproverIDs is non-empty only listed users (or a super
// user) may decide it.
type ApprovalRequest struct {
	ID              string              `json:"id"`
	TenantID        string              `json:"tenant_id"`
	RelatedTo       workflow.EntityType `json:"related_to"`
	RelatedID       string              `json:"related_id"`
	Status          string              `json:"status"`
	ApproverIDs     []string            `json:"approver_ids,omitempty"`
	RequestedBy     string              `json:"requested_by"`
	DecidedBy       *string             `json:"decided_by,omitempty"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
