package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// EntityType enumerates the business records whose status/stage changes are
// governed by a transition policy. The set is closed: dispatch on anything
// else is a programming error, never a silent accept.
type EntityType string

const (
	EntityDeal     EntityType = "DEAL"
	EntityQuote    EntityType = "QUOTE"
	EntityInvoice  EntityType = "INVOICE"
	EntityContract EntityType = "CONTRACT"
)

// ErrUnknownEntityType indicates a dispatch on an entity type outside the
// closed set.
var ErrUnknownEntityType = errors.New("workflow: unknown entity type")

// EntityTypes lists every governed entity type.
func EntityTypes() []EntityType {
	return []EntityType{EntityDeal, EntityQuote, EntityInvoice, EntityContract}
}

// ParseEntityType converts external input into an EntityType.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(raw))) {
	case EntityDeal:
		return EntityDeal, nil
	case EntityQuote:
		return EntityQuote, nil
	case EntityInvoice:
		return EntityInvoice, nil
	case EntityContract:
		return EntityContract, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, raw)
	}
}

// Deal pipeline stages.
const (
	DealStageLead        = "LEAD"
	DealStageQualified   = "QUALIFIED"
	DealStageProposal    = "PROPOSAL"
	DealStageNegotiation = "NEGOTIATION"
	DealStageWon         = "WON"
	DealStageLost        = "LOST"
)

// Quote statuses.
const (
	QuoteStatusDraft    = "DRAFT"
	QuoteStatusSent     = "SENT"
	QuoteStatusAccepted = "ACCEPTED"
	QuoteStatusRejected = "REJECTED"
	QuoteStatusExpired  = "EXPIRED"
)

// Invoice statuses.
const (
	InvoiceStatusDraft           = "DRAFT"
	InvoiceStatusPendingApproval = "PENDING_APPROVAL"
	InvoiceStatusApproved        = "APPROVED"
	InvoiceStatusSent            = "SENT"
	InvoiceStatusPartiallyPaid   = "PARTIALLY_PAID"
	InvoiceStatusOverdue         = "OVERDUE"
	InvoiceStatusPaid            = "PAID"
	InvoiceStatusCancelled       = "CANCELLED"
)

// Contract statuses.
const (
	ContractStatusDraft           = "DRAFT"
	ContractStatusPendingApproval = "PENDING_APPROVAL"
	ContractStatusActive          = "ACTIVE"
	ContractStatusTerminated      = "TERMINATED"
	ContractStatusExpired         = "EXPIRED"
)
