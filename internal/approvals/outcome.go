package approvals

import "github.com/meridian-crm/meridian-crm/internal/workflow"

// decisionOutcomes is the fixed post-decision mutation table. Every entry is
// an edge the transition policies already declare; outcomeFor has no fallback
// because the table is closed at build time.
var decisionOutcomes = map[workflow.EntityType]map[Decision]string{
	workflow.EntityQuote: {
		DecisionApprove: workflow.QuoteStatusAccepted,
		DecisionReject:  workflow.QuoteStatusRejected,
	},
	workflow.EntityDeal: {
		DecisionApprove: workflow.DealStageNegotiation,
		DecisionReject:  workflow.DealStageLost,
	},
	workflow.EntityInvoice: {
		DecisionApprove: workflow.InvoiceStatusApproved,
		DecisionReject:  workflow.InvoiceStatusDraft,
	},
	workflow.EntityContract: {
		DecisionApprove: workflow.ContractStatusActive,
		DecisionReject:  workflow.ContractStatusDraft,
	},
}

// outcomeFor returns the entity state a decision resolves to.
func outcomeFor(entity workflow.EntityType, decision Decision) (string, bool) {
	byDecision, ok := decisionOutcomes[entity]
	if !ok {
		return "", false
	}
	state, ok := byDecision[decision]
	return state, ok
}
