package workflow

// TransitionPolicy owns the directed transition graph for one entity type.
// States with an empty outgoing edge set are terminal; the self-loop is
// implicit everywhere to keep idempotent re-saves legal.
type TransitionPolicy struct {
	entity EntityType
	edges  map[string][]string
}

// Entity returns the entity type this policy governs.
func (p TransitionPolicy) Entity() EntityType {
	return p.entity
}

// AllowedFrom returns the declared outgoing edges for a state. Terminal and
// unknown states both return an empty set.
func (p TransitionPolicy) AllowedFrom(state string) []string {
	targets := p.edges[state]
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal reports whether the state has no outgoing edges besides the
// implicit self-loop.
func (p TransitionPolicy) IsTerminal(state string) bool {
	_, known := p.edges[state]
	return known && len(p.edges[state]) == 0
}

// States returns every state the policy declares.
func (p TransitionPolicy) States() []string {
	states := make([]string, 0, len(p.edges))
	for state := range p.edges {
		states = append(states, state)
	}
	return states
}

// policies is the single dispatch table. One entry per EntityType variant;
// every graph is enumerated exhaustively rather than inferred.
var policies = map[EntityType]TransitionPolicy{
	EntityDeal: {
		entity: EntityDeal,
		edges: map[string][]string{
			DealStageLead:        {DealStageQualified, DealStageLost},
			DealStageQualified:   {DealStageProposal, DealStageLost},
			DealStageProposal:    {DealStageNegotiation, DealStageLost},
			DealStageNegotiation: {DealStageWon, DealStageLost},
			DealStageWon:         {},
			DealStageLost:        {},
		},
	},
	EntityQuote: {
		entity: EntityQuote,
		edges: map[string][]string{
			QuoteStatusDraft:    {QuoteStatusSent},
			QuoteStatusSent:     {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired},
			QuoteStatusExpired:  {QuoteStatusSent},
			QuoteStatusAccepted: {},
			QuoteStatusRejected: {},
		},
	},
	EntityInvoice: {
		entity: EntityInvoice,
		edges: map[string][]string{
			InvoiceStatusDraft:           {InvoiceStatusPendingApproval, InvoiceStatusCancelled},
			InvoiceStatusPendingApproval: {InvoiceStatusApproved, InvoiceStatusDraft},
			InvoiceStatusApproved:        {InvoiceStatusSent, InvoiceStatusCancelled},
			InvoiceStatusSent:            {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
			InvoiceStatusPartiallyPaid:   {InvoiceStatusPaid, InvoiceStatusOverdue},
			InvoiceStatusOverdue:         {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
			InvoiceStatusPaid:            {},
			InvoiceStatusCancelled:       {},
		},
	},
	EntityContract: {
		entity: EntityContract,
		edges: map[string][]string{
			ContractStatusDraft:           {ContractStatusPendingApproval},
			ContractStatusPendingApproval: {ContractStatusActive, ContractStatusDraft},
			ContractStatusActive:          {ContractStatusTerminated, ContractStatusExpired},
			ContractStatusTerminated:      {},
			ContractStatusExpired:         {},
		},
	},
}

// PolicyFor returns the transition policy for an entity type.
func PolicyFor(entity EntityType) (TransitionPolicy, error) {
	policy, ok := policies[entity]
	if !ok {
		return TransitionPolicy{}, ErrUnknownEntityType
	}
	return policy, nil
}
