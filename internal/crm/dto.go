package crm

import "time"

// CreateDealRequest is the payload for opening a new deal. Deals always start
// in the LEAD stage.
type CreateDealRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
}

// ChangeStateRequest moves an entity to a new lifecycle state. Reason is
// required when a deal is marked lost.
type ChangeStateRequest struct {
	To     string  `json:"to" validate:"required,max=40"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CreateQuoteRequest is the payload for drafting a quote.
type CreateQuoteRequest struct {
	DealID      *string    `json:"deal_id,omitempty" validate:"omitempty,uuid"`
	QuoteNumber string     `json:"quote_number" validate:"required,max=40"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Currency    string     `json:"currency" validate:"required,len=3"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

// CreateInvoiceRequest is the payload for drafting an invoice.
type CreateInvoiceRequest struct {
	InvoiceNumber string     `json:"invoice_number" validate:"required,max=40"`
	Amount        float64    `json:"amount" validate:"gte=0"`
	Currency      string     `json:"currency" validate:"required,len=3"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

// CreateContractRequest is the payload for drafting a contract.
type CreateContractRequest struct {
	Title    string     `json:"title" validate:"required,max=200"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}
