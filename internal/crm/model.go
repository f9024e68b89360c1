package crm

import "time"

// Deal is a sales opportunity moving through the pipeline stages owned by the
// workflow package.
type Deal struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	Amount     float64    `json:"amount"`
	Currency   string     `json:"currency"`
	Stage      string     `json:"stage"`
	LostReason *string    `json:"lost_reason,omitempty"`
	OwnerID    string     `json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Quote is a priced offer for a deal.
type Quote struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	DealID      *string    `json:"deal_id,omitempty"`
	QuoteNumber string     `json:"quote_number"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Invoice bills an accepted quote or a standalone sale.
type Invoice struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Contract is a signed agreement with a lifecycle of its own.
type Contract struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ListFilters narrows tenant-scoped listings.
type ListFilters struct {
	State   string
	Page    int
	PerPage int
}
