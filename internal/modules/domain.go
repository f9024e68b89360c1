package modules

import "time"

// Known module codes. A module is a named capability area subject to
// tenant-level enablement and per-role CRUD permissions.
const (
	ModuleDeals     = "deals"
	ModuleQuotes    = "quotes"
	ModuleInvoices  = "invoices"
	ModuleContracts = "contracts"
	ModuleFinance   = "finance"
	ModuleApprovals = "approvals"
	ModuleSegment   = "segment"
)

// KnownModules lists every module code the platform ships with.
func KnownModules() []string {
	return []string{
		ModuleDeals,
		ModuleQuotes,
		ModuleInvoices,
		ModuleContracts,
		ModuleFinance,
		ModuleApprovals,
		ModuleSegment,
	}
}

// Module is a capability area with a tenant-independent active flag.
type Module struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Enablement is the tenant-level on/off switch for a module. An absent row
// means the module is unavailable to that tenant.
type Enablement struct {
	TenantID   string    `json:"tenant_id"`
	ModuleCode string    `json:"module_code"`
	Enabled    bool      `json:"enabled"`
	UpdatedAt  time.Time `json:"updated_at"`
}
