package crm

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// MountRoutes registers the entity routes behind module permission checks.
// State changes are guarded as updates on the owning module.
func (h *Handler) MountRoutes(r chi.Router) {
	mountEntity(r, h.authz, "deals", entityRoutes{
		list:   h.listDeals,
		show:   h.getDeal,
		create: h.createDeal,
		move:   h.moveDealStage,
	})
	mountEntity(r, h.authz, "quotes", entityRoutes{
		list:   h.listQuotes,
		show:   h.getQuote,
		create: h.createQuote,
		move:   h.changeQuoteStatus,
	})
	mountEntity(r, h.authz, "invoices", entityRoutes{
		list:   h.listInvoices,
		show:   h.getInvoice,
		create: h.createInvoice,
		move:   h.changeInvoiceStatus,
	})
	mountEntity(r, h.authz, "contracts", entityRoutes{
		list:   h.listContracts,
		show:   h.getContract,
		create: h.createContract,
		move:   h.changeContractStatus,
	})
}

type entityRoutes struct {
	list   http.HandlerFunc
	show   http.HandlerFunc
	create http.HandlerFunc
	move   http.HandlerFunc
}

func mountEntity(r chi.Router, mw authz.Middleware, moduleCode string, routes entityRoutes) {
	base := "/" + moduleCode
	r.Group(func(r chi.Router) {
		r.Use(mw.Require(moduleCode, authz.ActionRead))
		r.Get(base, routes.list)
		r.Get(base+"/{id}", routes.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Require(moduleCode, authz.ActionCreate))
		r.Post(base, routes.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Require(moduleCode, authz.ActionUpdate))
		r.Post(base+"/{id}/state", routes.move)
	})
}
