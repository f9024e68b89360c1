package crm

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler wires HTTP endpoints for deals, quotes, invoices and contracts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		authz:     authz,
		validator: validator.New(),
	}
}

type listEnvelope struct {
	Items      any               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func listFiltersFromQuery(r *http.Request) ListFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return ListFilters{
		State:   r.URL.Query().Get("state"),
		Page:    page,
		PerPage: perPage,
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (userID, tenantID string, ok bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return "", "", false
	}
	return sess.User(), sess.Tenant(), true
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := shared.DecodeJSON(r, dst); err != nil {
		shared.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			shared.RespondError(w, shared.NewValidationError(fieldErrs[0].Field(), "failed validation on '"+fieldErrs[0].Tag()+"'"))
			return false
		}
		shared.RespondError(w, shared.NewValidationError("", "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any, err error, op string) {
	if err != nil {
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, status, payload)
}

func (h *Handler) createDeal(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateDealRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	deal, err := h.service.CreateDeal(r.Context(), tenantID, userID, req)
	h.respond(w, http.StatusCreated, deal, err, "create deal")
}

func (h *Handler) getDeal(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	deal, err := h.service.GetDeal(r.Context(), tenantID, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, deal, err, "get deal")
}

func (h *Handler) listDeals(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	deals, page, err := h.service.ListDeals(r.Context(), tenantID, listFiltersFromQuery(r))
	h.respond(w, http.StatusOK, listEnvelope{Items: deals, Pagination: page}, err, "list deals")
}

func (h *Handler) moveDealStage(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req ChangeStateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	deal, err := h.service.MoveDealStage(r.Context(), tenantID, chi.URLParam(r, "id"), req.To, req.Reason)
	h.respond(w, http.StatusOK, deal, err, "move deal stage")
}

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateQuoteRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	quote, err := h.service.CreateQuote(r.Context(), tenantID, userID, req)
	h.respond(w, http.StatusCreated, quote, err, "create quote")
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	quote, err := h.service.GetQuote(r.Context(), tenantID, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, quote, err, "get quote")
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	quotes, page, err := h.service.ListQuotes(r.Context(), tenantID, listFiltersFromQuery(r))
	h.respond(w, http.StatusOK, listEnvelope{Items: quotes, Pagination: page}, err, "list quotes")
}

func (h *Handler) changeQuoteStatus(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req ChangeStateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	quote, err := h.service.ChangeQuoteStatus(r.Context(), tenantID, chi.URLParam(r, "id"), req.To)
	h.respond(w, http.StatusOK, quote, err, "change quote status")
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), tenantID, userID, req)
	h.respond(w, http.StatusCreated, invoice, err, "create invoice")
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), tenantID, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, invoice, err, "get invoice")
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	invoices, page, err := h.service.ListInvoices(r.Context(), tenantID, listFiltersFromQuery(r))
	h.respond(w, http.StatusOK, listEnvelope{Items: invoices, Pagination: page}, err, "list invoices")
}

func (h *Handler) changeInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req ChangeStateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	invoice, err := h.service.ChangeInvoiceStatus(r.Context(), tenantID, chi.URLParam(r, "id"), req.To)
	h.respond(w, http.StatusOK, invoice, err, "change invoice status")
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateContractRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	contract, err := h.service.CreateContract(r.Context(), tenantID, userID, req)
	h.respond(w, http.StatusCreated, contract, err, "create contract")
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	contract, err := h.service.GetContract(r.Context(), tenantID, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, contract, err, "get contract")
}

func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	contracts, page, err := h.service.ListContracts(r.Context(), tenantID, listFiltersFromQuery(r))
	h.respond(w, http.StatusOK, listEnvelope{Items: contracts, Pagination: page}, err, "list contracts")
}

func (h *Handler) changeContractStatus(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req ChangeStateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	contract, err := h.service.ChangeContractStatus(r.Context(), tenantID, chi.URLParam(r, "id"), req.To)
	h.respond(w, http.StatusOK, contract, err, "change contract status")
}
