package customers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/payments"
	"github.com/crediventas/crediventas/internal/platform/httpx"
	"github.com/crediventas/crediventas/internal/shared"
)

// PaymentLister lists a customer's payments.
type PaymentLister interface {
	ListPayments(ctx context.Context, customerID uuid.UUID, limit int) ([]ledger.Payment, error)
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	payments PaymentLister
}

func NewHandler(logger *slog.Logger, service *Service, payments PaymentLister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, payments: payments}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	withBalance, err := httpx.QueryBool(r, "with_balance")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), ListInput{Status: r.URL.Query().Get("status"), WithBalance: withBalance, Limit: limit})
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponses(list))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	withBalance, err := httpx.QueryBool(r, "with_balance")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.SearchByName(r.Context(), r.URL.Query().Get("q"), withBalance, limit)
	if err != nil {
		h.fail(w, r, "search customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponses(list))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), CreateInput{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		CreditLimit: *req.CreditLimit,
	}, shared.EmployeeFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "create customer", err)
		return
	}
	w.Header().Set("Location", "/api/customers/"+c.ID.String())
	httpx.JSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		CreditLimit: req.CreditLimit,
		Status:      req.Status,
		Version:     req.Version,
	}, shared.EmployeeFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Deactivate(r.Context(), id, shared.EmployeeFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "deactivate customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) credit(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Credit(r.Context(), id)
	if err != nil {
		h.fail(w, r, "customer credit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCreditResponse(summary, h.service.money.Currency()))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.payments.ListPayments(r.Context(), id, limit)
	if err != nil {
		h.fail(w, r, "list customer payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments.ToResponses(list))
}

func customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ledger.Invalid("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.ProblemFor(err).Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
