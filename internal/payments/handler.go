package payments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/platform/httpx"
	"github.com/crediventas/crediventas/internal/shared"
)

// Handler exposes payments over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.recordPayment)
	})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	key, err := shared.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		CustomerID: uuid.MustParse(req.CustomerID),
		EmployeeID: shared.EmployeeFromContext(r.Context()),
		Amount:     *req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		RequestKey: key,
	})
	if err != nil {
		if httpx.ProblemFor(err).Status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "record payment failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(r.URL.Query().Get("customer_id"))
	if err != nil {
		httpx.RespondError(w, ledger.Invalid("customer_id", "must be a UUID"))
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListPayments(r.Context(), customerID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponses(list))
}
