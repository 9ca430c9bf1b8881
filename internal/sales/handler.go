package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/platform/httpx"
	"github.com/crediventas/crediventas/internal/shared"
)

// Handler exposes sales over JSON.
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

func (h *Handler) postSale(w http.ResponseWriter, r *http.Request) {
	key, err := shared.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PostSaleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := PostSaleInput{
		CustomerID: uuid.MustParse(req.CustomerID),
		EmployeeID: shared.EmployeeFromContext(r.Context()),
		TermDays:   req.TermDays,
		RequestKey: key,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			ProductID: uuid.MustParse(l.ProductID),
			Quantity:  l.Quantity,
			UnitPrice: *l.UnitPrice,
		})
	}

	sale, err := h.service.PostSale(r.Context(), input)
	if err != nil {
		h.respondError(w, r, "post sale", err)
		return
	}
	w.Header().Set("Location", "/api/sales/"+sale.ID.String())
	httpx.JSON(w, http.StatusCreated, toSaleResponse(sale))
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ListInput{Status: r.URL.Query().Get("status"), Limit: limit}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, ledger.Invalid("customer_id", "must be a UUID"))
			return
		}
		input.CustomerID = id
	}
	sales, err := h.service.ListSales(r.Context(), input)
	if err != nil {
		h.respondError(w, r, "list sales", err)
		return
	}
	out := make([]SaleResponse, 0, len(sales))
	for _, s := range sales {
		out = append(out, toSaleResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.CancelSale(r.Context(), id, shared.EmployeeFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, "cancel sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) settleSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.SettleSale(r.Context(), id, shared.EmployeeFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, "settle sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) saleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ledger.Invalid("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if p := httpx.ProblemFor(err); p.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
