package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mealpoint/mealpoint/internal/platform/httpx"
	"github.com/mealpoint/mealpoint/internal/shared"
	"github.com/mealpoint/mealpoint/internal/stock"
)

// Handler manages sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.submit)
	r.Put("/sales/{id}", h.update)
	r.Get("/sales", h.list)
	r.Get("/sales/summary", h.summary)
	r.Get("/sales/{id}", h.get)
	r.Post("/sales/{id}/verify", h.verify)
	r.Put("/sales/{id}/verification", h.updateVerification)
}

type saleItemRequest struct {
	ItemID   int64   `json:"item_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

type submitRequest struct {
	CanteenID             int64             `json:"canteen_id" validate:"required"`
	Description           string            `json:"description" validate:"max=500"`
	PreviousDayAdjustment *float64          `json:"previous_day_adjustment"`
	PreviousDayReason     string            `json:"previous_day_reason" validate:"max=500"`
	CashAmount            float64           `json:"cash_amount" validate:"gte=0"`
	OnlineAmount          float64           `json:"online_amount" validate:"gte=0"`
	OtherAmount           float64           `json:"other_amount" validate:"gte=0"`
	Items                 []saleItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r submitRequest) toInput() SubmitInput {
	input := SubmitInput{
		CanteenID:             r.CanteenID,
		Description:           r.Description,
		PreviousDayAdjustment: r.PreviousDayAdjustment,
		PreviousDayReason:     r.PreviousDayReason,
		CashAmount:            r.CashAmount,
		OnlineAmount:          r.OnlineAmount,
		OtherAmount:           r.OtherAmount,
	}
	for _, it := range r.Items {
		input.Items = append(input.Items, ItemInput{ItemID: it.ItemID, Quantity: it.Quantity, Price: it.Price})
	}
	return input
}

func (h *Handler) decodeSubmit(w http.ResponseWriter, r *http.Request) (submitRequest, bool) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}

	auth := shared.AuthFromContext(r.Context())
	sale, err := h.service.CreateOrUpdate(r.Context(), auth, req.toInput())
	if err != nil {
		h.logger.Error("submit sale", slog.Any("error", err), slog.Int64("canteen_id", req.CanteenID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}

	auth := shared.AuthFromContext(r.Context())
	sale, err := h.service.Update(r.Context(), auth, id, req.toInput())
	if err != nil {
		h.logger.Error("update sale", slog.Any("error", err), slog.Int64("sale_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type verifyRequest struct {
	Adjustment *float64 `json:"adjustment" validate:"required"`
	Reason     string   `json:"reason" validate:"required,max=500"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, h.service.Verify)
}

func (h *Handler) updateVerification(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, h.service.UpdateVerification)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, *shared.AuthContext, VerifyInput) (Sale, error)) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	auth := shared.AuthFromContext(r.Context())
	sale, err := fn(r.Context(), auth, VerifyInput{
		SaleID:     id,
		Adjustment: *req.Adjustment,
		Reason:     req.Reason,
	})
	if err != nil {
		h.logger.Error("verify sale", slog.Any("error", err), slog.Int64("sale_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var canteenID int64
	if raw := r.URL.Query().Get("canteen_id"); raw != "" {
		var err error
		canteenID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	auth := shared.AuthFromContext(r.Context())
	sales, err := h.service.List(r.Context(), auth, canteenID, limit)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if sales == nil {
		sales = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	auth := shared.AuthFromContext(r.Context())
	sale, err := h.service.GetByID(r.Context(), auth, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	var canteenID int64
	if raw := r.URL.Query().Get("canteen_id"); raw != "" {
		canteenID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
			return
		}
	}

	auth := shared.AuthFromContext(r.Context())
	rows, err := h.service.Summarize(r.Context(), auth, canteenID, from, to)
	if err != nil {
		h.logger.Error("summarize sales", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if rows == nil {
		rows = []DailySummary{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// respondError surfaces the structured submission failures before falling
// back to the shared mapping.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var mismatch *PaymentMismatchError
	if errors.As(err, &mismatch) {
		httpx.ProblemExtra(w, http.StatusBadRequest, "Payment Mismatch", mismatch.Error(), map[string]any{
			"expected":                mismatch.Expected,
			"provided":                mismatch.Provided,
			"items_total":             mismatch.ItemsTotal,
			"previous_day_adjustment": mismatch.PreviousDayAdjustment,
		})
		return
	}
	stock.RespondError(w, err)
}
