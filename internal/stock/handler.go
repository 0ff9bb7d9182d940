package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mealpoint/mealpoint/internal/platform/httpx"
	"github.com/mealpoint/mealpoint/internal/shared"
)

// Handler manages stock endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/canteens/{canteenID}/stocks", h.listByCanteen)
	r.Get("/canteens/{canteenID}/stocks/history", h.history)
	r.Put("/canteens/{canteenID}/stocks/{itemID}", h.setQuantity)
}

type setQuantityRequest struct {
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Description string  `json:"description" validate:"max=500"`
}

// setQuantity overwrites the live quantity of one item in one canteen.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	canteenID, err := strconv.ParseInt(chi.URLParam(r, "canteenID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}

	auth := shared.AuthFromContext(r.Context())
	if !auth.CanAccessCanteen(canteenID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no access to this canteen")
		return
	}

	var req setQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	stock, err := h.service.SetQuantity(r.Context(), SetQuantityInput{
		CanteenID:   canteenID,
		ItemID:      itemID,
		Quantity:    req.Quantity,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Error("set stock quantity", slog.Any("error", err),
			slog.Int64("canteen_id", canteenID), slog.Int64("item_id", itemID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, stock)
}

// listByCanteen returns the live balances of a canteen.
func (h *Handler) listByCanteen(w http.ResponseWriter, r *http.Request) {
	canteenID, err := strconv.ParseInt(chi.URLParam(r, "canteenID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
		return
	}

	auth := shared.AuthFromContext(r.Context())
	if !auth.CanAccessCanteen(canteenID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no access to this canteen")
		return
	}

	stocks, err := h.service.GetByCanteen(r.Context(), canteenID)
	if err != nil {
		h.logger.Error("list stocks", slog.Any("error", err), slog.Int64("canteen_id", canteenID))
		httpx.RespondError(w, err)
		return
	}
	if stocks == nil {
		stocks = []Stock{}
	}
	httpx.JSON(w, http.StatusOK, stocks)
}

// history returns recent daily ledger rows. Optional query params: item_id,
// days (default 30).
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	canteenID, err := strconv.ParseInt(chi.URLParam(r, "canteenID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
		return
	}

	auth := shared.AuthFromContext(r.Context())
	if !auth.CanAccessCanteen(canteenID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no access to this canteen")
		return
	}

	var itemID int64
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		itemID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
			return
		}
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid days")
			return
		}
	}

	histories, err := h.service.GetHistory(r.Context(), canteenID, itemID, days)
	if err != nil {
		h.logger.Error("stock history", slog.Any("error", err), slog.Int64("canteen_id", canteenID))
		httpx.RespondError(w, err)
		return
	}
	if histories == nil {
		histories = []History{}
	}
	httpx.JSON(w, http.StatusOK, histories)
}

func respondStockError(w http.ResponseWriter, err error) bool {
	var insufficient *InsufficientStockError
	if errors.As(err, &insufficient) {
		httpx.ProblemExtra(w, http.StatusConflict, "Insufficient Stock", insufficient.Error(), map[string]any{
			"item_id":   insufficient.ItemID,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
		return true
	}
	var missing *StockNotFoundError
	if errors.As(err, &missing) {
		httpx.ProblemExtra(w, http.StatusConflict, "Stock Not Found", missing.Error(), map[string]any{
			"item_id": missing.ItemID,
		})
		return true
	}
	return false
}

// RespondError maps stock errors carrying availability context before falling
// back to the shared mapping. Sale and supply handlers use it too, since their
// submissions post stock movements.
func RespondError(w http.ResponseWriter, err error) {
	if respondStockError(w, err) {
		return
	}
	httpx.RespondError(w, err)
}
