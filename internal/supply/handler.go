package supply

import (
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

// Handler manages supply endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers supply routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/supplies", h.addItems)
	r.Get("/supplies", h.list)
	r.Get("/supplies/movements", h.itemMovements)
	r.Get("/supplies/{id}", h.get)
	r.Delete("/supplies/items/{itemID}", h.removeItem)
}

type supplyItemRequest struct {
	ItemID    int64   `json:"item_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type addItemsRequest struct {
	FromCanteenID int64               `json:"from_canteen_id" validate:"required"`
	ToCanteenID   int64               `json:"to_canteen_id" validate:"required"`
	Items         []supplyItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := AddItemsInput{FromCanteenID: req.FromCanteenID, ToCanteenID: req.ToCanteenID}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{ItemID: it.ItemID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	auth := shared.AuthFromContext(r.Context())
	sup, err := h.service.AddItems(r.Context(), auth, input)
	if err != nil {
		h.logger.Error("add supply items", slog.Any("error", err),
			slog.Int64("from", req.FromCanteenID), slog.Int64("to", req.ToCanteenID))
		stock.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supply item id")
		return
	}

	auth := shared.AuthFromContext(r.Context())
	if err := h.service.RemoveItem(r.Context(), auth, id); err != nil {
		h.logger.Error("remove supply item", slog.Any("error", err), slog.Int64("supply_item_id", id))
		stock.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supply id")
		return
	}

	auth := shared.AuthFromContext(r.Context())
	sup, err := h.service.GetByID(r.Context(), auth, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
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
	supplies, err := h.service.List(r.Context(), auth, canteenID, limit)
	if err != nil {
		h.logger.Error("list supplies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if supplies == nil {
		supplies = []Supply{}
	}
	httpx.JSON(w, http.StatusOK, supplies)
}

// itemMovements lists one item's transfers inside a month
// (?item_id=&month=YYYY-MM).
func (h *Handler) itemMovements(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	month, err := time.Parse("2006-01", r.URL.Query().Get("month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return
	}

	supplies, err := h.service.ItemMovements(r.Context(), itemID, month.Year(), month.Month())
	if err != nil {
		h.logger.Error("item movements", slog.Any("error", err), slog.Int64("item_id", itemID))
		httpx.RespondError(w, err)
		return
	}
	if supplies == nil {
		supplies = []Supply{}
	}
	httpx.JSON(w, http.StatusOK, supplies)
}
