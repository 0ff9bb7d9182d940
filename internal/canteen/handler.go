package canteen

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mealpoint/mealpoint/internal/platform/httpx"
	"github.com/mealpoint/mealpoint/internal/shared"
)

// Handler manages canteen endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers canteen routes. Lock management is admin-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/canteens", h.list)
	r.Get("/canteens/{id}", h.get)
	r.Get("/canteens/locked", h.listLocked)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/canteens", h.create)
		r.Post("/canteens/{id}/lock", h.lock)
		r.Post("/canteens/{id}/unlock", h.unlock)
		r.Post("/canteens/auto-unlock", h.autoUnlock)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := shared.AuthFromContext(r.Context())
		if !auth.IsAdmin() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid canteen id")
		return 0, false
	}
	return id, true
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Location string `json:"location" validate:"max=200"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	c, err := h.service.Create(r.Context(), CreateInput{Name: req.Name, Location: req.Location})
	if err != nil {
		h.logger.Error("create canteen", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	canteens, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list canteens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if canteens == nil {
		canteens = []Canteen{}
	}
	httpx.JSON(w, http.StatusOK, canteens)
}

func (h *Handler) listLocked(w http.ResponseWriter, r *http.Request) {
	canteens, err := h.service.ListLocked(r.Context())
	if err != nil {
		h.logger.Error("list locked canteens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if canteens == nil {
		canteens = []Canteen{}
	}
	httpx.JSON(w, http.StatusOK, canteens)
}

type lockRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	auth := shared.AuthFromContext(r.Context())
	c, err := h.service.Lock(r.Context(), id, auth.Username, req.Reason)
	if err != nil {
		h.logger.Error("lock canteen", slog.Any("error", err), slog.Int64("canteen_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	c, err := h.service.Unlock(r.Context(), id)
	if err != nil {
		h.logger.Error("unlock canteen", slog.Any("error", err), slog.Int64("canteen_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// autoUnlock runs the sweep on demand; the scheduled job runs it daily.
func (h *Handler) autoUnlock(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.AutoUnlock(r.Context())
	if err != nil {
		h.logger.Error("auto unlock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unlocked": count})
}
