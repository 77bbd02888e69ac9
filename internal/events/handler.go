package events

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amicale/amicale/internal/rbac"
	"github.com/amicale/amicale/internal/shared"
)

// Handler manages event endpoints.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers event routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermEventsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermEventsEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
	})
}

type createRequest struct {
	Libelle string `json:"libelle" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Lieu    string `json:"lieu"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	event, err := h.repo.Create(r.Context(), CreateInput{Label: req.Libelle, Date: date, Location: req.Lieu})
	if err != nil {
		h.logger.Error("create event", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, event)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	event, err := h.repo.Update(r.Context(), id, CreateInput{Label: req.Libelle, Date: date, Location: req.Lieu})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("update event", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, event)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	event, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("get event", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, event)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	items, err := h.repo.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list events", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"events": items})
}
