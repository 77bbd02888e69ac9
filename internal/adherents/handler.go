package adherents

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

// Handler manages adherent endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers adherent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdherentsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermAdherentsEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/status", h.changeStatus)
	})
}

type createRequest struct {
	Prenom       string `json:"prenom" validate:"required"`
	Nom          string `json:"nom" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Telephone    string `json:"telephone"`
	DateAdhesion string `json:"dateAdhesion"`
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

	var joinedAt time.Time
	if req.DateAdhesion != "" {
		parsed, err := time.Parse("2006-01-02", req.DateAdhesion)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
			return
		}
		joinedAt = parsed
	}

	adherent, err := h.service.Register(r.Context(), CreateInput{
		FirstName: req.Prenom,
		LastName:  req.Nom,
		Email:     req.Email,
		Phone:     req.Telephone,
		JoinedAt:  joinedAt,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			shared.RespondJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		h.logger.Error("create adherent", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, adherent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	adherent, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("get adherent", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, adherent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	filter := ListFilter{
		Status: Status(r.URL.Query().Get("statut")),
		Search: r.URL.Query().Get("q"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list adherents", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"adherents":  items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
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
	adherent, err := h.service.Update(r.Context(), id, UpdateInput{
		FirstName: req.Prenom,
		LastName:  req.Nom,
		Email:     req.Email,
		Phone:     req.Telephone,
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, ErrEmailTaken):
			shared.RespondJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		default:
			h.logger.Error("update adherent", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	shared.RespondJSON(w, http.StatusOK, adherent)
}

type statusRequest struct {
	Statut string `json:"statut" validate:"required"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	var req statusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.service.ChangeStatus(r.Context(), id, Status(req.Statut)); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}
