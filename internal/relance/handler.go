package relance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amicale/amicale/internal/rbac"
	"github.com/amicale/amicale/internal/shared"
)

// Handler manages reminder configuration endpoints.
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

// MountRoutes registers reminder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRelanceEdit))
		r.Get("/config", h.getConfig)
		r.Put("/config", h.putConfig)
		r.Post("/scan", h.scan)
	})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Config(r.Context())
	if err != nil {
		h.logger.Error("get relance config", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, cfg)
}

type configRequest struct {
	Active     bool   `json:"active"`
	DelaiJours int    `json:"delaiJours" validate:"gte=0"`
	Sujet      string `json:"sujet"`
	Modele     string `json:"modele"`
}

func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	err := h.service.Update(r.Context(), Config{
		Enabled:      req.Active,
		DelayDays:    req.DelaiJours,
		Subject:      req.Sujet,
		BodyTemplate: req.Modele,
	})
	if err != nil {
		h.logger.Error("update relance config", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.service.Scan(r.Context())
	if err != nil {
		h.logger.Error("relance scan", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"relancesEnvoyees": len(reminders)})
}
