package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amicale/amicale/internal/money"
	"github.com/amicale/amicale/internal/rbac"
	"github.com/amicale/amicale/internal/shared"
)

// Handler manages payment endpoints.
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

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermTresorerieView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermTresorerieEdit))
		r.Post("/", h.create)
		r.Post("/{id}/valider", h.validate)
		r.Post("/{id}/annuler", h.cancel)
	})
}

type paymentView struct {
	ID         int64   `json:"id"`
	Reference  string  `json:"reference"`
	AdherentID int64   `json:"adherentId"`
	Montant    string  `json:"montant"`
	Methode    string  `json:"methode"`
	Date       string  `json:"date"`
	Statut     string  `json:"statut"`
	Note       string  `json:"note,omitempty"`
	ValideLe   *string `json:"valideLe,omitempty"`
}

func toView(p Payment) paymentView {
	v := paymentView{
		ID:         p.ID,
		Reference:  p.Reference,
		AdherentID: p.AdherentID,
		Montant:    money.Round2(p.Amount).StringFixed(2),
		Methode:    string(p.Method),
		Date:       p.PaidAt.UTC().Format(time.RFC3339),
		Statut:     string(p.Status),
		Note:       p.Note,
	}
	if p.ValidatedAt != nil {
		s := p.ValidatedAt.UTC().Format(time.RFC3339)
		v.ValideLe = &s
	}
	return v
}

type createRequest struct {
	AdherentID int64  `json:"adherentId" validate:"required,gt=0"`
	Montant    string `json:"montant" validate:"required"`
	Methode    string `json:"methode" validate:"required"`
	Date       string `json:"date"`
	Note       string `json:"note"`
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
	amount, err := money.ParseAmount(req.Montant)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	var paidAt time.Time
	if req.Date != "" {
		paidAt, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
			return
		}
	}
	payment, err := h.service.Record(r.Context(), CreateInput{
		AdherentID: req.AdherentID,
		Amount:     amount,
		Method:     Method(req.Methode),
		PaidAt:     paidAt,
		Note:       req.Note,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, toView(*payment))
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	alloc, err := h.service.Validate(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, shared.ErrImmutable):
			shared.RespondError(w, http.StatusConflict, shared.ErrImmutable)
		default:
			h.logger.Error("validate payment", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	shared.RespondJSON(w, http.StatusOK, alloc)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, shared.ErrImmutable):
			shared.RespondError(w, http.StatusConflict, shared.ErrImmutable)
		default:
			h.logger.Error("cancel payment", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("get payment", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, toView(*payment))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	var adherentID int64
	if raw := r.URL.Query().Get("adherent_id"); raw != "" {
		adherentID, _ = strconv.ParseInt(raw, 10, 64)
	}
	items, err := h.service.List(r.Context(), ListFilter{
		AdherentID: adherentID,
		Status:     Status(r.URL.Query().Get("statut")),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]paymentView, 0, len(items))
	for _, p := range items {
		views = append(views, toView(p))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"paiements": views})
}
