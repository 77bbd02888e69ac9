package expenses

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

// Handler manages expense endpoints.
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

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermTresorerieView))
		r.Get("/", h.list)
		r.Get("/categories", h.listCategories)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermTresorerieEdit))
		r.Post("/", h.create)
		r.Post("/categories", h.createCategory)
		r.Post("/{id}/valider", h.validate)
		r.Post("/{id}/annuler", h.cancel)
	})
}

type expenseView struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Libelle   string `json:"libelle"`
	Categorie int64  `json:"categorieId"`
	Montant   string `json:"montant"`
	Date      string `json:"date"`
	Statut    string `json:"statut"`
}

func toView(e Expense) expenseView {
	return expenseView{
		ID:        e.ID,
		Reference: e.Reference,
		Libelle:   e.Label,
		Categorie: e.CategoryID,
		Montant:   money.Round2(e.Amount).StringFixed(2),
		Date:      e.SpentAt.UTC().Format(time.RFC3339),
		Statut:    string(e.Status),
	}
}

type createRequest struct {
	Libelle     string `json:"libelle" validate:"required"`
	CategorieID int64  `json:"categorieId" validate:"required,gt=0"`
	Montant     string `json:"montant" validate:"required"`
	Date        string `json:"date"`
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
	var spentAt time.Time
	if req.Date != "" {
		spentAt, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
			return
		}
	}
	expense, err := h.service.Record(r.Context(), CreateInput{
		Label:      req.Libelle,
		CategoryID: req.CategorieID,
		Amount:     amount,
		SpentAt:    spentAt,
	})
	if err != nil {
		h.logger.Error("record expense", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, toView(*expense))
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.service.Validate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, shared.ErrImmutable):
			shared.RespondError(w, http.StatusConflict, shared.ErrImmutable)
		default:
			h.logger.Error("validate expense", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
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
			h.logger.Error("cancel expense", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	var categoryID int64
	if raw := r.URL.Query().Get("categorie_id"); raw != "" {
		categoryID, _ = strconv.ParseInt(raw, 10, 64)
	}
	items, err := h.service.List(r.Context(), ListFilter{
		CategoryID: categoryID,
		Status:     Status(r.URL.Query().Get("statut")),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]expenseView, 0, len(items))
	for _, e := range items {
		views = append(views, toView(e))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"depenses": views})
}

type categoryRequest struct {
	Nom string `json:"nom" validate:"required"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	category, err := h.service.AddCategory(r.Context(), req.Nom)
	if err != nil {
		h.logger.Error("create category", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}
