package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amicale/amicale/internal/money"
	"github.com/amicale/amicale/internal/rbac"
	"github.com/amicale/amicale/internal/shared"
)

// Handler manages receivable endpoints.
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

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermTresorerieView))
		r.Get("/adherents/{id}", h.openPositions)
		r.Get("/due-types", h.listDueTypes)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermTresorerieEdit))
		r.Post("/dettes-initiales", h.createInitialDebt)
		r.Post("/due-types", h.createDueType)
		r.Post("/cotisations/generer", h.generateDues)
		r.Post("/assistance", h.createAssistance)
		r.Post("/assistance/{id}/annuler", h.cancelAssistance)
		r.Post("/avoirs", h.grantCredit)
		r.Post("/adherents/{id}/appliquer-avoirs", h.applyCredits)
	})
}

type debtRequest struct {
	AdherentID int64  `json:"adherentId" validate:"required,gt=0"`
	Annee      int    `json:"annee" validate:"required,gte=1990"`
	Montant    string `json:"montant" validate:"required"`
}

func (h *Handler) createInitialDebt(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
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
	debt, err := h.service.AddInitialDebt(r.Context(), req.AdherentID, req.Annee, amount)
	if err != nil {
		h.logger.Error("create initial debt", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{
		"id":      debt.ID,
		"annee":   debt.Year,
		"montant": debt.Amount,
		"restant": debt.Remaining,
	})
}

type dueTypeRequest struct {
	Nom     string `json:"nom" validate:"required"`
	Montant string `json:"montant" validate:"required"`
}

func (h *Handler) createDueType(w http.ResponseWriter, r *http.Request) {
	var req dueTypeRequest
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
	dt, err := h.service.AddDueType(r.Context(), req.Nom, amount)
	if err != nil {
		h.logger.Error("create due type", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{"id": dt.ID, "nom": dt.Name, "montant": dt.Amount})
}

func (h *Handler) listDueTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.DueTypes(r.Context())
	if err != nil {
		h.logger.Error("list due types", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]any, 0, len(types))
	for _, dt := range types {
		out = append(out, map[string]any{"id": dt.ID, "nom": dt.Name, "montant": dt.Amount})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"types": out})
}

type generateRequest struct {
	Annee int `json:"annee" validate:"required,gte=1990"`
	Mois  int `json:"mois" validate:"required,gte=1,lte=12"`
}

func (h *Handler) generateDues(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	created, err := h.service.EnsureMonthlyDues(r.Context(), req.Annee, req.Mois)
	if err != nil {
		h.logger.Error("generate dues", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]int{"creees": created})
}

type assistanceRequest struct {
	AdherentID int64  `json:"adherentId" validate:"required,gt=0"`
	EventID    int64  `json:"evenementId" validate:"required,gt=0"`
	Montant    string `json:"montant" validate:"required"`
}

func (h *Handler) createAssistance(w http.ResponseWriter, r *http.Request) {
	var req assistanceRequest
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
	assistance, err := h.service.RequestAssistance(r.Context(), req.AdherentID, req.EventID, amount)
	if err != nil {
		h.logger.Error("create assistance", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{"id": assistance.ID, "restant": assistance.Remaining})
}

func (h *Handler) cancelAssistance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.service.CancelAssistance(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("cancel assistance", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

type creditRequest struct {
	AdherentID int64  `json:"adherentId" validate:"required,gt=0"`
	Montant    string `json:"montant" validate:"required"`
	Motif      string `json:"motif"`
}

func (h *Handler) grantCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
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
	credit, err := h.service.GrantCredit(r.Context(), req.AdherentID, amount, req.Motif)
	if err != nil {
		h.logger.Error("grant credit", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{"id": credit.ID, "restant": credit.Remaining})
}

func (h *Handler) applyCredits(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	alloc, err := h.service.ApplyCredits(r.Context(), id)
	if err != nil {
		h.logger.Error("apply credits", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, alloc)
}

func (h *Handler) openPositions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	ledger, err := h.service.OpenPositions(r.Context(), id)
	if err != nil {
		h.logger.Error("open positions", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	owed, err := h.service.TotalOwed(r.Context(), id)
	if err != nil {
		h.logger.Error("total owed", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"dettesInitiales": ledger.Debts,
		"cotisations":     ledger.Dues,
		"assistance":      ledger.Assistance,
		"avoirs":          ledger.Credits,
		"detteNette":      money.Round2(owed),
	})
}
