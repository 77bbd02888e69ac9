package elections

import (
	"context"
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

// Handler manages election endpoints.
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

// MountRoutes registers election routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermElectionsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/candidats", h.candidates)
		r.Get("/{id}/resultats", h.tally)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermElectionsManage))
		r.Post("/", h.create)
		r.Post("/{id}/ouvrir", h.open)
		r.Post("/{id}/clore", h.close)
		r.Post("/{id}/candidats", h.addCandidate)
		r.Post("/{id}/votes", h.castVote)
	})
}

type createRequest struct {
	Titre     string `json:"titre" validate:"required"`
	DateDebut string `json:"dateDebut" validate:"required"`
	DateFin   string `json:"dateFin" validate:"required"`
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
	startsAt, err1 := time.Parse(time.RFC3339, req.DateDebut)
	endsAt, err2 := time.Parse(time.RFC3339, req.DateFin)
	if err1 != nil || err2 != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	election, err := h.service.Create(r.Context(), CreateInput{Title: req.Titre, StartsAt: startsAt, EndsAt: endsAt})
	if err != nil {
		h.logger.Error("create election", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, election)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	elections, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list elections", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"elections": elections})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	election, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get election", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, election)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "open election", h.service.Open)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "close election", h.service.Close)
}

type candidateRequest struct {
	AdherentID int64  `json:"adherentId" validate:"required,gt=0"`
	Nom        string `json:"nom" validate:"required"`
}

func (h *Handler) addCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req candidateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	candidate, err := h.service.AddCandidate(r.Context(), id, req.AdherentID, req.Nom)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error("add candidate", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, candidate)
}

func (h *Handler) candidates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	candidates, err := h.service.Candidates(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "list candidates", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"candidats": candidates})
}

type voteRequest struct {
	AdherentID  int64 `json:"adherentId" validate:"required,gt=0"`
	CandidateID int64 `json:"candidatId" validate:"required,gt=0"`
}

func (h *Handler) castVote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	err := h.service.CastVote(r.Context(), id, req.CandidateID, req.AdherentID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, ErrAlreadyVoted):
			shared.RespondError(w, http.StatusConflict, err)
		case errors.Is(err, ErrVotingClosed):
			shared.RespondError(w, http.StatusConflict, err)
		default:
			h.logger.Error("cast vote", slog.Any("error", err))
			shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		}
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) tally(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	tally, err := h.service.Tally(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "tally election", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, tally)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) error) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, http.StatusConflict, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrValidation)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, shared.ErrNotFound)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, err)
}
