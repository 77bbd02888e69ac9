package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/amicale/amicale/internal/adherents"
	"github.com/amicale/amicale/internal/auth"
	"github.com/amicale/amicale/internal/elections"
	"github.com/amicale/amicale/internal/events"
	"github.com/amicale/amicale/internal/expenses"
	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/payments"
	"github.com/amicale/amicale/internal/relance"
	"github.com/amicale/amicale/internal/shared"
	"github.com/amicale/amicale/internal/synthesis"
	"github.com/amicale/amicale/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	AdherentsHandler *adherents.Handler
	EventsHandler    *events.Handler
	PaymentsHandler  *payments.Handler
	ExpensesHandler  *expenses.Handler
	LedgerHandler    *ledger.Handler
	SynthesisHandler *synthesis.Handler
	ElectionsHandler *elections.Handler
	RelanceHandler   *relance.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/adherents", params.AdherentsHandler.MountRoutes)
	r.Route("/evenements", params.EventsHandler.MountRoutes)
	r.Route("/paiements", params.PaymentsHandler.MountRoutes)
	r.Route("/depenses", params.ExpensesHandler.MountRoutes)
	r.Route("/tresorerie", params.LedgerHandler.MountRoutes)
	r.Route("/synthese", params.SynthesisHandler.MountRoutes)
	r.Route("/elections", params.ElectionsHandler.MountRoutes)
	r.Route("/relance", params.RelanceHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
