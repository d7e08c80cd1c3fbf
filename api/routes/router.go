package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siteworks/procurement-backend/api/controllers"
	creditcontrollers "github.com/siteworks/procurement-backend/api/controllers/creditnotes"
	debitcontrollers "github.com/siteworks/procurement-backend/api/controllers/debitnotes"
	"github.com/siteworks/procurement-backend/api/middleware"
	"github.com/siteworks/procurement-backend/internal/creditnotes"
	"github.com/siteworks/procurement-backend/internal/debitnotes"
	"github.com/siteworks/procurement-backend/pkg/config"
	"github.com/siteworks/procurement-backend/pkg/db"
	"github.com/siteworks/procurement-backend/pkg/logger"
	pkgredis "github.com/siteworks/procurement-backend/pkg/redis"
)

// Cache is the redis surface the API needs: readiness and idempotent replays.
type Cache interface {
	pkgredis.Pinger
	pkgredis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache Cache,
	gatherer prometheus.Gatherer,
	debitNoteService debitnotes.Service,
	creditNoteService creditnotes.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CompanyContext(logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Route("/debit-notes", func(r chi.Router) {
			r.Post("/", debitcontrollers.Create(debitNoteService, logg))
			r.Get("/", debitcontrollers.List(debitNoteService, logg))
			r.Route("/{debitNoteId}", func(r chi.Router) {
				r.Get("/", debitcontrollers.Detail(debitNoteService, logg))
				r.Patch("/", debitcontrollers.Update(debitNoteService, logg))
				r.Delete("/", debitcontrollers.Delete(debitNoteService, logg))
				r.Post("/send", debitcontrollers.Send(debitNoteService, logg))
			})
		})

		r.Route("/credit-notes", func(r chi.Router) {
			r.Post("/", creditcontrollers.Create(creditNoteService, logg))
			r.Get("/", creditcontrollers.List(creditNoteService, logg))
			r.Get("/{creditNoteId}", creditcontrollers.Detail(creditNoteService, logg))
		})
	})

	return r
}
