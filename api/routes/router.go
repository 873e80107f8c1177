package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/aurelia-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/aurelia-backend/api/controllers/webhooks"
	"github.com/angelmondragon/aurelia-backend/api/middleware"
	"github.com/angelmondragon/aurelia-backend/api/responses"
	"github.com/angelmondragon/aurelia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
	"github.com/angelmondragon/aurelia-backend/pkg/metrics"
)

// NewRouter wires the webhook, health and metrics endpoints. redisPinger and
// webhookGuard may be nil when redis is not configured.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisPinger controllers.Pinger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	webhookService webhookcontrollers.PaystackWebhookService,
	webhookGate webhookcontrollers.PaystackGate,
	webhookGuard webhookcontrollers.PaystackWebhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteWebhookError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "Method not allowed"))
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(webhookService, webhookGate, webhookGuard, logg))
	})

	return r
}
