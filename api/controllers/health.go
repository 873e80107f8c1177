package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/aurelia-backend/api/responses"
	"github.com/angelmondragon/aurelia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
)

const envHeader = "X-Aurelia-Env"

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, redis. A nil redis
// pinger is reported as "disabled".
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger Pinger, redisPinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "disabled"}
		if dbPinger == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"))
			return
		}
		if err := dbPinger.Ping(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable").
				WithDetails(map[string]any{"step": "database"}))
			return
		}
		if redisPinger != nil {
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
					WithDetails(map[string]any{"step": "redis"}))
				return
			}
			checks["redis"] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
