package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/aurelia-backend/api/responses"
	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
)

const webhookPathPrefix = "/api/webhooks/"

// Recoverer turns handler panics into a 500. Webhook routes get the flat
// {"error": ...} body the gateway expects; everything else gets the envelope.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  fmt.Sprint(rec),
						"method": r.Method,
						"path":   r.URL.Path,
					})
					logg.Critical(ctx, "panic.recovered", err)
				}

				wrapped := pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic")
				if strings.HasPrefix(r.URL.Path, webhookPathPrefix) {
					responses.WriteWebhookError(ctx, logg, w, wrapped)
					return
				}
				responses.WriteError(ctx, logg, w, wrapped)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
