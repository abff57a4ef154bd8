package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	shiphttp "riderBack/internal/shipment/http"
)

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole)
	}
}

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	riderMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(shiphttp.RoleRider))
	opsMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(shiphttp.RoleOps))

	mux := pat.New()
	mux.Get("/healthz", standardMiddleware.ThenFunc(app.healthz))

	app.shipment.RegisterRoutes(mux, standardMiddleware, riderMiddleware, opsMiddleware)
	return mux
}

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := app.db.PingContext(ctx); err != nil {
		app.clientError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true}`))
}
