package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	shiphttp "riderBack/internal/shipment/http"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.infoLog.Printf("%s - %s %s %s", r.RemoteAddr, r.Proto, r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// JWTMiddleware authenticates the bearer token and requires requiredRole.
func (app *application) JWTMiddleware(next http.Handler, requiredRole string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			app.clientError(w, http.StatusUnauthorized, "Authorization header missing or invalid")
			return
		}
		accessToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := app.tokens.Parse(accessToken)
		if err != nil {
			app.clientError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		id := shiphttp.Identity{RiderID: claims.RiderID, Role: claims.Role}
		if !id.Allows(requiredRole) {
			app.clientError(w, http.StatusForbidden, "Forbidden: role "+requiredRole+" required")
			return
		}
		next.ServeHTTP(w, r.WithContext(shiphttp.WithIdentity(r.Context(), id)))
	})
}

func (app *application) serverError(w http.ResponseWriter, err error) {
	trace := fmt.Sprintf("%s\n%s", err.Error(), debug.Stack())
	_ = app.errorLog.Output(2, trace)
	app.clientError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (app *application) clientError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   message,
	})
}
