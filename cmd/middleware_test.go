package main

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	shiphttp "riderBack/internal/shipment/http"
	"riderBack/utils"
)

func testApp(t *testing.T) *application {
	t.Helper()
	tokens, err := utils.NewManager("test-key")
	if err != nil {
		t.Fatal(err)
	}
	return &application{
		errorLog: log.New(io.Discard, "", 0),
		infoLog:  log.New(io.Discard, "", 0),
		tokens:   tokens,
	}
}

func TestJWTMiddleware(t *testing.T) {
	app := testApp(t)
	riderToken, _ := app.tokens.NewJWT("r1", shiphttp.RoleRider, time.Hour)
	opsToken, _ := app.tokens.NewJWT("o1", shiphttp.RoleOps, time.Hour)

	var seen shiphttp.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shiphttp.IdentityFrom(r.Context())
	})

	cases := []struct {
		name   string
		role   string
		header string
		want   int
	}{
		{"missing header", shiphttp.RoleRider, "", http.StatusUnauthorized},
		{"garbage token", shiphttp.RoleRider, "Bearer nope", http.StatusUnauthorized},
		{"rider on rider route", shiphttp.RoleRider, "Bearer " + riderToken, http.StatusOK},
		{"ops on rider route", shiphttp.RoleRider, "Bearer " + opsToken, http.StatusOK},
		{"rider on ops route", shiphttp.RoleOps, "Bearer " + riderToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = shiphttp.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			app.JWTMiddleware(next, tc.role).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusOK && seen.RiderID == "" {
				t.Fatal("identity not propagated")
			}
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	app := testApp(t)
	h := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
