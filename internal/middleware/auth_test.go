package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware_PublicPaths(t *testing.T) {
	h := AuthMiddleware("secret", okHandler)

	for _, path := range []string{"/login", "/auth/login", "/static/app.js"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestAuthMiddleware_Unauthenticated(t *testing.T) {
	h := AuthMiddleware("secret", okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusSeeOther {
		t.Errorf("Expected redirect, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected /login, got %s", loc)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/camera/start", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for API call, got %d", rr.Code)
	}
}

func TestAuthMiddleware_Authenticated(t *testing.T) {
	h := AuthMiddleware("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
}

func TestAuthMiddleware_NoPassword(t *testing.T) {
	h := AuthMiddleware("", okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 with auth disabled, got %d", rr.Code)
	}
}
