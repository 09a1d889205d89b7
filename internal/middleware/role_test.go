package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
)

func runRole(t *testing.T, userRole any, allowed ...string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    if userRole != nil {
        c.Set("role", userRole)
    }
    next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    if err := RequireRole(allowed...)(next)(c); err != nil {
        t.Fatalf("middleware returned error: %v", err)
    }
    return rec
}

func TestRequireRole(t *testing.T) {
    if rec := runRole(t, model.RoleAdmin, model.RoleAdmin); rec.Code != http.StatusOK {
        t.Errorf("admin on admin-only route: %d", rec.Code)
    }
    if rec := runRole(t, model.RoleCustomer, model.RoleAgent, model.RoleAdmin); rec.Code != http.StatusForbidden {
        t.Errorf("customer on agent route: %d, want 403", rec.Code)
    }
    if rec := runRole(t, nil, model.RoleAdmin); rec.Code != http.StatusForbidden {
        t.Errorf("missing role: %d, want 403", rec.Code)
    }
    if rec := runRole(t, 42, model.RoleAdmin); rec.Code != http.StatusForbidden {
        t.Errorf("non-string role: %d, want 403", rec.Code)
    }
}
