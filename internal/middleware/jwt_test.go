package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/utils"
)

const testSecret = "test-secret"

func userRow(id uint64, active bool) *sqlmock.Rows {
    now := time.Now()
    cols := []string{
        "id", "email", "password_hash", "first_name", "last_name", "phone", "role",
        "is_active", "address", "preferences", "last_login", "created_at", "updated_at",
    }
    return sqlmock.NewRows(cols).AddRow(
        id, "jane@example.com", "x", "Jane", "Doe", nil, "customer",
        active, []byte(`{}`), []byte(`{}`), nil, now, now,
    )
}

func runJWT(t *testing.T, authHeader string, rows *sqlmock.Rows) *httptest.ResponseRecorder {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()
    if rows != nil {
        mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE id=").WillReturnRows(rows)
    }

    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    mw := JWTAuth(testSecret, repository.NewUserRepo(db))
    if err := mw(next)(c); err != nil {
        t.Fatalf("middleware returned error: %v", err)
    }
    return rec
}

func TestJWTAuthMissingToken(t *testing.T) {
    rec := runJWT(t, "", nil)
    if rec.Code != http.StatusUnauthorized {
        t.Fatalf("status = %d, want 401", rec.Code)
    }
}

func TestJWTAuthGarbageToken(t *testing.T) {
    rec := runJWT(t, "Bearer not-a-jwt", nil)
    if rec.Code != http.StatusUnauthorized {
        t.Fatalf("status = %d, want 401", rec.Code)
    }
}

func TestJWTAuthWrongSecret(t *testing.T) {
    tok, err := utils.NewAccessToken("other-secret", 7, "customer", 15)
    if err != nil {
        t.Fatal(err)
    }
    rec := runJWT(t, "Bearer "+tok.Token, nil)
    if rec.Code != http.StatusUnauthorized {
        t.Fatalf("status = %d, want 401", rec.Code)
    }
}

func TestJWTAuthActiveUserPasses(t *testing.T) {
    tok, err := utils.NewAccessToken(testSecret, 7, "customer", 15)
    if err != nil {
        t.Fatal(err)
    }
    rec := runJWT(t, "Bearer "+tok.Token, userRow(7, true))
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
    }
}

func TestJWTAuthDeactivatedUserGets403(t *testing.T) {
    tok, err := utils.NewAccessToken(testSecret, 7, "customer", 15)
    if err != nil {
        t.Fatal(err)
    }
    rec := runJWT(t, "Bearer "+tok.Token, userRow(7, false))
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403; a valid token must not override deactivation", rec.Code)
    }
}
