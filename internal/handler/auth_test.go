package handler

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"
    "golang.org/x/crypto/bcrypt"

    "github.com/atlasinsure/claims-api/internal/config"
    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/utils"
)

func testCfg() config.Config {
    return config.Config{
        JWTSecret:      "test-secret",
        AccessTTLMin:   15,
        RefreshTTLDays: 7,
        BcryptCost:     bcrypt.MinCost,
    }
}

func userRowWithPassword(t *testing.T, id uint64, email, password string, active bool) *sqlmock.Rows {
    t.Helper()
    hash, err := utils.HashPassword(password, bcrypt.MinCost)
    if err != nil {
        t.Fatal(err)
    }
    now := time.Now()
    cols := []string{
        "id", "email", "password_hash", "first_name", "last_name", "phone", "role",
        "is_active", "address", "preferences", "last_login", "created_at", "updated_at",
    }
    return sqlmock.NewRows(cols).AddRow(
        id, email, hash, "Jane", "Doe", nil, "customer",
        active, []byte(`{}`), []byte(`{}`), nil, now, now,
    )
}

func postJSON(t *testing.T, target, body string) (echo.Context, *httptest.ResponseRecorder) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    return e.NewContext(req, rec), rec
}

func TestLoginWrongPassword(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()
    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE email=").
        WithArgs("jane@example.com").
        WillReturnRows(userRowWithPassword(t, 7, "jane@example.com", "correct-horse", true))

    h := NewAuthHandler(testCfg(), repository.NewUserRepo(db), repository.NewTokenRepo(db))
    c, rec := postJSON(t, "/v1/auth/login", `{"email":"jane@example.com","password":"wrong"}`)
    if err := h.Login(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusUnauthorized {
        t.Fatalf("status = %d, want 401", rec.Code)
    }
}

func TestLoginDeactivatedAccount(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()
    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE email=").
        WithArgs("jane@example.com").
        WillReturnRows(userRowWithPassword(t, 7, "jane@example.com", "correct-horse", false))

    h := NewAuthHandler(testCfg(), repository.NewUserRepo(db), repository.NewTokenRepo(db))
    c, rec := postJSON(t, "/v1/auth/login", `{"email":"jane@example.com","password":"correct-horse"}`)
    if err := h.Login(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403", rec.Code)
    }
}

func TestLoginUnknownEmailIs401(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()
    cols := []string{
        "id", "email", "password_hash", "first_name", "last_name", "phone", "role",
        "is_active", "address", "preferences", "last_login", "created_at", "updated_at",
    }
    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE email=").
        WillReturnRows(sqlmock.NewRows(cols))

    h := NewAuthHandler(testCfg(), repository.NewUserRepo(db), repository.NewTokenRepo(db))
    c, rec := postJSON(t, "/v1/auth/login", `{"email":"ghost@example.com","password":"x"}`)
    if err := h.Login(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusUnauthorized {
        t.Fatalf("status = %d, want 401 (no user enumeration)", rec.Code)
    }
}

func TestLogoutWithoutTokenRevokesAllSessions(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()
    mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW\\(\\) WHERE user_id=\\? AND revoked_at IS NULL").
        WithArgs(uint64(7)).
        WillReturnResult(sqlmock.NewResult(0, 3))

    h := NewAuthHandler(testCfg(), repository.NewUserRepo(db), repository.NewTokenRepo(db))
    c, rec := postJSON(t, "/v1/auth/logout", `{}`)
    c.Set("user_id", uint64(7))
    c.Set("role", "customer")
    if err := h.Logout(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

func TestRegisterValidation(t *testing.T) {
    db, _, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()

    h := NewAuthHandler(testCfg(), repository.NewUserRepo(db), repository.NewTokenRepo(db))
    c, rec := postJSON(t, "/v1/auth/register", `{"email":"a@b.c","password":"short"}`)
    if err := h.Register(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("status = %d, want 400", rec.Code)
    }
    env := decodeEnvelope(t, rec)
    if env.Success || len(env.Errors) == 0 {
        t.Errorf("expected field errors, got %+v", env)
    }
}
