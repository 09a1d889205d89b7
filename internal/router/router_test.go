package router

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/config"
    "github.com/atlasinsure/claims-api/internal/handler"
    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/utils"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    t.Cleanup(func() { db.Close() })

    cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7}
    userRepo := repository.NewUserRepo(db)
    tokenRepo := repository.NewTokenRepo(db)
    policyRepo := repository.NewPolicyRepo(db)
    claimRepo := repository.NewClaimRepo(db)

    h := Handlers{
        Auth:      handler.NewAuthHandler(cfg, userRepo, tokenRepo),
        Users:     handler.NewUserHandler(userRepo, cfg.BcryptCost),
        Policies:  handler.NewPolicyHandler(policyRepo, userRepo),
        Claims:    handler.NewClaimHandler(claimRepo, policyRepo, nil),
        Dashboard: handler.NewDashboardHandler(userRepo, policyRepo, claimRepo),
        Health:    handler.NewHealthHandler(db),
    }

    e := echo.New()
    Register(e, h, testSecret, userRepo)
    return e, mock
}

func bearerFor(t *testing.T, uid uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(testSecret, uid, role, 15)
    if err != nil {
        t.Fatal(err)
    }
    return "Bearer " + tok.Token
}

func activeUserRow(id uint64, role string) *sqlmock.Rows {
    now := time.Now()
    cols := []string{
        "id", "email", "password_hash", "first_name", "last_name", "phone", "role",
        "is_active", "address", "preferences", "last_login", "created_at", "updated_at",
    }
    return sqlmock.NewRows(cols).AddRow(
        id, "user@example.com", "x", "Alex", "Reed", nil, role,
        true, []byte(`{}`), []byte(`{}`), nil, now, now,
    )
}

func ownedPolicyRow(id, customerID uint64, agentID any) *sqlmock.Rows {
    now := time.Now()
    cols := []string{
        "id", "policy_number", "policy_type", "status", "customer_id", "agent_id",
        "start_date", "end_date", "premium_amount", "premium_frequency", "premium_next_due",
        "coverage", "insured_items", "auto_renew", "cancellation_reason", "last_modified_by",
        "created_at", "updated_at",
    }
    return sqlmock.NewRows(cols).AddRow(
        id, "ATL2026000001", "auto", "active", customerID, agentID,
        now.AddDate(0, -6, 0), now.AddDate(0, 6, 0), 1200.0, "monthly", now.AddDate(0, 1, 0),
        []byte(`{}`), []byte(`[]`), true, nil, nil,
        now, now,
    )
}

// The owning customer must be able to update their own policy; the scope
// check lives in the handler, not in a role gate on the route.
func TestCustomerCanUpdateOwnPolicy(t *testing.T) {
    e, mock := newTestServer(t)

    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE id=").
        WithArgs(uint64(10)).
        WillReturnRows(activeUserRow(10, "customer"))
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(5)).
        WillReturnRows(ownedPolicyRow(5, 10, nil))
    mock.ExpectExec("UPDATE policies SET last_modified_by=\\?, auto_renew=\\? WHERE id=\\?").
        WithArgs(uint64(10), false, uint64(5)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(5)).
        WillReturnRows(ownedPolicyRow(5, 10, nil))

    req := httptest.NewRequest(http.MethodPut, "/v1/policies/5", strings.NewReader(`{"auto_renew":false}`))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    req.Header.Set(echo.HeaderAuthorization, bearerFor(t, 10, "customer"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)

    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

// Renewal is likewise open to the owning customer.
func TestCustomerCanRenewOwnPolicy(t *testing.T) {
    e, mock := newTestServer(t)

    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE id=").
        WithArgs(uint64(10)).
        WillReturnRows(activeUserRow(10, "customer"))
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(5)).
        WillReturnRows(ownedPolicyRow(5, 10, nil))
    mock.ExpectBegin()
    mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM policies").
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
    mock.ExpectExec("INSERT INTO policies").
        WillReturnResult(sqlmock.NewResult(6, 1))
    mock.ExpectExec("UPDATE policies SET status=\\?, last_modified_by=\\? WHERE id=\\?").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(6)).
        WillReturnRows(ownedPolicyRow(6, 10, nil))

    req := httptest.NewRequest(http.MethodPost, "/v1/policies/5/renew", strings.NewReader(`{}`))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    req.Header.Set(echo.HeaderAuthorization, bearerFor(t, 10, "customer"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)

    if rec.Code != http.StatusCreated {
        t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

// Cancellation is an agent/admin operation, not admin only.
func TestAssignedAgentCanCancelPolicy(t *testing.T) {
    e, mock := newTestServer(t)

    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE id=").
        WithArgs(uint64(20)).
        WillReturnRows(activeUserRow(20, "agent"))
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(5)).
        WillReturnRows(ownedPolicyRow(5, 10, uint64(20)))
    mock.ExpectExec("UPDATE policies SET status=\\?, cancellation_reason=\\?, last_modified_by=\\? WHERE id=\\?").
        WithArgs("cancelled", "customer moved carriers", uint64(20), uint64(5)).
        WillReturnResult(sqlmock.NewResult(0, 1))

    req := httptest.NewRequest(http.MethodDelete, "/v1/policies/5", strings.NewReader(`{"reason":"customer moved carriers"}`))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    req.Header.Set(echo.HeaderAuthorization, bearerFor(t, 20, "agent"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)

    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

// A customer still cannot touch someone else's policy through the open
// routes; the handler's scope check answers 403.
func TestCustomerCannotUpdateForeignPolicy(t *testing.T) {
    e, mock := newTestServer(t)

    mock.ExpectQuery("(?s)SELECT .+ FROM users WHERE id=").
        WithArgs(uint64(11)).
        WillReturnRows(activeUserRow(11, "customer"))
    mock.ExpectQuery("(?s)SELECT .+ FROM policies WHERE id=\\? LIMIT 1").
        WithArgs(uint64(5)).
        WillReturnRows(ownedPolicyRow(5, 10, nil))

    req := httptest.NewRequest(http.MethodPut, "/v1/policies/5", strings.NewReader(`{"auto_renew":false}`))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    req.Header.Set(echo.HeaderAuthorization, bearerFor(t, 11, "customer"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)

    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403 (%s)", rec.Code, rec.Body.String())
    }
}
