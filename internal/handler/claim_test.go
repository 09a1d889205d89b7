package handler

import (
    "database/sql"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
)

func claimRow(id, customerID uint64, status string) *sqlmock.Rows {
    now := time.Now()
    cols := []string{
        "id", "claim_number", "policy_id", "customer_id", "agent_id", "claim_type",
        "status", "priority", "incident_date", "reported_date", "description",
        "estimated_amount", "approved_amount", "paid_amount", "deductible",
        "location", "investigation_assigned_to", "investigation", "payment", "appeal",
        "is_fraud", "fraud_score", "created_at", "updated_at",
    }
    return sqlmock.NewRows(cols).AddRow(
        id, "CLM2026000001", uint64(1), customerID, nil, "auto",
        status, "medium", now, now, "fender bender",
        5000.0, nil, 0.0, 500.0,
        []byte(`{}`), nil, []byte(`{}`), []byte(`{}`), []byte(`{}`),
        false, 0.0, now, now,
    )
}

func newClaimTestContext(t *testing.T, method, body string, uid uint64, role string) (echo.Context, *httptest.ResponseRecorder, sqlmock.Sqlmock, *ClaimHandler) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    t.Cleanup(func() { db.Close() })

    e := echo.New()
    var req *http.Request
    if body != "" {
        req = httptest.NewRequest(method, "/v1/claims/4", strings.NewReader(body))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    } else {
        req = httptest.NewRequest(method, "/v1/claims/4", nil)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetPath("/v1/claims/:id")
    c.SetParamNames("id")
    c.SetParamValues("4")
    c.Set("user_id", uid)
    c.Set("role", role)

    h := NewClaimHandler(repository.NewClaimRepo(db), repository.NewPolicyRepo(db), nil)
    return c, rec, mock, h
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
    t.Helper()
    var env envelope
    if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
        t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
    }
    return env
}

func TestClaimUpdateCustomerCannotTouchWorkflowFields(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodPut, `{"status":"approved"}`, 10, model.RoleCustomer)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "pending"))

    if err := h.Update(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403", rec.Code)
    }
    env := decodeEnvelope(t, rec)
    if env.Success {
        t.Error("success should be false")
    }
}

func TestClaimUpdateUnknownFieldRejected(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodPut, `{"claim_number":"CLM999"}`, 1, model.RoleAdmin)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "pending"))

    if err := h.Update(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403 (immutable field)", rec.Code)
    }
}

func TestClaimGetOtherCustomersClaim(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodGet, "", 11, model.RoleCustomer)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "pending"))

    if err := h.Get(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403", rec.Code)
    }
}

func TestClaimGetMissingClaimIs404(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodGet, "", 11, model.RoleCustomer)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnError(sql.ErrNoRows)

    if err := h.Get(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusNotFound {
        t.Fatalf("status = %d, want 404 before any scope check", rec.Code)
    }
}

func TestCustomerCannotWriteInternalNote(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodPost,
        `{"content":"suspicious","is_internal":true}`, 10, model.RoleCustomer)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "pending"))

    if err := h.AddNote(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusForbidden {
        t.Fatalf("status = %d, want 403 (not silently downgraded)", rec.Code)
    }
}

func TestCustomerListNotesExcludesInternal(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodGet, "", 10, model.RoleCustomer)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "pending"))
    mock.ExpectQuery("SELECT id, claim_id, content, author_id, is_internal, created_at FROM claim_notes WHERE claim_id=\\? AND is_internal=0 ORDER BY created_at").
        WithArgs(uint64(4)).
        WillReturnRows(sqlmock.NewRows([]string{"id", "claim_id", "content", "author_id", "is_internal", "created_at"}).
            AddRow(1, 4, "photos received", 10, false, time.Now()))

    if err := h.ListNotes(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
    }
    if strings.Contains(rec.Body.String(), `"is_internal":true`) {
        t.Error("internal note leaked to a customer")
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

func TestClaimDeleteNonPendingConflicts(t *testing.T) {
    c, rec, mock, h := newClaimTestContext(t, http.MethodDelete, "", 1, model.RoleAdmin)
    mock.ExpectQuery("(?s)SELECT .+ FROM claims WHERE id=\\? LIMIT 1").
        WithArgs(uint64(4)).
        WillReturnRows(claimRow(4, 10, "investigating"))
    mock.ExpectBegin()
    mock.ExpectQuery("SELECT status FROM claims WHERE id=\\? FOR UPDATE").
        WithArgs(uint64(4)).
        WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("investigating"))
    mock.ExpectRollback()

    if err := h.Delete(c); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusConflict {
        t.Fatalf("status = %d, want 409", rec.Code)
    }
}
