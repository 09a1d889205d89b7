package repository

import (
    "context"
    "errors"
    "regexp"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/atlasinsure/claims-api/internal/model"
)

func TestClaimsSummaryAggregatesFromClaimsTable(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()

    rows := sqlmock.NewRows([]string{"status", "count", "amount"}).
        AddRow("pending", 2, 3000.0).
        AddRow("approved", 1, 2300.0).
        AddRow("denied", 1, 800.0)
    mock.ExpectQuery("SELECT status, COUNT\\(\\*\\), COALESCE").
        WithArgs(uint64(7)).
        WillReturnRows(rows)

    repo := NewPolicyRepo(db)
    got, err := repo.ClaimsSummary(context.Background(), 7)
    if err != nil {
        t.Fatal(err)
    }
    if got.Total != 4 {
        t.Errorf("total = %d, want 4", got.Total)
    }
    if got.TotalAmount != 6100 {
        t.Errorf("total amount = %v, want 6100", got.TotalAmount)
    }
    if got.ByStatus["pending"] != 2 || got.ByStatus["approved"] != 1 {
        t.Errorf("by status = %v", got.ByStatus)
    }
}

func TestCancelMarksCancelledWithReason(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()

    mock.ExpectExec(regexp.QuoteMeta("UPDATE policies SET status=?, cancellation_reason=?, last_modified_by=? WHERE id=?")).
        WithArgs(model.PolicyCancelled, "customer request", uint64(3), uint64(12)).
        WillReturnResult(sqlmock.NewResult(0, 1))

    repo := NewPolicyRepo(db)
    if err := repo.Cancel(context.Background(), 12, "customer request", 3); err != nil {
        t.Fatal(err)
    }
}

func TestCancelMissingPolicy(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()

    mock.ExpectExec("UPDATE policies SET").
        WillReturnResult(sqlmock.NewResult(0, 0))

    repo := NewPolicyRepo(db)
    if err := repo.Cancel(context.Background(), 404, "x", 1); !errors.Is(err, ErrPolicyNotFound) {
        t.Fatalf("got %v, want ErrPolicyNotFound", err)
    }
}

func TestPolicyListRejectsUnknownSortColumn(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatal(err)
    }
    defer db.Close()

    mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM policies")).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
    // An unknown sort_by must fall back to created_at, never reach the SQL.
    mock.ExpectQuery("ORDER BY created_at DESC").
        WillReturnRows(sqlmock.NewRows(policyRowColumns()))

    repo := NewPolicyRepo(db)
    _, total, err := repo.List(context.Background(), PolicyListFilter{
        Role:     model.RoleAdmin,
        SortBy:   "premium_amount; DROP TABLE policies",
        SortDesc: true,
        Limit:    20,
    })
    if err != nil {
        t.Fatal(err)
    }
    if total != 0 {
        t.Errorf("total = %d, want 0", total)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

func policyRowColumns() []string {
    return []string{
        "id", "policy_number", "policy_type", "status", "customer_id", "agent_id",
        "start_date", "end_date", "premium_amount", "premium_frequency", "premium_next_due",
        "coverage", "insured_items", "auto_renew", "cancellation_reason", "last_modified_by",
        "created_at", "updated_at",
    }
}
