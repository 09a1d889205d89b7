// Package repository: data access for Policy domain operations.  A Policy is
// a coverage contract owned by exactly one customer and at most one agent.
// The claims summary of a policy is never stored on the policy row; it is
// recomputed from the claims table on demand so the two can never drift.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/atlasinsure/claims-api/internal/model"
)

// PolicyRepo manages persistence for policies.
type PolicyRepo struct{ DB *sql.DB }

func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{DB: db} }

const policyColumns = `id, policy_number, policy_type, status, customer_id, agent_id,
    start_date, end_date, premium_amount, premium_frequency, premium_next_due,
    coverage, insured_items, auto_renew, cancellation_reason, last_modified_by,
    created_at, updated_at`

func scanPolicy(row interface{ Scan(...any) error }) (model.Policy, error) {
    var (
        p        model.Policy
        agentID  sql.NullInt64
        coverage []byte
        items    []byte
        reason   sql.NullString
        modBy    sql.NullInt64
    )
    err := row.Scan(&p.ID, &p.PolicyNumber, &p.PolicyType, &p.Status, &p.CustomerID,
        &agentID, &p.StartDate, &p.EndDate, &p.Premium.Amount, &p.Premium.Frequency,
        &p.Premium.NextDueDate, &coverage, &items, &p.AutoRenew, &reason, &modBy,
        &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return p, err
    }
    if agentID.Valid {
        v := uint64(agentID.Int64)
        p.AgentID = &v
    }
    if err := unmarshalJSON(coverage, &p.Coverage); err != nil {
        return p, err
    }
    if err := unmarshalJSON(items, &p.InsuredItems); err != nil {
        return p, err
    }
    p.CancellationReason = reason.String
    if modBy.Valid {
        v := uint64(modBy.Int64)
        p.LastModifiedBy = &v
    }
    return p, nil
}

// nextNumber builds a document number like ATL2026000042 from a running
// count within the given transaction.  The count+1 scheme matches how the
// carrier has always issued numbers; uniqueness is backed by the column's
// unique index.
func nextNumber(ctx context.Context, tx *sql.Tx, table, prefix string) (string, error) {
    var count int64
    if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
        return "", err
    }
    return fmt.Sprintf("%s%d%06d", prefix, time.Now().Year(), count+1), nil
}

// Create inserts a new policy, generating its policy number inside the same
// transaction.  The generated ID and number are written back to p.
func (r *PolicyRepo) Create(ctx context.Context, p *model.Policy) error {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    num, err := nextNumber(ctx, tx, "policies", "ATL")
    if err != nil {
        return err
    }
    coverage, err := marshalJSON(p.Coverage)
    if err != nil {
        return err
    }
    items, err := marshalJSON(p.InsuredItems)
    if err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx,
        `INSERT INTO policies (policy_number, policy_type, status, customer_id, agent_id,
            start_date, end_date, premium_amount, premium_frequency, premium_next_due,
            coverage, insured_items, auto_renew, last_modified_by)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        num, p.PolicyType, p.Status, p.CustomerID, nullableID(p.AgentID),
        p.StartDate, p.EndDate, p.Premium.Amount, p.Premium.Frequency, p.Premium.NextDueDate,
        coverage, items, p.AutoRenew, nullableID(p.LastModifiedBy))
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    p.ID = uint64(id)
    p.PolicyNumber = num
    return nil
}

// GetByID retrieves a policy.  Returns ErrPolicyNotFound for missing rows.
func (r *PolicyRepo) GetByID(ctx context.Context, id uint64) (*model.Policy, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+policyColumns+" FROM policies WHERE id=? LIMIT 1", id)
    p, err := scanPolicy(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrPolicyNotFound
        }
        return nil, err
    }
    return &p, nil
}

// PolicyListFilter narrows and pages the policy listing.  Role/UserID drive
// the visibility scope; the remaining fields are optional query filters.
type PolicyListFilter struct {
    Role       string
    UserID     uint64
    Status     string
    PolicyType string
    CustomerID uint64 // ignored for customers (their scope already pins it)
    AgentID    uint64 // ignored for agents
    SortBy     string
    SortDesc   bool
    Limit      int
    Offset     int
}

var policySortColumns = map[string]string{
    "created_at":    "created_at",
    "updated_at":    "updated_at",
    "start_date":    "start_date",
    "end_date":      "end_date",
    "policy_number": "policy_number",
    "status":        "status",
}

// List returns the visible policies matching the filter and the unpaginated
// total.
func (r *PolicyRepo) List(ctx context.Context, f PolicyListFilter) ([]model.Policy, int, error) {
    conds := []string{"1=1"}
    args := []any{}
    if cond, scopeArgs := ScopePolicies(f.Role, f.UserID); cond != "" {
        conds = append(conds, cond)
        args = append(args, scopeArgs...)
    }
    if f.Status != "" {
        conds = append(conds, "status = ?")
        args = append(args, f.Status)
    }
    if f.PolicyType != "" {
        conds = append(conds, "policy_type = ?")
        args = append(args, f.PolicyType)
    }
    if f.CustomerID != 0 && f.Role != model.RoleCustomer {
        conds = append(conds, "customer_id = ?")
        args = append(args, f.CustomerID)
    }
    if f.AgentID != 0 && f.Role != model.RoleAgent {
        conds = append(conds, "agent_id = ?")
        args = append(args, f.AgentID)
    }
    where := strings.Join(conds, " AND ")

    var total int
    if err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM policies WHERE "+where, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    sortCol, ok := policySortColumns[f.SortBy]
    if !ok {
        sortCol = "created_at"
    }
    dir := "ASC"
    if f.SortDesc {
        dir = "DESC"
    }
    q := fmt.Sprintf("SELECT %s FROM policies WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
        policyColumns, where, sortCol, dir)
    rows, err := r.DB.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    var out []model.Policy
    for rows.Next() {
        p, err := scanPolicy(rows)
        if err != nil {
            return nil, 0, err
        }
        out = append(out, p)
    }
    return out, total, rows.Err()
}

// ListScoped returns every policy visible to the requester, newest first.
// Dashboard aggregation works over this set in memory.
func (r *PolicyRepo) ListScoped(ctx context.Context, role string, userID uint64) ([]model.Policy, error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopePolicies(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+policyColumns+" FROM policies WHERE "+conds+" ORDER BY created_at DESC", args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Policy
    for rows.Next() {
        p, err := scanPolicy(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// PolicyUpdate carries the writable policy fields.  PolicyNumber is absent
// on purpose: numbers are immutable after creation.
type PolicyUpdate struct {
    PolicyType   *string
    Status       *string
    AgentID      *uint64
    StartDate    *time.Time
    EndDate      *time.Time
    Premium      *model.Premium
    Coverage     *model.Coverage
    InsuredItems *[]model.InsuredItem
    AutoRenew    *bool
}

// Update applies the non-nil fields and stamps last_modified_by.
func (r *PolicyRepo) Update(ctx context.Context, id uint64, upd PolicyUpdate, modifiedBy uint64) error {
    sets := []string{"last_modified_by=?"}
    args := []any{modifiedBy}
    if upd.PolicyType != nil {
        sets = append(sets, "policy_type=?")
        args = append(args, *upd.PolicyType)
    }
    if upd.Status != nil {
        sets = append(sets, "status=?")
        args = append(args, *upd.Status)
    }
    if upd.AgentID != nil {
        sets = append(sets, "agent_id=?")
        args = append(args, *upd.AgentID)
    }
    if upd.StartDate != nil {
        sets = append(sets, "start_date=?")
        args = append(args, *upd.StartDate)
    }
    if upd.EndDate != nil {
        sets = append(sets, "end_date=?")
        args = append(args, *upd.EndDate)
    }
    if upd.Premium != nil {
        sets = append(sets, "premium_amount=?", "premium_frequency=?", "premium_next_due=?")
        args = append(args, upd.Premium.Amount, upd.Premium.Frequency, upd.Premium.NextDueDate)
    }
    if upd.Coverage != nil {
        b, err := marshalJSON(*upd.Coverage)
        if err != nil {
            return err
        }
        sets = append(sets, "coverage=?")
        args = append(args, b)
    }
    if upd.InsuredItems != nil {
        b, err := marshalJSON(*upd.InsuredItems)
        if err != nil {
            return err
        }
        sets = append(sets, "insured_items=?")
        args = append(args, b)
    }
    if upd.AutoRenew != nil {
        sets = append(sets, "auto_renew=?")
        args = append(args, *upd.AutoRenew)
    }
    args = append(args, id)
    res, err := r.DB.ExecContext(ctx,
        "UPDATE policies SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrPolicyNotFound)
}

/// Cancel soft-deletes a policy: status becomes cancelled with a recorded
// reason.  Policies are never physically removed.
func (r *PolicyRepo) Cancel(ctx context.Context, id uint64, reason string, byUser uint64) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE policies SET status=?, cancellation_reason=?, last_modified_by=? WHERE id=?",
        model.PolicyCancelled, reason, byUser, id)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrPolicyNotFound)
}

// Renew creates the next-term policy carrying forward coverage and insured
// items and marks the original expired, in one transaction.  The renewal
// starts where the original ends and receives a fresh policy number.
func (r *PolicyRepo) Renew(ctx context.Context, orig *model.Policy, newEndDate time.Time, premiumAdjustment float64, byUser uint64) (*model.Policy, error) {
    newPremium := orig.Premium.Amount + premiumAdjustment
    if newPremium < 0 {
        newPremium = 0
    }
    coverage, err := marshalJSON(orig.Coverage)
    if err != nil {
        return nil, err
    }
    items, err := marshalJSON(orig.InsuredItems)
    if err != nil {
        return nil, err
    }

    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer func() { _ = tx.Rollback() }()

    num, err := nextNumber(ctx, tx, "policies", "ATL")
    if err != nil {
        return nil, err
    }
    res, err := tx.ExecContext(ctx,
        `INSERT INTO policies (policy_number, policy_type, status, customer_id, agent_id,
            start_date, end_date, premium_amount, premium_frequency, premium_next_due,
            coverage, insured_items, auto_renew, last_modified_by)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        num, orig.PolicyType, model.PolicyPending, orig.CustomerID, nullableID(orig.AgentID),
        orig.EndDate, newEndDate, newPremium, orig.Premium.Frequency, newEndDate,
        coverage, items, orig.AutoRenew, byUser)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    if _, err := tx.ExecContext(ctx,
        "UPDATE policies SET status=?, last_modified_by=? WHERE id=?",
        model.PolicyExpired, byUser, orig.ID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return r.GetByID(ctx, uint64(id))
}

// AddNote appends a note to a policy.
func (r *PolicyRepo) AddNote(ctx context.Context, policyID uint64, content string, authorID uint64) (model.PolicyNote, error) {
    res, err := r.DB.ExecContext(ctx,
        "INSERT INTO policy_notes (policy_id, content, author_id) VALUES (?,?,?)",
        policyID, content, authorID)
    if err != nil {
        return model.PolicyNote{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.PolicyNote{}, err
    }
    return model.PolicyNote{
        ID: uint64(id), PolicyID: policyID, Content: content,
        AuthorID: authorID, CreatedAt: time.Now().UTC(),
    }, nil
}

// ListNotes returns all notes on a policy, oldest first.
func (r *PolicyRepo) ListNotes(ctx context.Context, policyID uint64) ([]model.PolicyNote, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, policy_id, content, author_id, created_at FROM policy_notes WHERE policy_id=? ORDER BY created_at",
        policyID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.PolicyNote
    for rows.Next() {
        var n model.PolicyNote
        if err := rows.Scan(&n.ID, &n.PolicyID, &n.Content, &n.AuthorID, &n.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, n)
    }
    return out, rows.Err()
}

// AddDocument attaches a document reference to a policy.
func (r *PolicyRepo) AddDocument(ctx context.Context, d *model.PolicyDocument) error {
    res, err := r.DB.ExecContext(ctx,
        "INSERT INTO policy_documents (policy_id, name, doc_type, url, uploaded_by) VALUES (?,?,?,?,?)",
        d.PolicyID, d.Name, d.DocType, d.URL, d.UploadedBy)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    d.ID = uint64(id)
    d.CreatedAt = time.Now().UTC()
    return nil
}

// ListDocuments returns all document references on a policy.
func (r *PolicyRepo) ListDocuments(ctx context.Context, policyID uint64) ([]model.PolicyDocument, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, policy_id, name, doc_type, url, uploaded_by, created_at FROM policy_documents WHERE policy_id=? ORDER BY created_at",
        policyID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.PolicyDocument
    for rows.Next() {
        var d model.PolicyDocument
        if err := rows.Scan(&d.ID, &d.PolicyID, &d.Name, &d.DocType, &d.URL, &d.UploadedBy, &d.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// ClaimsBreakdown is the derived claims summary of a policy, computed from
// the claims table (the authoritative source) rather than a stored copy.
type ClaimsBreakdown struct {
    Total       int            `json:"total"`
    TotalAmount float64        `json:"total_amount"`
    ByStatus    map[string]int `json:"by_status"`
}

// ClaimsSummary aggregates the claims filed against a policy.  The amount
// of a claim is its approved amount when set, otherwise the estimate.
func (r *PolicyRepo) ClaimsSummary(ctx context.Context, policyID uint64) (ClaimsBreakdown, error) {
    out := ClaimsBreakdown{ByStatus: map[string]int{}}
    rows, err := r.DB.QueryContext(ctx,
        `SELECT status, COUNT(*), COALESCE(SUM(COALESCE(approved_amount, estimated_amount)), 0)
         FROM claims WHERE policy_id=? GROUP BY status`, policyID)
    if err != nil {
        return out, err
    }
    defer rows.Close()
    for rows.Next() {
        var status string
        var n int
        var amount float64
        if err := rows.Scan(&status, &n, &amount); err != nil {
            return out, err
        }
        out.ByStatus[status] = n
        out.Total += n
        out.TotalAmount += amount
    }
    return out, rows.Err()
}

// ApprovedClaimCount counts approved claims on a policy; it feeds the
// renewal premium estimate.
func (r *PolicyRepo) ApprovedClaimCount(ctx context.Context, policyID uint64) (int, error) {
    var n int
    err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM claims WHERE policy_id=? AND status=?",
        policyID, model.ClaimApproved).Scan(&n)
    return n, err
}

// CountsByType groups all policies by type (admin dashboards).
func (r *PolicyRepo) CountsByType(ctx context.Context) (map[string]int, error) {
    return r.groupCount(ctx, "policy_type")
}

// CountsByStatus groups all policies by status (admin dashboards).
func (r *PolicyRepo) CountsByStatus(ctx context.Context) (map[string]int, error) {
    return r.groupCount(ctx, "status")
}

func (r *PolicyRepo) groupCount(ctx context.Context, col string) (map[string]int, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+col+", COUNT(*) FROM policies GROUP BY "+col)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := map[string]int{}
    for rows.Next() {
        var k string
        var n int
        if err := rows.Scan(&k, &n); err != nil {
            return nil, err
        }
        out[k] = n
    }
    return out, rows.Err()
}

// TotalActivePremium sums the premium of all active policies (admin revenue
// figure).
func (r *PolicyRepo) TotalActivePremium(ctx context.Context) (float64, error) {
    var total float64
    err := r.DB.QueryRowContext(ctx,
        "SELECT COALESCE(SUM(premium_amount), 0) FROM policies WHERE status=?",
        model.PolicyActive).Scan(&total)
    return total, err
}

// Recent returns the most recently updated policies in scope, for activity
// feeds.
func (r *PolicyRepo) Recent(ctx context.Context, role string, userID uint64, limit int) ([]model.Policy, error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopePolicies(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+policyColumns+" FROM policies WHERE "+conds+" ORDER BY updated_at DESC LIMIT ?",
        append(args, limit)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Policy
    for rows.Next() {
        p, err := scanPolicy(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

func nullableID(id *uint64) any {
    if id == nil {
        return nil
    }
    return *id
}
