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

// ClaimRepo manages persistence for claims and their timeline.  Every
// mutating operation appends exactly one timeline entry in the same
// transaction as the row change, so the audit trail can never miss or
// double-count a mutation.
type ClaimRepo struct{ DB *sql.DB }

func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{DB: db} }

const claimColumns = `id, claim_number, policy_id, customer_id, agent_id, claim_type,
    status, priority, incident_date, reported_date, description,
    estimated_amount, approved_amount, paid_amount, deductible,
    location, investigation_assigned_to, investigation, payment, appeal,
    is_fraud, fraud_score, created_at, updated_at`

func scanClaim(row interface{ Scan(...any) error }) (model.Claim, error) {
    var (
        c          model.Claim
        agentID    sql.NullInt64
        approved   sql.NullFloat64
        location   []byte
        assignedTo sql.NullInt64
        invest     []byte
        payment    []byte
        appeal     []byte
    )
    err := row.Scan(&c.ID, &c.ClaimNumber, &c.PolicyID, &c.CustomerID, &agentID,
        &c.Type, &c.Status, &c.Priority, &c.IncidentDate, &c.ReportedDate,
        &c.Description, &c.EstimatedAmount, &approved, &c.PaidAmount, &c.Deductible,
        &location, &assignedTo, &invest, &payment, &appeal,
        &c.IsFraud, &c.FraudScore, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        return c, err
    }
    if agentID.Valid {
        v := uint64(agentID.Int64)
        c.AgentID = &v
    }
    if approved.Valid {
        v := approved.Float64
        c.ApprovedAmount = &v
    }
    if err := unmarshalJSON(location, &c.Location); err != nil {
        return c, err
    }
    if err := unmarshalJSON(invest, &c.Investigation); err != nil {
        return c, err
    }
    if err := unmarshalJSON(payment, &c.Payment); err != nil {
        return c, err
    }
    if err := unmarshalJSON(appeal, &c.Appeal); err != nil {
        return c, err
    }
    // The assignee lives in its own indexed column so scope queries can
    // match it; the JSON document is just the detail record.
    if assignedTo.Valid {
        v := uint64(assignedTo.Int64)
        c.Investigation.AssignedTo = &v
    }
    return c, nil
}

func addTimeline(ctx context.Context, tx *sql.Tx, claimID uint64, action, description string, performedBy uint64) error {
    _, err := tx.ExecContext(ctx,
        "INSERT INTO claim_timeline (claim_id, action, description, performed_by) VALUES (?,?,?,?)",
        claimID, action, description, performedBy)
    return err
}

// Create files a new claim against a policy.  The claim number is generated
// inside the transaction and a "Claim Filed" timeline entry is written
// atomically with the row.
func (r *ClaimRepo) Create(ctx context.Context, c *model.Claim) error {
    location, err := marshalJSON(c.Location)
    if err != nil {
        return err
    }
    invest, err := marshalJSON(c.Investigation)
    if err != nil {
        return err
    }
    payment, err := marshalJSON(c.Payment)
    if err != nil {
        return err
    }
    appeal, err := marshalJSON(c.Appeal)
    if err != nil {
        return err
    }

    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    num, err := nextNumber(ctx, tx, "claims", "CLM")
    if err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx,
        `INSERT INTO claims (claim_number, policy_id, customer_id, agent_id, claim_type,
            status, priority, incident_date, reported_date, description,
            estimated_amount, paid_amount, deductible, location,
            investigation_assigned_to, investigation, payment, appeal, is_fraud, fraud_score)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        num, c.PolicyID, c.CustomerID, nullableID(c.AgentID), c.Type,
        model.ClaimPending, c.Priority, c.IncidentDate, c.ReportedDate, c.Description,
        c.EstimatedAmount, c.PaidAmount, c.Deductible, location,
        nullableID(c.Investigation.AssignedTo), invest, payment, appeal, c.IsFraud, c.FraudScore)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    if err := addTimeline(ctx, tx, uint64(id), "Claim Filed",
        fmt.Sprintf("Claim %s filed", num), c.CustomerID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    c.ID = uint64(id)
    c.ClaimNumber = num
    c.Status = model.ClaimPending
    return nil
}

// GetByID retrieves a claim.  Returns ErrClaimNotFound for missing rows.
func (r *ClaimRepo) GetByID(ctx context.Context, id uint64) (*model.Claim, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+claimColumns+" FROM claims WHERE id=? LIMIT 1", id)
    c, err := scanClaim(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrClaimNotFound
        }
        return nil, err
    }
    return &c, nil
}

// ClaimListFilter narrows and pages the claim listing.
type ClaimListFilter struct {
    Role     string
    UserID   uint64
    Status   string
    Priority string
    PolicyID uint64
    SortBy   string
    SortDesc bool
    Limit    int
    Offset   int
}

var claimSortColumns = map[string]string{
    "created_at":       "created_at",
    "updated_at":       "updated_at",
    "incident_date":    "incident_date",
    "reported_date":    "reported_date",
    "estimated_amount": "estimated_amount",
    "priority":         "priority",
    "status":           "status",
}

// List returns visible claims matching the filter and the unpaginated total.
func (r *ClaimRepo) List(ctx context.Context, f ClaimListFilter) ([]model.Claim, int, error) {
    conds := []string{"1=1"}
    args := []any{}
    if cond, scopeArgs := ScopeClaims(f.Role, f.UserID); cond != "" {
        conds = append(conds, cond)
        args = append(args, scopeArgs...)
    }
    if f.Status != "" {
        conds = append(conds, "status = ?")
        args = append(args, f.Status)
    }
    if f.Priority != "" {
        conds = append(conds, "priority = ?")
        args = append(args, f.Priority)
    }
    if f.PolicyID != 0 {
        conds = append(conds, "policy_id = ?")
        args = append(args, f.PolicyID)
    }
    where := strings.Join(conds, " AND ")

    var total int
    if err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM claims WHERE "+where, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    sortCol, ok := claimSortColumns[f.SortBy]
    if !ok {
        sortCol = "created_at"
    }
    dir := "ASC"
    if f.SortDesc {
        dir = "DESC"
    }
    q := fmt.Sprintf("SELECT %s FROM claims WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
        claimColumns, where, sortCol, dir)
    rows, err := r.DB.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    var out []model.Claim
    for rows.Next() {
        c, err := scanClaim(rows)
        if err != nil {
            return nil, 0, err
        }
        out = append(out, c)
    }
    return out, total, rows.Err()
}

// ListScoped returns every claim visible to the requester, newest first.
func (r *ClaimRepo) ListScoped(ctx context.Context, role string, userID uint64) ([]model.Claim, error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopeClaims(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+claimColumns+" FROM claims WHERE "+conds+" ORDER BY created_at DESC", args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Claim
    for rows.Next() {
        c, err := scanClaim(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

// ClaimUpdate carries the writable claim fields.  Which of these a given
// role may set is decided by ClaimUpdatableField before the repository is
// ever reached.
type ClaimUpdate struct {
    Description     *string
    EstimatedAmount *float64
    Location        *model.Location
    Status          *string
    Priority        *string
    Investigation   *model.Investigation
    Payment         *model.Payment
    Appeal          *model.Appeal
}

// Update applies the non-nil fields and records a "Claim Updated" timeline
// entry in the same transaction.
func (r *ClaimRepo) Update(ctx context.Context, id uint64, upd ClaimUpdate, performedBy uint64) error {
    sets := []string{}
    args := []any{}
    changed := []string{}
    if upd.Description != nil {
        sets = append(sets, "description=?")
        args = append(args, *upd.Description)
        changed = append(changed, "description")
    }
    if upd.EstimatedAmount != nil {
        sets = append(sets, "estimated_amount=?")
        args = append(args, *upd.EstimatedAmount)
        changed = append(changed, "estimated_amount")
    }
    if upd.Location != nil {
        b, err := marshalJSON(*upd.Location)
        if err != nil {
            return err
        }
        sets = append(sets, "location=?")
        args = append(args, b)
        changed = append(changed, "location")
    }
    if upd.Status != nil {
        sets = append(sets, "status=?")
        args = append(args, *upd.Status)
        changed = append(changed, "status")
    }
    if upd.Priority != nil {
        sets = append(sets, "priority=?")
        args = append(args, *upd.Priority)
        changed = append(changed, "priority")
    }
    if upd.Investigation != nil {
        b, err := marshalJSON(*upd.Investigation)
        if err != nil {
            return err
        }
        sets = append(sets, "investigation=?", "investigation_assigned_to=?")
        args = append(args, b, nullableID(upd.Investigation.AssignedTo))
        changed = append(changed, "investigation")
    }
    if upd.Payment != nil {
        b, err := marshalJSON(*upd.Payment)
        if err != nil {
            return err
        }
        sets = append(sets, "payment=?")
        args = append(args, b)
        changed = append(changed, "payment")
    }
    if upd.Appeal != nil {
        b, err := marshalJSON(*upd.Appeal)
        if err != nil {
            return err
        }
        sets = append(sets, "appeal=?")
        args = append(args, b)
        changed = append(changed, "appeal")
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, id)

    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    res, err := tx.ExecContext(ctx,
        "UPDATE claims SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
    if err != nil {
        return err
    }
    if err := mustAffect(res, ErrClaimNotFound); err != nil {
        return err
    }
    if err := addTimeline(ctx, tx, id, "Claim Updated",
        "Updated "+strings.Join(changed, ", "), performedBy); err != nil {
        return err
    }
    return tx.Commit()
}

// SetStatus moves a claim to a new status and records the transition.
func (r *ClaimRepo) SetStatus(ctx context.Context, id uint64, newStatus, reason string, performedBy uint64) error {
    return r.transition(ctx, id, performedBy, func(tx *sql.Tx, cur *model.Claim) (string, string, error) {
        if _, err := tx.ExecContext(ctx,
            "UPDATE claims SET status=? WHERE id=?", newStatus, id); err != nil {
            return "", "", err
        }
        desc := fmt.Sprintf("Status changed from %s to %s", cur.Status, newStatus)
        if reason != "" {
            desc += ": " + reason
        }
        return "Status Updated", desc, nil
    })
}

// AssignInvestigator puts the claim under investigation by the given agent.
func (r *ClaimRepo) AssignInvestigator(ctx context.Context, id uint64, agentID uint64, estimatedCompletion *time.Time, performedBy uint64) error {
    return r.transition(ctx, id, performedBy, func(tx *sql.Tx, cur *model.Claim) (string, string, error) {
        now := time.Now().UTC()
        inv := cur.Investigation
        inv.AssignedTo = &agentID
        inv.StartDate = &now
        inv.EstimatedCompletion = estimatedCompletion
        b, err := marshalJSON(inv)
        if err != nil {
            return "", "", err
        }
        if _, err := tx.ExecContext(ctx,
            "UPDATE claims SET status=?, investigation=?, investigation_assigned_to=? WHERE id=?",
            model.ClaimInvestigating, b, agentID, id); err != nil {
            return "", "", err
        }
        return "Investigator Assigned", fmt.Sprintf("Investigation assigned to user %d", agentID), nil
    })
}

// Approve sets the approved amount and moves the claim to approved.
func (r *ClaimRepo) Approve(ctx context.Context, id uint64, amount float64, performedBy uint64) error {
    return r.transition(ctx, id, performedBy, func(tx *sql.Tx, cur *model.Claim) (string, string, error) {
        if _, err := tx.ExecContext(ctx,
            "UPDATE claims SET status=?, approved_amount=? WHERE id=?",
            model.ClaimApproved, amount, id); err != nil {
            return "", "", err
        }
        return "Claim Approved", fmt.Sprintf("Approved for $%.2f", amount), nil
    })
}

// Deny moves the claim to denied with the stated reason.
func (r *ClaimRepo) Deny(ctx context.Context, id uint64, reason string, performedBy uint64) error {
    return r.transition(ctx, id, performedBy, func(tx *sql.Tx, cur *model.Claim) (string, string, error) {
        if _, err := tx.ExecContext(ctx,
            "UPDATE claims SET status=? WHERE id=?", model.ClaimDenied, id); err != nil {
            return "", "", err
        }
        desc := "Claim denied"
        if reason != "" {
            desc += ": " + reason
        }
        return "Claim Denied", desc, nil
    })
}

// Close moves the claim to closed.
func (r *ClaimRepo) Close(ctx context.Context, id uint64, performedBy uint64) error {
    return r.transition(ctx, id, performedBy, func(tx *sql.Tx, cur *model.Claim) (string, string, error) {
        if _, err := tx.ExecContext(ctx,
            "UPDATE claims SET status=? WHERE id=?", model.ClaimClosed, id); err != nil {
            return "", "", err
        }
        return "Claim Closed", "Claim closed", nil
    })
}

// transition loads the claim, applies fn and writes fn's timeline entry,
// all in one transaction.
func (r *ClaimRepo) transition(ctx context.Context, id uint64, performedBy uint64, fn func(*sql.Tx, *model.Claim) (action, description string, err error)) error {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    row := tx.QueryRowContext(ctx,
        "SELECT "+claimColumns+" FROM claims WHERE id=? FOR UPDATE", id)
    cur, err := scanClaim(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrClaimNotFound
        }
        return err
    }
    action, description, err := fn(tx, &cur)
    if err != nil {
        return err
    }
    if err := addTimeline(ctx, tx, id, action, description, performedBy); err != nil {
        return err
    }
    return tx.Commit()
}

// Delete removes a claim and its timeline.  Only pending claims may be
// deleted; anything further along returns ErrClaimNotDeletable.
func (r *ClaimRepo) Delete(ctx context.Context, id uint64) error {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    var status string
    err = tx.QueryRowContext(ctx,
        "SELECT status FROM claims WHERE id=? FOR UPDATE", id).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrClaimNotFound
    }
    if err != nil {
        return err
    }
    if status != model.ClaimPending {
        return ErrClaimNotDeletable
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM claim_timeline WHERE claim_id=?", id); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM claim_notes WHERE claim_id=?", id); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM claims WHERE id=?", id); err != nil {
        return err
    }
    return tx.Commit()
}

// AddNote appends a note to a claim.
func (r *ClaimRepo) AddNote(ctx context.Context, n *model.ClaimNote) error {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    res, err := tx.ExecContext(ctx,
        "INSERT INTO claim_notes (claim_id, content, author_id, is_internal) VALUES (?,?,?,?)",
        n.ClaimID, n.Content, n.AuthorID, n.IsInternal)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    if err := addTimeline(ctx, tx, n.ClaimID, "Note Added", "Note added to claim", n.AuthorID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    n.ID = uint64(id)
    n.CreatedAt = time.Now().UTC()
    return nil
}

// ListNotes returns the notes on a claim, oldest first.  Internal notes are
// filtered out unless includeInternal is set (agents and admins).
func (r *ClaimRepo) ListNotes(ctx context.Context, claimID uint64, includeInternal bool) ([]model.ClaimNote, error) {
    q := "SELECT id, claim_id, content, author_id, is_internal, created_at FROM claim_notes WHERE claim_id=?"
    if !includeInternal {
        q += " AND is_internal=0"
    }
    rows, err := r.DB.QueryContext(ctx, q+" ORDER BY created_at", claimID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.ClaimNote
    for rows.Next() {
        var n model.ClaimNote
        if err := rows.Scan(&n.ID, &n.ClaimID, &n.Content, &n.AuthorID, &n.IsInternal, &n.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, n)
    }
    return out, rows.Err()
}

// Timeline returns the audit trail of a claim in chronological order.
func (r *ClaimRepo) Timeline(ctx context.Context, claimID uint64) ([]model.TimelineEntry, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, claim_id, action, description, performed_by, created_at FROM claim_timeline WHERE claim_id=? ORDER BY created_at, id",
        claimID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.TimelineEntry
    for rows.Next() {
        var e model.TimelineEntry
        if err := rows.Scan(&e.ID, &e.ClaimID, &e.Action, &e.Description, &e.PerformedBy, &e.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

// CountsByStatus groups visible claims by status.
func (r *ClaimRepo) CountsByStatus(ctx context.Context, role string, userID uint64) (map[string]int, error) {
    return r.groupCount(ctx, "status", role, userID)
}

// CountsByPriority groups visible claims by priority.
func (r *ClaimRepo) CountsByPriority(ctx context.Context, role string, userID uint64) (map[string]int, error) {
    return r.groupCount(ctx, "priority", role, userID)
}

func (r *ClaimRepo) groupCount(ctx context.Context, col, role string, userID uint64) (map[string]int, error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopeClaims(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+col+", COUNT(*) FROM claims WHERE "+conds+" GROUP BY "+col, args...)
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

// TotalAmounts sums the estimated and approved amounts over visible claims.
func (r *ClaimRepo) TotalAmounts(ctx context.Context, role string, userID uint64) (estimated, approved float64, err error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopeClaims(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    err = r.DB.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(estimated_amount), 0), COALESCE(SUM(COALESCE(approved_amount, 0)), 0)
         FROM claims WHERE `+conds, args...).Scan(&estimated, &approved)
    return estimated, approved, err
}

// Recent returns the most recently updated visible claims.
func (r *ClaimRepo) Recent(ctx context.Context, role string, userID uint64, limit int) ([]model.Claim, error) {
    conds := "1=1"
    args := []any{}
    if cond, scopeArgs := ScopeClaims(role, userID); cond != "" {
        conds = cond
        args = scopeArgs
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+claimColumns+" FROM claims WHERE "+conds+" ORDER BY updated_at DESC LIMIT ?",
        append(args, limit)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Claim
    for rows.Next() {
        c, err := scanClaim(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}
