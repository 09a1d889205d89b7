package handler

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/service"
)

// ClaimHandler bundles dependencies for the claim endpoints.  Events may be
// nil when no broker is configured; approval events are then skipped.
type ClaimHandler struct {
    Claims   *repository.ClaimRepo
    Policies *repository.PolicyRepo
    Events   *service.EventPublisher
}

func NewClaimHandler(cl *repository.ClaimRepo, p *repository.PolicyRepo, ev *service.EventPublisher) *ClaimHandler {
    return &ClaimHandler{Claims: cl, Policies: p, Events: ev}
}

// claimView is a claim plus its derived fields.
type claimView struct {
    model.Claim
    AgeDays            int     `json:"age_days"`
    ProcessingTimeDays *int    `json:"processing_time_days,omitempty"`
    ClaimValue         float64 `json:"claim_value"`
    NetPayout          float64 `json:"net_payout"`
}

func newClaimView(cl model.Claim) claimView {
    return claimView{
        Claim:              cl,
        AgeDays:            cl.Age(),
        ProcessingTimeDays: cl.ProcessingTime(),
        ClaimValue:         cl.ClaimValue(),
        NetPayout:          cl.NetPayout(),
    }
}

func claimViews(cs []model.Claim) []claimView {
    out := make([]claimView, 0, len(cs))
    for _, cl := range cs {
        out = append(out, newClaimView(cl))
    }
    return out
}

// List returns the claims visible to the requester with optional filters.
func (h *ClaimHandler) List(c echo.Context) error {
    uid, role := currentUser(c)
    limit, offset, page := pagination(c)

    f := repository.ClaimListFilter{
        Role:     role,
        UserID:   uid,
        Status:   c.QueryParam("status"),
        Priority: c.QueryParam("priority"),
        SortBy:   c.QueryParam("sort_by"),
        SortDesc: c.QueryParam("order") != "asc",
        Limit:    limit,
        Offset:   offset,
    }
    if v := c.QueryParam("policy_id"); v != "" {
        if n, err := strconv.ParseUint(v, 10, 64); err == nil {
            f.PolicyID = n
        }
    }
    if f.Status != "" && !model.ValidClaimStatus(f.Status) {
        return fail(c, http.StatusBadRequest, "invalid status filter")
    }
    if f.Priority != "" && !model.ValidPriority(f.Priority) {
        return fail(c, http.StatusBadRequest, "invalid priority filter")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    claims, total, err := h.Claims.List(ctx, f)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list claims")
    }
    return ok(c, http.StatusOK, echo.Map{
        "claims":     claimViews(claims),
        "pagination": newListMeta(page, limit, total),
    })
}

// loadVisible fetches a claim and applies the requester's scope, with the
// same 404-before-403 ordering as policies.
func (h *ClaimHandler) loadVisible(c echo.Context) (*model.Claim, error) {
    id, okID := pathID(c)
    if !okID {
        return nil, fail(c, http.StatusBadRequest, "invalid claim id")
    }
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    cl, err := h.Claims.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrClaimNotFound) {
            return nil, fail(c, http.StatusNotFound, "claim not found")
        }
        return nil, fail(c, http.StatusInternalServerError, "could not load claim")
    }
    if !repository.ClaimVisible(cl, role, uid) {
        return nil, fail(c, http.StatusForbidden, "access denied")
    }
    return cl, nil
}

// Get returns a single claim with its derived fields.
func (h *ClaimHandler) Get(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    return ok(c, http.StatusOK, newClaimView(*cl))
}

type claimCreateReq struct {
    PolicyID        uint64         `json:"policy_id"`
    Type            string         `json:"type"`
    Priority        string         `json:"priority"`
    IncidentDate    time.Time      `json:"incident_date"`
    Description     string         `json:"description"`
    EstimatedAmount float64        `json:"estimated_amount"`
    Deductible      float64        `json:"deductible"`
    Location        model.Location `json:"location"`
}

// Create files a claim.  Customers may only file against their own
// policies; agents and admins may file on any customer's behalf.  The
// claim inherits its customer and agent from the policy.
func (h *ClaimHandler) Create(c echo.Context) error {
    var req claimCreateReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    var fieldErrs []string
    if req.PolicyID == 0 {
        fieldErrs = append(fieldErrs, "policy_id is required")
    }
    if !model.ValidCoverageType(req.Type) {
        fieldErrs = append(fieldErrs, "type must be a recognized coverage type")
    }
    if req.IncidentDate.IsZero() {
        fieldErrs = append(fieldErrs, "incident_date is required")
    } else if req.IncidentDate.After(time.Now()) {
        fieldErrs = append(fieldErrs, "incident_date cannot be in the future")
    }
    if strings.TrimSpace(req.Description) == "" {
        fieldErrs = append(fieldErrs, "description is required")
    }
    if req.EstimatedAmount <= 0 {
        fieldErrs = append(fieldErrs, "estimated_amount must be positive")
    }
    if req.Priority == "" {
        req.Priority = model.PriorityMedium
    } else if !model.ValidPriority(req.Priority) {
        fieldErrs = append(fieldErrs, "priority must be a recognized priority")
    }
    if len(fieldErrs) > 0 {
        return failFields(c, http.StatusBadRequest, "validation failed", fieldErrs)
    }

    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    p, err := h.Policies.GetByID(ctx, req.PolicyID)
    if err != nil {
        if errors.Is(err, repository.ErrPolicyNotFound) {
            return fail(c, http.StatusNotFound, "policy not found")
        }
        return fail(c, http.StatusInternalServerError, "could not load policy")
    }
    if role == model.RoleCustomer && p.CustomerID != uid {
        return fail(c, http.StatusForbidden, "access denied")
    }

    cl := model.Claim{
        PolicyID:        p.ID,
        CustomerID:      p.CustomerID,
        AgentID:         p.AgentID,
        Type:            req.Type,
        Priority:        req.Priority,
        IncidentDate:    req.IncidentDate,
        ReportedDate:    time.Now().UTC(),
        Description:     strings.TrimSpace(req.Description),
        EstimatedAmount: req.EstimatedAmount,
        Deductible:      req.Deductible,
        Location:        req.Location,
    }
    if err := h.Claims.Create(ctx, &cl); err != nil {
        return fail(c, http.StatusInternalServerError, "could not file claim")
    }
    return okMsg(c, http.StatusCreated, newClaimView(cl), "claim filed")
}

// Update applies partial changes to a claim.  The writable field set depends
// on the requester's role; touching a field outside the allowed set fails
// the whole request with 403 instead of silently dropping the field.
func (h *ClaimHandler) Update(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var raw map[string]json.RawMessage
    if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    uid, role := currentUser(c)
    for field := range raw {
        if !repository.ClaimUpdatableField(role, field) {
            return fail(c, http.StatusForbidden, "field not permitted: "+field)
        }
    }

    var upd repository.ClaimUpdate
    for field, val := range raw {
        var bindErr error
        switch field {
        case "description":
            bindErr = json.Unmarshal(val, &upd.Description)
        case "estimated_amount":
            bindErr = json.Unmarshal(val, &upd.EstimatedAmount)
        case "location":
            bindErr = json.Unmarshal(val, &upd.Location)
        case "status":
            bindErr = json.Unmarshal(val, &upd.Status)
        case "priority":
            bindErr = json.Unmarshal(val, &upd.Priority)
        case "investigation":
            bindErr = json.Unmarshal(val, &upd.Investigation)
        case "payment":
            bindErr = json.Unmarshal(val, &upd.Payment)
        case "appeal":
            bindErr = json.Unmarshal(val, &upd.Appeal)
        }
        if bindErr != nil {
            return fail(c, http.StatusBadRequest, "invalid value for "+field)
        }
    }
    if upd.Status != nil && !model.ValidClaimStatus(*upd.Status) {
        return fail(c, http.StatusBadRequest, "invalid status")
    }
    if upd.Priority != nil && !model.ValidPriority(*upd.Priority) {
        return fail(c, http.StatusBadRequest, "invalid priority")
    }
    if upd.EstimatedAmount != nil && *upd.EstimatedAmount <= 0 {
        return fail(c, http.StatusBadRequest, "estimated_amount must be positive")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.Update(ctx, cl.ID, upd, uid); err != nil {
        if errors.Is(err, repository.ErrClaimNotFound) {
            return fail(c, http.StatusNotFound, "claim not found")
        }
        return fail(c, http.StatusInternalServerError, "could not update claim")
    }
    fresh, err := h.Claims.GetByID(ctx, cl.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load claim")
    }
    return okMsg(c, http.StatusOK, newClaimView(*fresh), "claim updated")
}

type statusReq struct {
    Status string `json:"status"`
    Reason string `json:"reason"`
}

// SetStatus moves a claim to a new status.  Any valid status is accepted;
// the timeline records the transition either way.
func (h *ClaimHandler) SetStatus(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var req statusReq
    if err := c.Bind(&req); err != nil || !model.ValidClaimStatus(req.Status) {
        return fail(c, http.StatusBadRequest, "a valid status is required")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.SetStatus(ctx, cl.ID, req.Status, strings.TrimSpace(req.Reason), uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not update status")
    }
    return h.freshView(c, cl.ID, "status updated")
}

type assignReq struct {
    AgentID             uint64     `json:"agent_id"`
    EstimatedCompletion *time.Time `json:"estimated_completion"`
}

// Assign puts the claim under investigation by the given agent.
func (h *ClaimHandler) Assign(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var req assignReq
    if err := c.Bind(&req); err != nil || req.AgentID == 0 {
        return fail(c, http.StatusBadRequest, "agent_id is required")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.AssignInvestigator(ctx, cl.ID, req.AgentID, req.EstimatedCompletion, uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not assign investigator")
    }
    return h.freshView(c, cl.ID, "investigator assigned")
}

type approveReq struct {
    Amount float64 `json:"amount"`
}

// Approve settles the claim for the given amount and emits an approval
// event for downstream consumers.
func (h *ClaimHandler) Approve(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var req approveReq
    if err := c.Bind(&req); err != nil || req.Amount <= 0 {
        return fail(c, http.StatusBadRequest, "a positive amount is required")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.Approve(ctx, cl.ID, req.Amount, uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not approve claim")
    }
    if h.Events != nil {
        h.Events.ClaimApproved(cl.ID, cl.ClaimNumber, cl.PolicyID, cl.CustomerID, req.Amount, uid)
    }
    return h.freshView(c, cl.ID, "claim approved")
}

type denyReq struct {
    Reason string `json:"reason"`
}

// Deny rejects the claim with a stated reason.
func (h *ClaimHandler) Deny(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var req denyReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
        return fail(c, http.StatusBadRequest, "reason is required")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.Deny(ctx, cl.ID, strings.TrimSpace(req.Reason), uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not deny claim")
    }
    return h.freshView(c, cl.ID, "claim denied")
}

// Close marks the claim closed.
func (h *ClaimHandler) Close(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.Close(ctx, cl.ID, uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not close claim")
    }
    return h.freshView(c, cl.ID, "claim closed")
}

// Delete removes a pending claim.  Claims that have entered the workflow
// can no longer be deleted and answer 409.
func (h *ClaimHandler) Delete(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.Delete(ctx, cl.ID); err != nil {
        if errors.Is(err, repository.ErrClaimNotDeletable) {
            return fail(c, http.StatusConflict, "only pending claims can be deleted")
        }
        if errors.Is(err, repository.ErrClaimNotFound) {
            return fail(c, http.StatusNotFound, "claim not found")
        }
        return fail(c, http.StatusInternalServerError, "could not delete claim")
    }
    return okMsg(c, http.StatusOK, nil, "claim deleted")
}

type claimNoteReq struct {
    Content    string `json:"content"`
    IsInternal bool   `json:"is_internal"`
}

// AddNote attaches a note to a claim.  Customers cannot write internal
// notes; the attempt is rejected rather than downgraded.
func (h *ClaimHandler) AddNote(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    var req claimNoteReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
        return fail(c, http.StatusBadRequest, "content is required")
    }
    uid, role := currentUser(c)
    if req.IsInternal && role == model.RoleCustomer {
        return fail(c, http.StatusForbidden, "internal notes are restricted")
    }
    note := model.ClaimNote{
        ClaimID:    cl.ID,
        Content:    strings.TrimSpace(req.Content),
        AuthorID:   uid,
        IsInternal: req.IsInternal,
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Claims.AddNote(ctx, &note); err != nil {
        return fail(c, http.StatusInternalServerError, "could not add note")
    }
    return ok(c, http.StatusCreated, note)
}

// ListNotes returns the notes on a claim.  Internal notes are invisible to
// customers.
func (h *ClaimHandler) ListNotes(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    _, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    notes, err := h.Claims.ListNotes(ctx, cl.ID, role != model.RoleCustomer)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list notes")
    }
    return ok(c, http.StatusOK, notes)
}

// Timeline returns the audit trail of a claim in chronological order.
func (h *ClaimHandler) Timeline(c echo.Context) error {
    cl, err := h.loadVisible(c)
    if cl == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    entries, err := h.Claims.Timeline(ctx, cl.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load timeline")
    }
    return ok(c, http.StatusOK, entries)
}

// Analytics summarizes the requester's visible claims: counts by status and
// priority, total amounts and the most recent activity.
func (h *ClaimHandler) Analytics(c echo.Context) error {
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    byStatus, err := h.Claims.CountsByStatus(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    byPriority, err := h.Claims.CountsByPriority(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    estimated, approved, err := h.Claims.TotalAmounts(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    recent, err := h.Claims.Recent(ctx, role, uid, 5)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    total := 0
    for _, n := range byStatus {
        total += n
    }
    return ok(c, http.StatusOK, echo.Map{
        "total_claims":           total,
        "by_status":              byStatus,
        "by_priority":            byPriority,
        "total_estimated_amount": estimated,
        "total_approved_amount":  approved,
        "recent_claims":          claimViews(recent),
    })
}

func (h *ClaimHandler) freshView(c echo.Context, id uint64, message string) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    fresh, err := h.Claims.GetByID(ctx, id)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load claim")
    }
    return okMsg(c, http.StatusOK, newClaimView(*fresh), message)
}
