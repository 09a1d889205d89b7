package handler

import (
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
)

// PolicyHandler bundles dependencies for the policy endpoints.
type PolicyHandler struct {
    Policies *repository.PolicyRepo
    Users    *repository.UserRepo
}

func NewPolicyHandler(p *repository.PolicyRepo, u *repository.UserRepo) *PolicyHandler {
    return &PolicyHandler{Policies: p, Users: u}
}

// policyView is a policy plus its derived fields.  The derived numbers are
// computed at read time so they can never go stale.
type policyView struct {
    model.Policy
    DurationDays        int     `json:"duration_days"`
    DaysUntilExpiration int     `json:"days_until_expiration"`
    Expired             bool    `json:"is_expired"`
    MonthlyPremium      float64 `json:"monthly_premium"`
    TotalCoverageLimit  float64 `json:"total_coverage_limit"`
}

func newPolicyView(p model.Policy) policyView {
    return policyView{
        Policy:              p,
        DurationDays:        p.Duration(),
        DaysUntilExpiration: p.DaysUntilExpiration(),
        Expired:             p.IsExpired(),
        MonthlyPremium:      model.MonthlyEquivalent(p.Premium.Amount, p.Premium.Frequency),
        TotalCoverageLimit:  p.Coverage.TotalLimit(),
    }
}

func policyViews(ps []model.Policy) []policyView {
    out := make([]policyView, 0, len(ps))
    for _, p := range ps {
        out = append(out, newPolicyView(p))
    }
    return out
}

// List returns the policies visible to the requester with optional filters.
func (h *PolicyHandler) List(c echo.Context) error {
    uid, role := currentUser(c)
    limit, offset, page := pagination(c)

    f := repository.PolicyListFilter{
        Role:       role,
        UserID:     uid,
        Status:     c.QueryParam("status"),
        PolicyType: c.QueryParam("policy_type"),
        SortBy:     c.QueryParam("sort_by"),
        SortDesc:   c.QueryParam("order") != "asc",
        Limit:      limit,
        Offset:     offset,
    }
    if v := c.QueryParam("customer_id"); v != "" {
        if n, err := strconv.ParseUint(v, 10, 64); err == nil {
            f.CustomerID = n
        }
    }
    if v := c.QueryParam("agent_id"); v != "" {
        if n, err := strconv.ParseUint(v, 10, 64); err == nil {
            f.AgentID = n
        }
    }
    if f.Status != "" && !model.ValidPolicyStatus(f.Status) {
        return fail(c, http.StatusBadRequest, "invalid status filter")
    }
    if f.PolicyType != "" && !model.ValidCoverageType(f.PolicyType) {
        return fail(c, http.StatusBadRequest, "invalid policy_type filter")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    policies, total, err := h.Policies.List(ctx, f)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list policies")
    }
    return ok(c, http.StatusOK, echo.Map{
        "policies":   policyViews(policies),
        "pagination": newListMeta(page, limit, total),
    })
}

// loadVisible fetches a policy and applies the requester's scope.  Missing
// rows 404 before scope is consulted so probing ids cannot distinguish
// "absent" from "someone else's".
func (h *PolicyHandler) loadVisible(c echo.Context) (*model.Policy, error) {
    id, okID := pathID(c)
    if !okID {
        return nil, fail(c, http.StatusBadRequest, "invalid policy id")
    }
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    p, err := h.Policies.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrPolicyNotFound) {
            return nil, fail(c, http.StatusNotFound, "policy not found")
        }
        return nil, fail(c, http.StatusInternalServerError, "could not load policy")
    }
    if !repository.PolicyVisible(p, role, uid) {
        return nil, fail(c, http.StatusForbidden, "access denied")
    }
    return p, nil
}

// Get returns a single policy with its derived fields and a claims summary
// computed from the claims table.
func (h *PolicyHandler) Get(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    summary, err := h.Policies.ClaimsSummary(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load claims summary")
    }
    return ok(c, http.StatusOK, echo.Map{
        "policy":         newPolicyView(*p),
        "claims_summary": summary,
    })
}

type policyCreateReq struct {
    PolicyType   string              `json:"policy_type"`
    CustomerID   uint64              `json:"customer_id"`
    AgentID      *uint64             `json:"agent_id"`
    StartDate    time.Time           `json:"start_date"`
    EndDate      time.Time           `json:"end_date"`
    Premium      model.Premium       `json:"premium"`
    Coverage     model.Coverage      `json:"coverage"`
    InsuredItems []model.InsuredItem `json:"insured_items"`
    AutoRenew    bool                `json:"auto_renew"`
}

// Create issues a new policy.  Agents creating a policy are recorded as its
// agent; admins may assign any agent.
func (h *PolicyHandler) Create(c echo.Context) error {
    var req policyCreateReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    var fieldErrs []string
    if !model.ValidCoverageType(req.PolicyType) {
        fieldErrs = append(fieldErrs, "policy_type must be a recognized coverage type")
    }
    if req.CustomerID == 0 {
        fieldErrs = append(fieldErrs, "customer_id is required")
    }
    if req.StartDate.IsZero() || req.EndDate.IsZero() {
        fieldErrs = append(fieldErrs, "start_date and end_date are required")
    } else if !req.EndDate.After(req.StartDate) {
        fieldErrs = append(fieldErrs, "end_date must be after start_date")
    }
    if req.Premium.Amount <= 0 {
        fieldErrs = append(fieldErrs, "premium.amount must be positive")
    }
    if !model.ValidFrequency(req.Premium.Frequency) {
        fieldErrs = append(fieldErrs, "premium.frequency must be a recognized frequency")
    }
    if len(fieldErrs) > 0 {
        return failFields(c, http.StatusBadRequest, "validation failed", fieldErrs)
    }

    uid, role := currentUser(c)
    agentID := req.AgentID
    if role == model.RoleAgent {
        agentID = &uid
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if _, err := h.Users.GetByID(ctx, req.CustomerID); err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusBadRequest, "customer_id does not reference a user")
        }
        return fail(c, http.StatusInternalServerError, "could not create policy")
    }

    p := model.Policy{
        PolicyType:     req.PolicyType,
        Status:         model.PolicyPending,
        CustomerID:     req.CustomerID,
        AgentID:        agentID,
        StartDate:      req.StartDate,
        EndDate:        req.EndDate,
        Premium:        req.Premium,
        Coverage:       req.Coverage,
        InsuredItems:   req.InsuredItems,
        AutoRenew:      req.AutoRenew,
        LastModifiedBy: &uid,
    }
    if p.Premium.NextDueDate.IsZero() {
        p.Premium.NextDueDate = req.StartDate
    }

    if err := h.Policies.Create(ctx, &p); err != nil {
        return fail(c, http.StatusInternalServerError, "could not create policy")
    }
    return okMsg(c, http.StatusCreated, newPolicyView(p), "policy created")
}

type policyUpdateReq struct {
    PolicyType   *string              `json:"policy_type"`
    Status       *string              `json:"status"`
    AgentID      *uint64              `json:"agent_id"`
    StartDate    *time.Time           `json:"start_date"`
    EndDate      *time.Time           `json:"end_date"`
    Premium      *model.Premium       `json:"premium"`
    Coverage     *model.Coverage      `json:"coverage"`
    InsuredItems *[]model.InsuredItem `json:"insured_items"`
    AutoRenew    *bool                `json:"auto_renew"`
    PolicyNumber *string              `json:"policy_number"`
}

// Update applies partial changes to a policy.  Attempts to rewrite the
// policy number are rejected outright.
func (h *PolicyHandler) Update(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    var req policyUpdateReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if req.PolicyNumber != nil {
        return fail(c, http.StatusBadRequest, "policy_number cannot be changed")
    }
    if req.PolicyType != nil && !model.ValidCoverageType(*req.PolicyType) {
        return fail(c, http.StatusBadRequest, "invalid policy_type")
    }
    if req.Status != nil && !model.ValidPolicyStatus(*req.Status) {
        return fail(c, http.StatusBadRequest, "invalid status")
    }
    if req.Premium != nil && !model.ValidFrequency(req.Premium.Frequency) {
        return fail(c, http.StatusBadRequest, "invalid premium.frequency")
    }

    uid, _ := currentUser(c)
    upd := repository.PolicyUpdate{
        PolicyType:   req.PolicyType,
        Status:       req.Status,
        AgentID:      req.AgentID,
        StartDate:    req.StartDate,
        EndDate:      req.EndDate,
        Premium:      req.Premium,
        Coverage:     req.Coverage,
        InsuredItems: req.InsuredItems,
        AutoRenew:    req.AutoRenew,
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Policies.Update(ctx, p.ID, upd, uid); err != nil {
        if errors.Is(err, repository.ErrPolicyNotFound) {
            return fail(c, http.StatusNotFound, "policy not found")
        }
        return fail(c, http.StatusInternalServerError, "could not update policy")
    }
    fresh, err := h.Policies.GetByID(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load policy")
    }
    return okMsg(c, http.StatusOK, newPolicyView(*fresh), "policy updated")
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// Cancel soft-deletes a policy by marking it cancelled with a reason.
func (h *PolicyHandler) Cancel(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    var req cancelReq
    _ = c.Bind(&req)
    if strings.TrimSpace(req.Reason) == "" {
        req.Reason = "cancelled on request"
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Policies.Cancel(ctx, p.ID, req.Reason, uid); err != nil {
        return fail(c, http.StatusInternalServerError, "could not cancel policy")
    }
    return okMsg(c, http.StatusOK, nil, "policy cancelled")
}

type renewReq struct {
    EndDate           time.Time `json:"end_date"`
    PremiumAdjustment float64   `json:"premium_adjustment"`
}

// Renew opens the next policy term: a new policy starting where this one
// ends, optionally with a premium adjustment, while the current term is
// marked expired.
func (h *PolicyHandler) Renew(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    var req renewReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if req.EndDate.IsZero() {
        // Default to another term of the same length.
        req.EndDate = p.EndDate.AddDate(0, 0, p.Duration())
    }
    if !req.EndDate.After(p.EndDate) {
        return fail(c, http.StatusBadRequest, "end_date must be after the current term")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    renewed, err := h.Policies.Renew(ctx, p, req.EndDate, req.PremiumAdjustment, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not renew policy")
    }
    return okMsg(c, http.StatusCreated, newPolicyView(*renewed), "policy renewed")
}

// Analytics returns the derived figures of a policy: term length, time to
// expiry, coverage totals, the renewal premium estimate and the claims
// breakdown computed from the claims table.
func (h *PolicyHandler) Analytics(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    approved, err := h.Policies.ApprovedClaimCount(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    summary, err := h.Policies.ClaimsSummary(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute analytics")
    }
    return ok(c, http.StatusOK, echo.Map{
        "duration_days":         p.Duration(),
        "days_until_expiration": p.DaysUntilExpiration(),
        "is_expired":            p.IsExpired(),
        "monthly_premium":       model.MonthlyEquivalent(p.Premium.Amount, p.Premium.Frequency),
        "total_coverage_limit":  p.Coverage.TotalLimit(),
        "current_premium":       p.Premium.Amount,
        "renewal_premium":       p.RenewalPremium(approved),
        "approved_claims":       approved,
        "claims_breakdown":      summary,
    })
}

type noteReq struct {
    Content string `json:"content"`
}

// AddNote attaches a note to a policy.
func (h *PolicyHandler) AddNote(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    var req noteReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
        return fail(c, http.StatusBadRequest, "content is required")
    }
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    note, err := h.Policies.AddNote(ctx, p.ID, strings.TrimSpace(req.Content), uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not add note")
    }
    return ok(c, http.StatusCreated, note)
}

// ListNotes returns the notes on a policy.
func (h *PolicyHandler) ListNotes(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    notes, err := h.Policies.ListNotes(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list notes")
    }
    return ok(c, http.StatusOK, notes)
}

type documentReq struct {
    Name    string `json:"name"`
    DocType string `json:"type"`
    URL     string `json:"url"`
}

// AddDocument attaches a document reference to a policy.
func (h *PolicyHandler) AddDocument(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    var req documentReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.URL) == "" {
        return fail(c, http.StatusBadRequest, "name and url are required")
    }
    uid, _ := currentUser(c)
    doc := model.PolicyDocument{
        PolicyID:   p.ID,
        Name:       strings.TrimSpace(req.Name),
        DocType:    strings.TrimSpace(req.DocType),
        URL:        strings.TrimSpace(req.URL),
        UploadedBy: uid,
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Policies.AddDocument(ctx, &doc); err != nil {
        return fail(c, http.StatusInternalServerError, "could not add document")
    }
    return ok(c, http.StatusCreated, doc)
}

// ListDocuments returns the document references on a policy.
func (h *PolicyHandler) ListDocuments(c echo.Context) error {
    p, err := h.loadVisible(c)
    if p == nil {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    docs, err := h.Policies.ListDocuments(ctx, p.ID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list documents")
    }
    return ok(c, http.StatusOK, docs)
}
