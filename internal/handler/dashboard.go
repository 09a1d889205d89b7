package handler

import (
    "fmt"
    "math"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
)

// DashboardHandler aggregates policies, claims and users into role-aware
// summaries.  All numbers are computed over the requester's visibility
// scope, so a customer's dashboard only ever counts their own records.
type DashboardHandler struct {
    Users    *repository.UserRepo
    Policies *repository.PolicyRepo
    Claims   *repository.ClaimRepo
}

func NewDashboardHandler(u *repository.UserRepo, p *repository.PolicyRepo, cl *repository.ClaimRepo) *DashboardHandler {
    return &DashboardHandler{Users: u, Policies: p, Claims: cl}
}

// Overview returns the headline numbers for the requester's role.
func (h *DashboardHandler) Overview(c echo.Context) error {
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    policies, err := h.Policies.ListScoped(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load dashboard")
    }
    claims, err := h.Claims.ListScoped(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load dashboard")
    }

    var (
        activePolicies int
        expiringSoon   int
        totalCoverage  float64
        monthlyPremium float64
    )
    for _, p := range policies {
        if p.IsLive() {
            activePolicies++
            totalCoverage += p.Coverage.TotalLimit()
            monthlyPremium += model.MonthlyEquivalent(p.Premium.Amount, p.Premium.Frequency)
            if days := p.DaysUntilExpiration(); days > 0 && days <= 30 {
                expiringSoon++
            }
        }
    }
    var openClaims, pendingClaims, approvedClaims int
    var approvedTotal float64
    for _, cl := range claims {
        switch cl.Status {
        case model.ClaimPending:
            pendingClaims++
            openClaims++
        case model.ClaimInvestigating, model.ClaimAppealed:
            openClaims++
        case model.ClaimApproved:
            approvedClaims++
            if cl.ApprovedAmount != nil {
                approvedTotal += *cl.ApprovedAmount
            }
        }
    }

    recentPolicies, err := h.Policies.Recent(ctx, role, uid, 5)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load dashboard")
    }
    recentClaims, err := h.Claims.Recent(ctx, role, uid, 5)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load dashboard")
    }

    data := echo.Map{
        "total_policies":  len(policies),
        "active_policies": activePolicies,
        "expiring_soon":   expiringSoon,
        "total_coverage":  round2(totalCoverage),
        "monthly_premium": round2(monthlyPremium),
        "total_claims":    len(claims),
        "open_claims":     openClaims,
        "pending_claims":  pendingClaims,
        "approved_claims": approvedClaims,
        "approved_total":  round2(approvedTotal),
        "recent_policies": policyViews(recentPolicies),
        "recent_claims":   claimViews(recentClaims),
    }

    if role == model.RoleAdmin {
        policiesByType := map[string]int{}
        for _, p := range policies {
            policiesByType[p.PolicyType]++
        }
        claimsByStatus := map[string]int{}
        for _, cl := range claims {
            claimsByStatus[cl.Status]++
        }
        data["policies_by_type"] = policiesByType
        data["claims_by_status"] = claimsByStatus
    }
    if role == model.RoleAgent {
        assigned := 0
        for _, cl := range claims {
            if cl.Investigation.AssignedTo != nil && *cl.Investigation.AssignedTo == uid {
                assigned++
            }
        }
        data["assigned_investigations"] = assigned
    }
    return ok(c, http.StatusOK, data)
}

// Stats returns the full statistical breakdown: policies by type and status,
// claims by status and priority, and aggregate amounts.
func (h *DashboardHandler) Stats(c echo.Context) error {
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    claimsByStatus, err := h.Claims.CountsByStatus(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute stats")
    }
    claimsByPriority, err := h.Claims.CountsByPriority(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute stats")
    }
    estimated, approved, err := h.Claims.TotalAmounts(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute stats")
    }

    policies, err := h.Policies.ListScoped(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not compute stats")
    }
    policiesByType := map[string]int{}
    policiesByStatus := map[string]int{}
    var monthlyPremium, coverageTotal float64
    for _, p := range policies {
        policiesByType[p.PolicyType]++
        policiesByStatus[p.Status]++
        if p.IsLive() {
            monthlyPremium += model.MonthlyEquivalent(p.Premium.Amount, p.Premium.Frequency)
            coverageTotal += p.Coverage.TotalLimit()
        }
    }

    data := echo.Map{
        "policies_by_type":       policiesByType,
        "policies_by_status":     policiesByStatus,
        "claims_by_status":       claimsByStatus,
        "claims_by_priority":     claimsByPriority,
        "monthly_premium":        round2(monthlyPremium),
        "annual_premium":         round2(monthlyPremium * 12),
        "coverage_total":         round2(coverageTotal),
        "total_estimated_amount": round2(estimated),
        "total_approved_amount":  round2(approved),
    }

    if role == model.RoleAdmin {
        usersByRole, err := h.Users.CountByRole(ctx)
        if err != nil {
            return fail(c, http.StatusInternalServerError, "could not compute stats")
        }
        revenue, err := h.Policies.TotalActivePremium(ctx)
        if err != nil {
            return fail(c, http.StatusInternalServerError, "could not compute stats")
        }
        totalUsers := 0
        for _, n := range usersByRole {
            totalUsers += n
        }
        data["total_users"] = totalUsers
        data["users_by_role"] = usersByRole
        data["active_premium_revenue"] = round2(revenue)
    }
    return ok(c, http.StatusOK, data)
}

type activityItem struct {
    Kind      string    `json:"kind"` // policy | claim | user
    ID        uint64    `json:"id"`
    Reference string    `json:"reference"`
    Status    string    `json:"status"`
    UpdatedAt time.Time `json:"updated_at"`
}

// Activity returns the most recently touched policies and claims in scope,
// merged and ordered newest first.
func (h *DashboardHandler) Activity(c echo.Context) error {
    uid, role := currentUser(c)
    limit := queryInt(c, "limit", 10)
    if limit < 1 || limit > 50 {
        limit = 10
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    policies, err := h.Policies.Recent(ctx, role, uid, limit)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load activity")
    }
    claims, err := h.Claims.Recent(ctx, role, uid, limit)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load activity")
    }

    items := make([]activityItem, 0, len(policies)+len(claims))
    for _, p := range policies {
        items = append(items, activityItem{
            Kind: "policy", ID: p.ID, Reference: p.PolicyNumber,
            Status: p.Status, UpdatedAt: p.UpdatedAt,
        })
    }
    for _, cl := range claims {
        items = append(items, activityItem{
            Kind: "claim", ID: cl.ID, Reference: cl.ClaimNumber,
            Status: cl.Status, UpdatedAt: cl.UpdatedAt,
        })
    }
    if role == model.RoleAdmin {
        users, err := h.Users.RecentUsers(ctx, limit)
        if err != nil {
            return fail(c, http.StatusInternalServerError, "could not load activity")
        }
        for _, u := range users {
            items = append(items, activityItem{
                Kind: "user", ID: u.ID, Reference: u.Email,
                Status: u.Role, UpdatedAt: u.UpdatedAt,
            })
        }
    }
    sort.Slice(items, func(i, j int) bool {
        return items[i].UpdatedAt.After(items[j].UpdatedAt)
    })
    if len(items) > limit {
        items = items[:limit]
    }
    return ok(c, http.StatusOK, items)
}

type notification struct {
    Type     string    `json:"type"`
    Priority string    `json:"priority"` // high | medium | low
    Message  string    `json:"message"`
    Date     time.Time `json:"date"`
}

var notifPriorityWeight = map[string]int{"high": 3, "medium": 2, "low": 1}

// Notifications derives actionable alerts from the requester's records:
// policies expiring within 30 days, premiums due within 7 days, and claims
// waiting on action.  High priority sorts first; ties break on recency.
func (h *DashboardHandler) Notifications(c echo.Context) error {
    uid, role := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    policies, err := h.Policies.ListScoped(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load notifications")
    }
    claims, err := h.Claims.ListScoped(ctx, role, uid)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load notifications")
    }

    now := time.Now()
    var notifs []notification
    for _, p := range policies {
        if p.Status != model.PolicyActive {
            continue
        }
        if days := p.DaysUntilExpiration(); days > 0 && days <= 30 {
            prio := "medium"
            if days <= 7 {
                prio = "high"
            }
            notifs = append(notifs, notification{
                Type:     "policy_expiring",
                Priority: prio,
                Message:  fmt.Sprintf("Policy %s expires in %d days", p.PolicyNumber, days),
                Date:     p.EndDate,
            })
        }
        if due := p.Premium.NextDueDate; !due.IsZero() && due.After(now) && due.Before(now.AddDate(0, 0, 7)) {
            notifs = append(notifs, notification{
                Type:     "premium_due",
                Priority: "high",
                Message:  fmt.Sprintf("Premium of $%.2f due for policy %s", p.Premium.Amount, p.PolicyNumber),
                Date:     due,
            })
        }
    }
    for _, cl := range claims {
        switch {
        case cl.Priority == model.PriorityUrgent && cl.Status != model.ClaimClosed && cl.Status != model.ClaimDenied:
            notifs = append(notifs, notification{
                Type:     "urgent_claim",
                Priority: "high",
                Message:  fmt.Sprintf("Urgent claim %s requires attention", cl.ClaimNumber),
                Date:     cl.UpdatedAt,
            })
        case cl.Status == model.ClaimPending:
            notifs = append(notifs, notification{
                Type:     "pending_claim",
                Priority: "medium",
                Message:  fmt.Sprintf("Claim %s is awaiting review", cl.ClaimNumber),
                Date:     cl.ReportedDate,
            })
        case cl.Status == model.ClaimApproved:
            notifs = append(notifs, notification{
                Type:     "claim_approved",
                Priority: "low",
                Message:  fmt.Sprintf("Claim %s was approved", cl.ClaimNumber),
                Date:     cl.UpdatedAt,
            })
        }
    }
    sort.Slice(notifs, func(i, j int) bool {
        wi, wj := notifPriorityWeight[notifs[i].Priority], notifPriorityWeight[notifs[j].Priority]
        if wi != wj {
            return wi > wj
        }
        return notifs[i].Date.After(notifs[j].Date)
    })
    return ok(c, http.StatusOK, notifs)
}

func round2(x float64) float64 {
    return math.Round(x*100) / 100
}
