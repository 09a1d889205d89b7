package model

import (
    "math"
    "time"
)

// Claim statuses.  Agents and admins may move a claim between any two valid
// statuses; closed and denied are terminal by convention only.
const (
    ClaimPending       = "pending"
    ClaimInvestigating = "investigating"
    ClaimApproved      = "approved"
    ClaimDenied        = "denied"
    ClaimClosed        = "closed"
    ClaimAppealed      = "appealed"
)

// ValidClaimStatus reports whether s is a recognized claim status.
func ValidClaimStatus(s string) bool {
    switch s {
    case ClaimPending, ClaimInvestigating, ClaimApproved, ClaimDenied, ClaimClosed, ClaimAppealed:
        return true
    }
    return false
}

// Claim priorities.
const (
    PriorityLow    = "low"
    PriorityMedium = "medium"
    PriorityHigh   = "high"
    PriorityUrgent = "urgent"
)

// ValidPriority reports whether s is a recognized claim priority.
func ValidPriority(s string) bool {
    switch s {
    case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
        return true
    }
    return false
}

// Location records where an incident happened; stored as a JSON column.
type Location struct {
    Address   string   `json:"address,omitempty"`
    City      string   `json:"city,omitempty"`
    State     string   `json:"state,omitempty"`
    ZipCode   string   `json:"zip_code,omitempty"`
    Latitude  *float64 `json:"latitude,omitempty"`
    Longitude *float64 `json:"longitude,omitempty"`
}

// Investigation tracks the review phase of a claim.  AssignedTo references
// the investigating agent; the id is not validated to actually be an agent.
type Investigation struct {
    AssignedTo          *uint64    `json:"assigned_to,omitempty"`
    StartDate           *time.Time `json:"start_date,omitempty"`
    EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
    Findings            string     `json:"findings,omitempty"`
    Recommendations     string     `json:"recommendations,omitempty"`
}

// Payment records how an approved claim is paid out; stored as JSON.
type Payment struct {
    Method        string     `json:"method,omitempty"`
    ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
    ActualDate    *time.Time `json:"actual_date,omitempty"`
    Reference     string     `json:"reference,omitempty"`
}

// Appeal records a customer's challenge of a denial; stored as JSON.
type Appeal struct {
    Requested     bool       `json:"requested"`
    RequestedDate *time.Time `json:"requested_date,omitempty"`
    Reason        string     `json:"reason,omitempty"`
    Status        string     `json:"status,omitempty"`
    DecisionDate  *time.Time `json:"decision_date,omitempty"`
    DecisionNotes string     `json:"decision_notes,omitempty"`
}

// TimelineEntry is one append-only audit record on a claim.  Every mutating
// claim operation writes exactly one of these in the same transaction.
type TimelineEntry struct {
    ID          uint64    `json:"id"`
    ClaimID     uint64    `json:"claim_id"`
    Action      string    `json:"action"`
    Description string    `json:"description"`
    PerformedBy uint64    `json:"performed_by"`
    CreatedAt   time.Time `json:"timestamp"`
}

// ClaimNote is a note on a claim.  Internal notes are visible to agents and
// admins only; customers can neither read nor write them.
type ClaimNote struct {
    ID         uint64    `json:"id"`
    ClaimID    uint64    `json:"claim_id"`
    Content    string    `json:"content"`
    AuthorID   uint64    `json:"author_id"`
    IsInternal bool      `json:"is_internal"`
    CreatedAt  time.Time `json:"created_at"`
}

// Claim represents an incident report filed against a policy.  ClaimNumber
// is generated at creation and never rewritten.  The customer and agent are
// inherited from the policy at filing time.
type Claim struct {
    ID              uint64        `json:"id"`
    ClaimNumber     string        `json:"claim_number"`
    PolicyID        uint64        `json:"policy_id"`
    CustomerID      uint64        `json:"customer_id"`
    AgentID         *uint64       `json:"agent_id,omitempty"`
    Type            string        `json:"type"`
    Status          string        `json:"status"`
    Priority        string        `json:"priority"`
    IncidentDate    time.Time     `json:"incident_date"`
    ReportedDate    time.Time     `json:"reported_date"`
    Description     string        `json:"description"`
    EstimatedAmount float64       `json:"estimated_amount"`
    ApprovedAmount  *float64      `json:"approved_amount,omitempty"`
    PaidAmount      float64       `json:"paid_amount"`
    Deductible      float64       `json:"deductible"`
    Location        Location      `json:"location"`
    Investigation   Investigation `json:"investigation"`
    Payment         Payment       `json:"payment"`
    Appeal          Appeal        `json:"appeal"`
    IsFraud         bool          `json:"is_fraud"`
    FraudScore      float64       `json:"fraud_score"`
    CreatedAt       time.Time     `json:"created_at"`
    UpdatedAt       time.Time     `json:"updated_at"`
}

// Age returns the whole days elapsed since the claim was reported.
func (c Claim) Age() int {
    if c.ReportedDate.IsZero() {
        return 0
    }
    d := time.Since(c.ReportedDate)
    if d < 0 {
        d = -d
    }
    return int(math.Ceil(d.Hours() / 24))
}

// ProcessingTime returns the days between reporting and now once the claim
// has reached a settled status (approved, denied or closed); nil otherwise.
func (c Claim) ProcessingTime() *int {
    switch c.Status {
    case ClaimApproved, ClaimDenied, ClaimClosed:
        days := c.Age()
        return &days
    }
    return nil
}

// ClaimValue is the approved amount when one has been set, otherwise the
// customer's estimate.
func (c Claim) ClaimValue() float64 {
    if c.ApprovedAmount != nil {
        return *c.ApprovedAmount
    }
    return c.EstimatedAmount
}

// NetPayout is the approved amount less the deductible, floored at zero.
// A claim without an approved amount pays out nothing.
func (c Claim) NetPayout() float64 {
    if c.ApprovedAmount == nil {
        return 0
    }
    n := *c.ApprovedAmount - c.Deductible
    if n < 0 {
        return 0
    }
    return n
}
