package model

import (
    "math"
    "time"
)

// Policy statuses.  Status writes are free-form field updates; there is no
// enforced transition graph (see DESIGN.md).
const (
    PolicyPending   = "pending"
    PolicyActive    = "active"
    PolicyExpired   = "expired"
    PolicyCancelled = "cancelled"
    PolicySuspended = "suspended"
)

// ValidPolicyStatus reports whether s is a recognized policy status.
func ValidPolicyStatus(s string) bool {
    switch s {
    case PolicyPending, PolicyActive, PolicyExpired, PolicyCancelled, PolicySuspended:
        return true
    }
    return false
}

// ValidCoverageType reports whether s is a recognized line of coverage.
// Policies and claims share the same set of types.
func ValidCoverageType(s string) bool {
    switch s {
    case "auto", "home", "life", "health", "business", "travel", "pet", "umbrella":
        return true
    }
    return false
}

// Premium frequencies.
const (
    FreqMonthly      = "monthly"
    FreqQuarterly    = "quarterly"
    FreqSemiAnnually = "semi-annually"
    FreqAnnually     = "annually"
)

// ValidFrequency reports whether s is a recognized premium frequency.
func ValidFrequency(s string) bool {
    switch s {
    case FreqMonthly, FreqQuarterly, FreqSemiAnnually, FreqAnnually:
        return true
    }
    return false
}

// MonthlyEquivalent converts a premium amount at the given frequency to a
// per-month figure.  Unknown frequencies contribute nothing.
func MonthlyEquivalent(amount float64, frequency string) float64 {
    switch frequency {
    case FreqMonthly:
        return amount
    case FreqQuarterly:
        return amount / 3
    case FreqSemiAnnually:
        return amount / 6
    case FreqAnnually:
        return amount / 12
    }
    return 0
}

// Premium describes what a policyholder pays and when the next payment is due.
type Premium struct {
    Amount      float64   `json:"amount"`
    Frequency   string    `json:"frequency"`
    NextDueDate time.Time `json:"next_due_date"`
}

// CoverageLimits are the per-category payout ceilings of a policy.
type CoverageLimits struct {
    Liability float64 `json:"liability,omitempty"`
    Property  float64 `json:"property,omitempty"`
    Medical   float64 `json:"medical,omitempty"`
    Uninsured float64 `json:"uninsured,omitempty"`
}

// CoverageDeductibles are the out-of-pocket amounts per loss category.
type CoverageDeductibles struct {
    Collision     float64 `json:"collision,omitempty"`
    Comprehensive float64 `json:"comprehensive,omitempty"`
    Property      float64 `json:"property,omitempty"`
}

// CoverageFeature is an optional rider on a policy.
type CoverageFeature struct {
    Name           string  `json:"name"`
    Description    string  `json:"description,omitempty"`
    AdditionalCost float64 `json:"additional_cost,omitempty"`
}

// Coverage bundles limits, deductibles and riders; stored as a JSON column.
type Coverage struct {
    Limits      CoverageLimits      `json:"limits"`
    Deductibles CoverageDeductibles `json:"deductibles,omitempty"`
    Features    []CoverageFeature   `json:"features,omitempty"`
}

// TotalLimit is the headline coverage figure shown on dashboards: liability
// plus property limits.
func (c Coverage) TotalLimit() float64 {
    return c.Limits.Liability + c.Limits.Property
}

// InsuredItem is a thing covered by a policy.  Details is free-form JSON
// describing the item (VIN, address, ...).
type InsuredItem struct {
    Type    string         `json:"type"`
    Details map[string]any `json:"details,omitempty"`
    Value   float64        `json:"value,omitempty"`
}

// PolicyNote is a free-text note attached to a policy (child table).
type PolicyNote struct {
    ID        uint64    `json:"id"`
    PolicyID  uint64    `json:"policy_id"`
    Content   string    `json:"content"`
    AuthorID  uint64    `json:"author_id"`
    CreatedAt time.Time `json:"created_at"`
}

// PolicyDocument is a document reference attached to a policy (child table).
type PolicyDocument struct {
    ID         uint64    `json:"id"`
    PolicyID   uint64    `json:"policy_id"`
    Name       string    `json:"name"`
    DocType    string    `json:"type"`
    URL        string    `json:"url"`
    UploadedBy uint64    `json:"uploaded_by"`
    CreatedAt  time.Time `json:"uploaded_at"`
}

// Policy represents a coverage contract between the carrier and a customer.
// PolicyNumber is generated at creation and never rewritten.  AgentID is
// nullable: a policy always has exactly one customer and at most one agent.
type Policy struct {
    ID                 uint64        `json:"id"`
    PolicyNumber       string        `json:"policy_number"`
    PolicyType         string        `json:"policy_type"`
    Status             string        `json:"status"`
    CustomerID         uint64        `json:"customer_id"`
    AgentID            *uint64       `json:"agent_id,omitempty"`
    StartDate          time.Time     `json:"start_date"`
    EndDate            time.Time     `json:"end_date"`
    Premium            Premium       `json:"premium"`
    Coverage           Coverage      `json:"coverage"`
    InsuredItems       []InsuredItem `json:"insured_items,omitempty"`
    AutoRenew          bool          `json:"auto_renew"`
    CancellationReason string        `json:"cancellation_reason,omitempty"`
    LastModifiedBy     *uint64       `json:"last_modified_by,omitempty"`
    CreatedAt          time.Time     `json:"created_at"`
    UpdatedAt          time.Time     `json:"updated_at"`
}

// Duration returns the covered period in whole days.
func (p Policy) Duration() int {
    if p.StartDate.IsZero() || p.EndDate.IsZero() {
        return 0
    }
    d := p.EndDate.Sub(p.StartDate)
    if d < 0 {
        d = -d
    }
    return int(math.Ceil(d.Hours() / 24))
}

// DaysUntilExpiration returns the days left before the policy lapses,
// clamped at zero once the end date has passed.
func (p Policy) DaysUntilExpiration() int {
    if p.EndDate.IsZero() {
        return 0
    }
    d := time.Until(p.EndDate)
    days := int(math.Ceil(d.Hours() / 24))
    if days < 0 {
        return 0
    }
    return days
}

// IsExpired reports whether the end date lies in the past.
func (p Policy) IsExpired() bool {
    return !p.EndDate.IsZero() && p.EndDate.Before(time.Now())
}

// IsLive reports whether the policy is currently in force: status active and
// not past its end date.
func (p Policy) IsLive() bool {
    return p.Status == PolicyActive && !p.IsExpired()
}

// RenewalPremium estimates the premium for the next term.  Starting from the
// current premium it applies a 15% surcharge when the policy has more than
// two approved claims and a 5% long-term discount when the policy is older
// than five years.  The two adjustments compound when both hold.  The result
// is rounded to two decimals.
func (p Policy) RenewalPremium(approvedClaims int) float64 {
    renewal := p.Premium.Amount
    if approvedClaims > 2 {
        renewal *= 1.15
    }
    age := time.Now().Year() - p.StartDate.Year()
    if age > 5 {
        renewal *= 0.95
    }
    return math.Round(renewal*100) / 100
}
