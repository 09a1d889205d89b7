package model

import (
    "math"
    "testing"
    "time"
)

func TestRenewalPremium(t *testing.T) {
    base := Policy{
        StartDate: time.Now().AddDate(-1, 0, 0),
        Premium:   Premium{Amount: 1000},
    }

    if got := base.RenewalPremium(0); got != 1000 {
        t.Fatalf("no adjustments: got %v, want 1000", got)
    }
    if got := base.RenewalPremium(2); got != 1000 {
        t.Fatalf("two approved claims should not surcharge: got %v", got)
    }
    if got := base.RenewalPremium(3); got != 1150 {
        t.Fatalf("claims surcharge: got %v, want 1150", got)
    }

    old := base
    old.StartDate = time.Now().AddDate(-6, 0, 0)
    if got := old.RenewalPremium(0); got != 950 {
        t.Fatalf("loyalty discount: got %v, want 950", got)
    }
    // Both adjustments compound: 1000 * 1.15 * 0.95 = 1092.50.
    if got := old.RenewalPremium(3); got != 1092.50 {
        t.Fatalf("compounded adjustments: got %v, want 1092.50", got)
    }
}

func TestRenewalPremiumRoundsToCents(t *testing.T) {
    p := Policy{
        StartDate: time.Now().AddDate(-1, 0, 0),
        Premium:   Premium{Amount: 333.33},
    }
    got := p.RenewalPremium(5)
    if got != math.Round(got*100)/100 {
        t.Fatalf("result %v is not rounded to two decimals", got)
    }
}

func TestDaysUntilExpirationClampsAtZero(t *testing.T) {
    p := Policy{EndDate: time.Now().AddDate(0, 0, -10)}
    if got := p.DaysUntilExpiration(); got != 0 {
        t.Fatalf("expired policy: got %d, want 0", got)
    }
    p.EndDate = time.Now().Add(48*time.Hour + time.Minute)
    if got := p.DaysUntilExpiration(); got != 3 {
        t.Fatalf("partial days round up: got %d, want 3", got)
    }
}

func TestIsLive(t *testing.T) {
    p := Policy{
        Status:    PolicyActive,
        StartDate: time.Now().AddDate(0, -6, 0),
        EndDate:   time.Now().AddDate(0, 6, 0),
    }
    if !p.IsLive() {
        t.Fatal("active, unexpired policy should be live")
    }
    p.Status = PolicySuspended
    if p.IsLive() {
        t.Fatal("suspended policy should not be live")
    }
    p.Status = PolicyActive
    p.EndDate = time.Now().AddDate(0, 0, -1)
    if p.IsLive() {
        t.Fatal("past-end policy should not be live")
    }
}

func TestMonthlyEquivalent(t *testing.T) {
    cases := []struct {
        freq string
        want float64
    }{
        {FreqMonthly, 1200},
        {FreqQuarterly, 400},
        {FreqSemiAnnually, 200},
        {FreqAnnually, 100},
        {"weekly", 0},
    }
    for _, tc := range cases {
        if got := MonthlyEquivalent(1200, tc.freq); got != tc.want {
            t.Errorf("MonthlyEquivalent(1200, %q) = %v, want %v", tc.freq, got, tc.want)
        }
    }
}

func TestCoverageTotalLimit(t *testing.T) {
    c := Coverage{Limits: CoverageLimits{Liability: 300000, Property: 150000, Medical: 50000}}
    if got := c.TotalLimit(); got != 450000 {
        t.Fatalf("got %v, want 450000 (medical excluded)", got)
    }
}
