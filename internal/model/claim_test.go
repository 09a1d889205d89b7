package model

import (
    "testing"
    "time"
)

func TestNetPayout(t *testing.T) {
    approved := 2300.0
    c := Claim{ApprovedAmount: &approved, Deductible: 500}
    if got := c.NetPayout(); got != 1800 {
        t.Fatalf("got %v, want 1800", got)
    }

    c.ApprovedAmount = nil
    if got := c.NetPayout(); got != 0 {
        t.Fatalf("no approved amount: got %v, want 0", got)
    }

    small := 300.0
    c.ApprovedAmount = &small
    if got := c.NetPayout(); got != 0 {
        t.Fatalf("deductible above approval floors at zero: got %v", got)
    }
}

func TestClaimValue(t *testing.T) {
    c := Claim{EstimatedAmount: 5000}
    if got := c.ClaimValue(); got != 5000 {
        t.Fatalf("estimate fallback: got %v, want 5000", got)
    }
    approved := 4200.0
    c.ApprovedAmount = &approved
    if got := c.ClaimValue(); got != 4200 {
        t.Fatalf("approved amount wins: got %v, want 4200", got)
    }
}

func TestProcessingTime(t *testing.T) {
    c := Claim{Status: ClaimPending, ReportedDate: time.Now().AddDate(0, 0, -9)}
    if got := c.ProcessingTime(); got != nil {
        t.Fatalf("pending claim has no processing time, got %v", *got)
    }
    c.Status = ClaimInvestigating
    if got := c.ProcessingTime(); got != nil {
        t.Fatalf("investigating claim has no processing time, got %v", *got)
    }
    for _, status := range []string{ClaimApproved, ClaimDenied, ClaimClosed} {
        c.Status = status
        got := c.ProcessingTime()
        if got == nil {
            t.Fatalf("%s claim should have processing time", status)
        }
        if *got != 9 {
            t.Fatalf("%s claim: got %d days, want 9", status, *got)
        }
    }
}

func TestClaimAge(t *testing.T) {
    c := Claim{}
    if got := c.Age(); got != 0 {
        t.Fatalf("zero reported date: got %d, want 0", got)
    }
    c.ReportedDate = time.Now().Add(-49 * time.Hour)
    if got := c.Age(); got != 3 {
        t.Fatalf("partial days round up: got %d, want 3", got)
    }
}
