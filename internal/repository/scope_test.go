package repository

import (
    "testing"

    "github.com/atlasinsure/claims-api/internal/model"
)

func TestScopePolicies(t *testing.T) {
    cond, args := ScopePolicies(model.RoleCustomer, 7)
    if cond != "customer_id = ?" || len(args) != 1 || args[0] != uint64(7) {
        t.Fatalf("customer scope: got %q %v", cond, args)
    }
    cond, args = ScopePolicies(model.RoleAgent, 9)
    if cond != "agent_id = ?" || len(args) != 1 {
        t.Fatalf("agent scope: got %q %v", cond, args)
    }
    cond, args = ScopePolicies(model.RoleAdmin, 1)
    if cond != "" || args != nil {
        t.Fatalf("admin scope should be unrestricted, got %q %v", cond, args)
    }
}

func TestScopeClaimsAgentMatchesThreeColumns(t *testing.T) {
    cond, args := ScopeClaims(model.RoleAgent, 5)
    want := "(customer_id = ? OR agent_id = ? OR investigation_assigned_to = ?)"
    if cond != want {
        t.Fatalf("got %q, want %q", cond, want)
    }
    if len(args) != 3 {
        t.Fatalf("want 3 args, got %d", len(args))
    }
}

func TestClaimVisible(t *testing.T) {
    agent := uint64(20)
    investigator := uint64(30)
    cl := &model.Claim{
        CustomerID: 10,
        AgentID:    &agent,
        Investigation: model.Investigation{
            AssignedTo: &investigator,
        },
    }

    if !ClaimVisible(cl, model.RoleCustomer, 10) {
        t.Error("owning customer should see claim")
    }
    if ClaimVisible(cl, model.RoleCustomer, 11) {
        t.Error("other customer should not see claim")
    }
    if !ClaimVisible(cl, model.RoleAgent, 20) {
        t.Error("policy agent should see claim")
    }
    if !ClaimVisible(cl, model.RoleAgent, 30) {
        t.Error("assigned investigator should see claim")
    }
    if ClaimVisible(cl, model.RoleAgent, 40) {
        t.Error("unrelated agent should not see claim")
    }
    if !ClaimVisible(cl, model.RoleAdmin, 99) {
        t.Error("admin should see every claim")
    }
}

func TestPolicyVisible(t *testing.T) {
    p := &model.Policy{CustomerID: 10}
    if !PolicyVisible(p, model.RoleCustomer, 10) {
        t.Error("owning customer should see policy")
    }
    if PolicyVisible(p, model.RoleAgent, 20) {
        t.Error("agent without assignment should not see policy")
    }
    agent := uint64(20)
    p.AgentID = &agent
    if !PolicyVisible(p, model.RoleAgent, 20) {
        t.Error("assigned agent should see policy")
    }
}

func TestClaimUpdatableField(t *testing.T) {
    customerAllowed := []string{"description", "estimated_amount", "location"}
    for _, f := range customerAllowed {
        if !ClaimUpdatableField(model.RoleCustomer, f) {
            t.Errorf("customer should be allowed to update %s", f)
        }
    }
    workflow := []string{"status", "priority", "investigation", "payment", "appeal"}
    for _, f := range workflow {
        if ClaimUpdatableField(model.RoleCustomer, f) {
            t.Errorf("customer must not update %s", f)
        }
        if !ClaimUpdatableField(model.RoleAgent, f) {
            t.Errorf("agent should be allowed to update %s", f)
        }
        if !ClaimUpdatableField(model.RoleAdmin, f) {
            t.Errorf("admin should be allowed to update %s", f)
        }
    }
    if ClaimUpdatableField(model.RoleAdmin, "claim_number") {
        t.Error("claim_number must never be writable")
    }
}
