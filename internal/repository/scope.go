package repository

import "github.com/atlasinsure/claims-api/internal/model"

// Role-scoped query predicates.  These are pure functions: given the
// requester's role and id they return a SQL condition fragment and its
// arguments, or an empty condition for admins who see everything.  List
// queries AND the fragment into their WHERE clause so scoping happens in
// the database, not by post-filtering rows.

// ScopePolicies narrows a policies query to the rows visible to the
// requester: customers see their own policies, agents the policies they are
// assigned to, admins all.
func ScopePolicies(role string, userID uint64) (string, []any) {
    switch role {
    case model.RoleCustomer:
        return "customer_id = ?", []any{userID}
    case model.RoleAgent:
        return "agent_id = ?", []any{userID}
    }
    return "", nil
}

// ScopeClaims narrows a claims query.  Agents see claims where they are the
// policy agent, the claimant, or the assigned investigator.
func ScopeClaims(role string, userID uint64) (string, []any) {
    switch role {
    case model.RoleCustomer:
        return "customer_id = ?", []any{userID}
    case model.RoleAgent:
        return "(customer_id = ? OR agent_id = ? OR investigation_assigned_to = ?)",
            []any{userID, userID, userID}
    }
    return "", nil
}

// PolicyVisible applies the same rules as ScopePolicies to a loaded row.
// It is used on single-resource reads where the row is fetched first so a
// missing id still yields 404 rather than 403.
func PolicyVisible(p *model.Policy, role string, userID uint64) bool {
    switch role {
    case model.RoleCustomer:
        return p.CustomerID == userID
    case model.RoleAgent:
        return p.AgentID != nil && *p.AgentID == userID
    }
    return role == model.RoleAdmin
}

// ClaimVisible applies the same rules as ScopeClaims to a loaded row.
func ClaimVisible(c *model.Claim, role string, userID uint64) bool {
    switch role {
    case model.RoleCustomer:
        return c.CustomerID == userID
    case model.RoleAgent:
        if c.CustomerID == userID {
            return true
        }
        if c.AgentID != nil && *c.AgentID == userID {
            return true
        }
        return c.Investigation.AssignedTo != nil && *c.Investigation.AssignedTo == userID
    }
    return role == model.RoleAdmin
}

// ClaimUpdatableField reports whether the given role may write the named
// claim field through the generic update endpoint.  Customers are limited
// to the incident description; agents and admins may also drive the
// workflow fields.  Requests touching fields outside the allowed set fail
// with ErrForbidden rather than being silently dropped.
func ClaimUpdatableField(role, field string) bool {
    switch field {
    case "description", "estimated_amount", "location":
        return true
    case "status", "priority", "investigation", "payment", "appeal":
        return role == model.RoleAgent || role == model.RoleAdmin
    }
    return false
}
