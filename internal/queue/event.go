// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// ClaimApprovedEvent is published when a claim is approved.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type ClaimApprovedEvent struct {
    ClaimID        uint64  `json:"claim_id"`
    ClaimNumber    string  `json:"claim_number"`
    PolicyID       uint64  `json:"policy_id"`
    CustomerID     uint64  `json:"customer_id"`
    ApprovedAmount float64 `json:"approved_amount"`
    ApprovedBy     uint64  `json:"approved_by"`
    ApprovedAt     string  `json:"approved_at"`
}
