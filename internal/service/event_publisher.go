// Package service publishes domain events to RabbitMQ.  Publishing is
// fire-and-forget: a broker outage is logged but never fails the request
// that produced the event.
package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/atlasinsure/claims-api/internal/queue"
)

// EventPublisher emits claim lifecycle events.  A fresh connection is used
// per publish; events are rare enough that connection pooling is not worth
// the bookkeeping.
type EventPublisher struct{}

func NewEventPublisher() *EventPublisher { return &EventPublisher{} }

// ClaimApproved publishes a ClaimApprovedEvent in the background.
func (p *EventPublisher) ClaimApproved(claimID uint64, claimNumber string, policyID, customerID uint64, amount float64, approvedBy uint64) {
    ev := queue.ClaimApprovedEvent{
        ClaimID:        claimID,
        ClaimNumber:    claimNumber,
        PolicyID:       policyID,
        CustomerID:     customerID,
        ApprovedAmount: amount,
        ApprovedBy:     approvedBy,
        ApprovedAt:     time.Now().UTC().Format(time.RFC3339),
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := publish(ctx, "claim.approved", ev); err != nil {
            log.Printf("events: claim.approved publish failed: %v", err)
        }
    }()
}

func publish(ctx context.Context, queueName string, event any) error {
    conn, err := amqp.Dial(queue.BrokerURL())
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Idempotent declare; durable so events survive broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        return err
    }
    return ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false, false,
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        })
}
