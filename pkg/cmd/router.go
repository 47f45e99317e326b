package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
)

// EventQueueRouter publishes queue transfers on the bus for the ticketing
// layer to act on. The flow engine's transfer node only needs the handover
// to be announced, not performed in-process.
type EventQueueRouter struct {
	publisher eventbus.EventPublisher
}

func NewEventQueueRouter(publisher eventbus.EventPublisher) *EventQueueRouter {
	return &EventQueueRouter{publisher: publisher}
}

func (r *EventQueueRouter) TransferToQueue(ctx context.Context, companyID, ticketID, queueID string) error {
	return r.publisher.Publish(ctx, ticketID, events.TicketTransferred{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.TicketTransferredEvent,
			Timestamp: time.Now().UTC(),
			CompanyID: companyID,
		},
		TicketID: ticketID,
		QueueID:  queueID,
	})
}
