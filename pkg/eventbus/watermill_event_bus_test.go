package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/channels/gochannel"
	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
	"github.com/atendohq/atendo/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.MessageReceived, 1)

	err := bus.Handle(events.MessageReceivedEvent, func(_ context.Context, event any) error {
		evt, ok := event.(*events.MessageReceived)
		if ok {
			received <- evt
		}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	evt := events.MessageReceived{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.MessageReceivedEvent,
			Timestamp:  time.Now().UTC(),
			ProviderID: "provider-1",
			CompanyID:  "company-1",
		},
		TicketID: "ticket-1",
		Message: models.NormalizedMessage{
			Direction:   models.DirectionIn,
			FromAddress: "5511988887777",
			Body:        "hello",
			ProviderID:  "provider-1",
			CompanyID:   "company-1",
		},
	}

	require.NoError(t, bus.Publish(ctx, "ticket-1", evt))

	select {
	case got := <-received:
		assert.Equal(t, "ticket-1", got.TicketID)
		assert.Equal(t, "hello", got.Message.Body)
		assert.Equal(t, models.DirectionIn, got.Message.Direction)
	case <-time.After(2 * time.Second):
		t.Fatal("message event was not delivered")
	}
}

func TestWatermillEventBus_OrderPreservedPerSource(t *testing.T) {
	bus := newTestBus(t)

	var got []string

	done := make(chan struct{})

	err := bus.Handle(events.MessageReceivedEvent, func(_ context.Context, event any) error {
		evt := event.(*events.MessageReceived)
		got = append(got, evt.Message.Body)

		if len(got) == 5 {
			close(done)
		}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, body := range bodies {
		evt := events.MessageReceived{
			BaseEvent: events.BaseEvent{
				ID:        bus.GenerateID(),
				Type:      events.MessageReceivedEvent,
				Timestamp: time.Now().UTC(),
				CompanyID: "company-1",
			},
			TicketID: "ticket-1",
			Message:  models.NormalizedMessage{Direction: models.DirectionIn, Body: body},
		}
		require.NoError(t, bus.Publish(ctx, "ticket-1", evt))
	}

	select {
	case <-done:
		assert.Equal(t, bodies, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected 5 events, got %d", len(got))
	}
}

func TestWatermillEventBus_UnhandledTypeIsDropped(t *testing.T) {
	bus := newTestBus(t)

	handled := make(chan struct{}, 1)

	err := bus.Handle(events.QRCodeIssuedEvent, func(_ context.Context, _ any) error {
		handled <- struct{}{}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for presence events; they must be acked and dropped.
	presence := events.PresenceUpdated{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.PresenceUpdatedEvent, CompanyID: "company-1"},
		Presence:  "composing",
	}
	require.NoError(t, bus.Publish(ctx, "provider-1", presence))

	qr := events.QRCodeIssued{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.QRCodeIssuedEvent, CompanyID: "company-1"},
		QRCode:    "qr-payload",
	}
	require.NoError(t, bus.Publish(ctx, "provider-1", qr))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("qr event was not delivered after unhandled presence event")
	}
}
