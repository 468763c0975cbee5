package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/testutil"
)

func TestPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq integration test in short mode")
	}

	conn := testutil.StartRabbitMQ(t)

	pub, err := NewPublisher(conn, PublisherOptions{})
	require.NoError(t, err)
	defer pub.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "checkout.#", EventsExchange, false, nil))

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pub.Record(ctx, confirmedResult()))

	select {
	case msg := <-msgs:
		assert.Equal(t, PaymentConfirmedRoutingKey, msg.RoutingKey)
		var ev PaymentOutcomeEvent
		require.NoError(t, json.Unmarshal(msg.Body, &ev))
		require.NoError(t, ev.Validate(EventTypePaymentConfirmed, 1))
		assert.Equal(t, int64(17), ev.Payload.OrderID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for payment event")
	}
}
