package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange             = "ecommerce.events"
	PaymentConfirmedRoutingKey = "checkout.payment_confirmed.v1"
	PaymentFailedRoutingKey    = "checkout.payment_failed.v1"
	checkoutClientServiceName  = "checkout-client-go"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
