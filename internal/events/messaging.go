package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "ecommerce.events"

	CartCheckedOutRoutingKey = "cart.checkedout.v1"
	CartReconciledRoutingKey = "cart.reconciled.v1"
	StockReservedRoutingKey  = "stock.reserved.v1"
	StockDepletedRoutingKey  = "stock.depleted.v1"

	CartServiceName      = "cart-service"
	InventoryServiceName = "inventory-service"
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

func declareEventsExchange(ch exchangeDeclarer) error {
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
