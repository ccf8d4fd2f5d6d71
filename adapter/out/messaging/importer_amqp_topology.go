package messaging

import (
	"fmt"

	"importer_server/pkg/logger"
)

// SetupTopology declares the durable topic exchange events are published
// to. Queues and bindings belong to the consuming services.
func SetupTopology(client *AMQPClient, exchange string) error {
	err := client.Channel().ExchangeDeclare(
		exchange,
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}

	logger.Info("[AMQP] exchange %s declared", exchange)
	return nil
}
