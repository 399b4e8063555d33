package amqp

import (
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// MessageType tags every change batch published on the exchange.
const MessageType = "expense.changes"

// newPublishing wraps an encoded change batch in a persistent AMQP message.
func newPublishing(body []byte, now time.Time) amqp091.Publishing {
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Type:         MessageType,
		Timestamp:    now,
		Body:         body,
	}
}
