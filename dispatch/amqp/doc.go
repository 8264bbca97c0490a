// Package amqp adapts a RabbitMQ channel into the publisher.Client interface.
// Messages are published in confirm mode so a nil error from Publish means
// the broker has accepted the message, not just that it left the process.
package amqp
