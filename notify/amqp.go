package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/intentmesh/intentmesh/logging"
)

// amqpPublisher is the slice of the AMQP channel the sink needs. Satisfied by
// *amqp.Channel.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPOptions configure an AMQPSink.
type AMQPOptions struct {
	// Queue is declared durable on connect and used as the routing key.
	Queue  string
	Logger logging.Logger
}

// AMQPSink publishes dispatch events as JSON messages to a RabbitMQ queue.
// Broker failures are logged and dropped; the sink never propagates them.
type AMQPSink struct {
	conn    *amqp.Connection
	channel amqpPublisher
	queue   string
	logger  logging.Logger
}

// NewAMQPSink dials the broker, declares the event queue and returns a
// ready sink. Callers own Close.
func NewAMQPSink(url string, optFns ...func(o *AMQPOptions)) (*AMQPSink, error) {
	opts := AMQPOptions{Queue: "intentmesh.events", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &AMQPSink{conn: conn, channel: ch, queue: opts.Queue, logger: opts.Logger}, nil
}

// Notify implements Sink.
func (s *AMQPSink) Notify(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("drop undeliverable dispatch event", "error", err)
		return
	}
	err = s.channel.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.RequestID,
		Timestamp:   event.Timestamp,
		Body:        body,
	})
	if err != nil {
		s.logger.Warn("dispatch event publish failed", "queue", s.queue, "error", err)
	}
}

// Close releases the broker connection.
func (s *AMQPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
