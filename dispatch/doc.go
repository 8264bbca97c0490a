// Package dispatch provides an asynchronous outbound-message dispatcher:
// producers enqueue messages onto a bounded FIFO queue and a single
// background worker delivers them with exponential-backoff retries, a
// circuit breaker in front of the downstream, and a dead-letter sink for
// messages that exhaust their retry budget.
//
// Wiring order is bottom-up: build a publisher.Client (for example
// amqp.Client), wrap it in a publisher.Publisher, pick a deadletter.Store,
// then hand both to New:
//
//	client, _ := amqp.NewClient(channel, "notifications", amqp.WithLogger(logger))
//	pub, _ := publisher.New(client, publisher.WithLogger(logger))
//	sink, _ := deadletter.NewSink(deadletter.NewMemoryStore(), deadletter.WithLogger(logger))
//
//	dispatcher, _ := dispatch.New(pub, sink, dispatch.WithLogger(logger))
//	_ = dispatcher.Start()
//	defer dispatcher.Shutdown(nil)
//
//	msg, _ := message.New("user.updated", payload)
//	_ = dispatcher.Enqueue(ctx, msg)
//
// Enqueue returning nil means the message was accepted, not delivered.
// Delivery failures surface through the dead-letter store and the emitted
// metrics, never to the producer.
package dispatch
