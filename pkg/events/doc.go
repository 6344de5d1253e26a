/*
Package events provides a publish/subscribe broker for coordinator-level
lifecycle events.

A Broker decouples the components that observe state transitions --
a worker connecting, a treelet assignment changing, a render finishing --
from whatever wants to react to them (status printing, external
webhooks, a future dashboard). Publish never blocks on slow
subscribers: each Subscriber has a bounded buffer and a full buffer
simply drops the event rather than stalling the broker's dispatch
loop.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:    events.EventWorkerConnected,
		Message: "worker 3 completed handshake",
	})
*/
package events
