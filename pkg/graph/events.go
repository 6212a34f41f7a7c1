package graph

import (
	"context"

	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
)

// On subscribes handler to one of the Event* names. The payload is a Node
// for node added/dropped, an Edge for edge added/dropped, an
// AttributesUpdate for attribute events and nil for "cleared".
//
// Keep the returned subscription: it is the only way to remove the handler.
func (g *Graph) On(event string, handler pubsub.Handler) *pubsub.Subscription {
	return g.events.Subscribe(event, handler)
}

// Stream delivers every graph event on a buffered channel until ctx is done
// or the stream is closed. Message.Topic is the event name and
// Message.Payload is what On handlers receive.
func (g *Graph) Stream(ctx context.Context, buffer int) *pubsub.Stream {
	return g.events.Stream(ctx, buffer, Events...)
}

// Sync waits until events published so far, including those queued by
// other goroutines behind a running dispatch, have reached their handlers.
// It must not be called from a handler.
func (g *Graph) Sync() {
	g.events.Wait()
}

// RemoveAllListeners removes every handler of event
func (g *Graph) RemoveAllListeners(event string) {
	g.events.UnsubscribeAll(event)
}

// ListenerCount returns the number of handlers subscribed to event
func (g *Graph) ListenerCount(event string) int {
	return g.events.SubscriberCount(event)
}
