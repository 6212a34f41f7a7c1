// Package pubsub provides a topic-based event emitter with explicit
// subscription handles.
//
// Delivery is synchronous: Publish invokes every handler registered for the
// topic before returning. A Publish issued while a dispatch is already in
// progress is queued and delivered, in order, once the current message has
// reached all of its handlers, which keeps messages published by a handler
// ordered after the one being delivered. A Publish from another goroutine
// during a dispatch returns once its message is queued; callers that must
// observe delivery use Wait.
package pubsub

import "sync"

// Handler receives published messages
type Handler func(message any)

// PubSub dispatches messages to the handlers subscribed to a topic
type PubSub struct {
	subscribers map[string][]*Subscription
	queue       []envelope
	dispatching bool
	isShutdown  bool
	mu          sync.Mutex
	idle        *sync.Cond
}

type envelope struct {
	topic   string
	message any
}

// Subscription is the handle returned by Subscribe. It is the only way to
// remove the handler again.
type Subscription struct {
	topic    string
	handler  Handler
	ps       *PubSub
	active   bool
	onRemove func()
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	ps := &PubSub{
		subscribers: make(map[string][]*Subscription),
	}
	ps.idle = sync.NewCond(&ps.mu)
	return ps
}

// Subscribe registers handler for topic. Handlers run in registration order.
func (ps *PubSub) Subscribe(topic string, handler Handler) *Subscription {
	return ps.subscribe(topic, handler, nil)
}

// subscribe registers handler; onRemove runs once the subscription is
// removed by any means
func (ps *PubSub) subscribe(topic string, handler Handler, onRemove func()) *Subscription {
	sub := &Subscription{
		topic:    topic,
		handler:  handler,
		ps:       ps,
		onRemove: onRemove,
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.isShutdown {
		return sub
	}
	sub.active = true
	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Publish delivers message to every subscriber of topic
func (ps *PubSub) Publish(topic string, message any) {
	ps.mu.Lock()
	if ps.isShutdown {
		ps.mu.Unlock()
		return
	}
	ps.queue = append(ps.queue, envelope{topic: topic, message: message})
	if ps.dispatching {
		// The running dispatch drains the queue
		ps.mu.Unlock()
		return
	}
	ps.dispatching = true

	for len(ps.queue) > 0 {
		next := ps.queue[0]
		ps.queue = ps.queue[1:]

		// Snapshot so handlers may subscribe or unsubscribe while running
		subs := append([]*Subscription(nil), ps.subscribers[next.topic]...)
		ps.mu.Unlock()

		for _, sub := range subs {
			if sub.Active() {
				sub.handler(next.message)
			}
		}

		ps.mu.Lock()
	}

	ps.queue = nil
	ps.dispatching = false
	ps.idle.Broadcast()
	ps.mu.Unlock()
}

// Wait blocks until no dispatch is running, so every message published
// before the call has reached its handlers. Calling Wait from a handler
// deadlocks.
func (ps *PubSub) Wait() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for ps.dispatching {
		ps.idle.Wait()
	}
}

// SubscriberCount returns the number of active subscribers for a topic
func (ps *PubSub) SubscriberCount(topic string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.subscribers[topic])
}

// UnsubscribeAll removes every subscriber of topic
func (ps *PubSub) UnsubscribeAll(topic string) {
	ps.mu.Lock()
	subs := ps.subscribers[topic]
	delete(ps.subscribers, topic)
	for _, sub := range subs {
		sub.active = false
	}
	ps.mu.Unlock()

	for _, sub := range subs {
		sub.removed()
	}
}

// Shutdown removes all subscriptions and drops further publishes
func (ps *PubSub) Shutdown() {
	ps.mu.Lock()
	if ps.isShutdown {
		ps.mu.Unlock()
		return
	}
	ps.isShutdown = true
	var all []*Subscription
	for topic, subs := range ps.subscribers {
		for _, sub := range subs {
			sub.active = false
		}
		all = append(all, subs...)
		delete(ps.subscribers, topic)
	}
	ps.queue = nil
	ps.mu.Unlock()

	for _, sub := range all {
		sub.removed()
	}
}

// Active reports whether the handler still receives messages
func (s *Subscription) Active() bool {
	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()
	return s.active
}

// Unsubscribe removes the subscription. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.ps.mu.Lock()
	if !s.active {
		s.ps.mu.Unlock()
		return
	}
	s.active = false

	subs := s.ps.subscribers[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.ps.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(s.ps.subscribers[s.topic]) == 0 {
		delete(s.ps.subscribers, s.topic)
	}
	s.ps.mu.Unlock()

	s.removed()
}

func (s *Subscription) removed() {
	if s.onRemove != nil {
		s.onRemove()
	}
}
