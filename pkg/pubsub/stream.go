package pubsub

import (
	"context"
	"sync"
)

// Message is a published message as delivered on a Stream
type Message struct {
	Topic   string
	Payload any
}

// Stream forwards the messages of one or more topics to a buffered
// channel. Messages are dropped and counted when the buffer is full.
type Stream struct {
	ch      chan Message
	done    chan struct{}
	subs    []*Subscription
	dropped int
	closed  bool
	mu      sync.Mutex
}

// Stream subscribes a channel of the given buffer size to topics. The
// channel is closed when ctx is cancelled, Close is called, any of its
// subscriptions is removed or the PubSub shuts down.
func (ps *PubSub) Stream(ctx context.Context, buffer int, topics ...string) *Stream {
	s := &Stream{
		ch:   make(chan Message, buffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	for _, topic := range topics {
		sub := ps.subscribe(topic, func(message any) {
			s.send(Message{Topic: topic, Payload: message})
		}, s.Close)
		s.subs = append(s.subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range s.subs {
		if !sub.Active() {
			s.Close()
			return s
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// C returns the message channel
func (s *Stream) C() <-chan Message {
	return s.ch
}

// Dropped returns how many messages did not fit the buffer
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes the stream and closes its channel. It is idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *Stream) send(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
		s.dropped++
	}
}
