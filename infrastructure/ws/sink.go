package ws

import (
	"context"
	"fmt"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink buffers the events of one connection until its writer puts them on the wire.
// Consume never blocks: a full buffer or a closed connection is a transport error.
type Sink struct {
	events    chan event.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func NewSink(bufferSize int) *Sink {
	return &Sink{
		events: make(chan event.Event, bufferSize),
		closed: make(chan struct{}),
	}
}

// Consume is called by fanout
func (s *Sink) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-s.closed:
		return fmt.Errorf("connection closed: %w", errors.ErrTransport)
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("send buffer full (%d): %w", cap(s.events), errors.ErrTransport)
	}
}

// Events is drained by the connection writer.
func (s *Sink) Events() <-chan event.Event {
	return s.events
}

// Close makes later Consume calls fail. Buffered events are left to the writer.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Sink) Closed() <-chan struct{} {
	return s.closed
}
