package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout hands every delivery to the sinks of its recipients.
//
// Deliveries are processed one at a time and recipients in order, so a
// connection observes events in the order the engine emitted them.
// A recipient without a sink has gone away and is skipped.
// A failing sink is logged and counted, it never stops delivery to the others.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.ISinkRegistry
	deliveries  <-chan event.Delivery
	stats       *observability.Relay
	sinkTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.ISinkRegistry,
	deliveries <-chan event.Delivery,
	stats *observability.Relay,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		deliveries:  deliveries,
		stats:       stats,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping delivery fanout")
			return nil
		case d, ok := <-w.deliveries:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.Fanout(ctx, d)
		}
	}
}

// Fanout One sink for each recipient
func (w *EventFanout) Fanout(ctx context.Context, d event.Delivery) {
	for _, conn := range d.Recipients {
		w.deliver(ctx, conn, d.Event)
	}
}

func (w *EventFanout) deliver(ctx context.Context, conn domain.ConnectionID, evt event.Event) {
	sink, ok := w.registry.SinkFor(conn)
	if !ok {
		w.log.Debug("No sink for connection, skipping", "connection_id", conn, "event", evt.Name())
		return
	}
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.stats.IncrDropped()
		w.log.Warn("Delivery failed", "connection_id", conn, "event", evt.Name(), "error", err)
		return
	}
	w.stats.IncrDelivered()
}
