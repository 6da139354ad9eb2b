package observability

import (
	"sync/atomic"
)

// Stats is a point-in-time copy of the relay counters.
type Stats struct {
	ConnectionsOpened  uint64 `json:"connections_opened"`
	ConnectionsClosed  uint64 `json:"connections_closed"`
	OnlineConnections  int64  `json:"online_connections"`
	Rooms              int64  `json:"rooms"`
	EventsDelivered    uint64 `json:"events_delivered"`
	DeliveriesDropped  uint64 `json:"deliveries_dropped"`
	MessagesPersisted  uint64 `json:"messages_persisted"`
	StorageFailures    uint64 `json:"storage_failures"`
	CommandsRejected   uint64 `json:"commands_rejected"`
	ResultsDiscarded   uint64 `json:"results_discarded"`
	HandlerPanics      uint64 `json:"handler_panics"`
	CommandQueueLength int64  `json:"command_queue_length"`
}

// Relay holds lock-free counters updated from the routing and delivery paths.
type Relay struct {
	connectionsOpened uint64
	connectionsClosed uint64
	online            int64
	rooms             int64
	eventsDelivered   uint64
	dropped           uint64
	persisted         uint64
	storageFailures   uint64
	rejected          uint64
	discarded         uint64
	panics            uint64
	queueLength       int64
}

func NewRelay() *Relay {
	return &Relay{}
}

func (r *Relay) ConnectionOpened() {
	atomic.AddUint64(&r.connectionsOpened, 1)
	atomic.AddInt64(&r.online, 1)
}

func (r *Relay) ConnectionClosed() {
	atomic.AddUint64(&r.connectionsClosed, 1)
	atomic.AddInt64(&r.online, -1)
}

func (r *Relay) SetRooms(n int) { atomic.StoreInt64(&r.rooms, int64(n)) }
func (r *Relay) SetQueueLength(n int) { atomic.StoreInt64(&r.queueLength, int64(n)) }
func (r *Relay) IncrDelivered() { atomic.AddUint64(&r.eventsDelivered, 1) }
func (r *Relay) IncrDropped() { atomic.AddUint64(&r.dropped, 1) }
func (r *Relay) IncrPersisted() { atomic.AddUint64(&r.persisted, 1) }
func (r *Relay) IncrStorageFailure() { atomic.AddUint64(&r.storageFailures, 1) }
func (r *Relay) IncrRejected() { atomic.AddUint64(&r.rejected, 1) }
func (r *Relay) IncrDiscarded() { atomic.AddUint64(&r.discarded, 1) }
func (r *Relay) IncrPanics() { atomic.AddUint64(&r.panics, 1) }

// Snapshot reads every counter. Counters are read independently, so the copy
// is not a consistent cut across fields.
func (r *Relay) Snapshot() Stats {
	return Stats{
		ConnectionsOpened:  atomic.LoadUint64(&r.connectionsOpened),
		ConnectionsClosed:  atomic.LoadUint64(&r.connectionsClosed),
		OnlineConnections:  atomic.LoadInt64(&r.online),
		Rooms:              atomic.LoadInt64(&r.rooms),
		EventsDelivered:    atomic.LoadUint64(&r.eventsDelivered),
		DeliveriesDropped:  atomic.LoadUint64(&r.dropped),
		MessagesPersisted:  atomic.LoadUint64(&r.persisted),
		StorageFailures:    atomic.LoadUint64(&r.storageFailures),
		CommandsRejected:   atomic.LoadUint64(&r.rejected),
		ResultsDiscarded:   atomic.LoadUint64(&r.discarded),
		HandlerPanics:      atomic.LoadUint64(&r.panics),
		CommandQueueLength: atomic.LoadInt64(&r.queueLength),
	}
}
