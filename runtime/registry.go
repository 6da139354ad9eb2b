package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

var _ contract.ISinkRegistry = (*Registry)(nil)

// Registry maps live connections to the sink writing to their socket.
// Subscribe is called by the transport once the socket is upgraded,
// Unsubscribe when the socket is gone. The fanout reads it concurrently.
type Registry struct {
	mu    sync.RWMutex
	sinks map[domain.ConnectionID]contract.EventSink // map connection -> Sink
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[domain.ConnectionID]contract.EventSink)}
}

func (r *Registry) Subscribe(conn domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[conn] = sink
}

func (r *Registry) Unsubscribe(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, conn)
}

// SinkFor returns false for a connection that has already gone away,
// delivering to it is then a no-op for the caller.
func (r *Registry) SinkFor(conn domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[conn]
	return sink, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
