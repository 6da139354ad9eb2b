package runtime

import (
	"context"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(_ context.Context, _ event.Event) error {
	return nil
}

func TestRegistry_Subscribe_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := domain.NewConnectionID()
	sink := Sink{name: "alice"}

	// Given no connection is subscribed
	req.Zero(registry.Len())

	// When a connection subscribes
	registry.Subscribe(conn, sink)

	// Then its sink is resolvable
	req.Equal(1, registry.Len())
	found, ok := registry.SinkFor(conn)
	req.True(ok)
	req.Equal(sink, found)
}

func TestRegistry_Unsubscribe_Keeps_Other_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1 := domain.NewConnectionID()
	conn2 := domain.NewConnectionID()

	// Given two subscribed connections
	registry.Subscribe(conn1, Sink{name: "alice"})
	registry.Subscribe(conn2, Sink{name: "bob"})

	// When the first one goes away, twice
	registry.Unsubscribe(conn1)
	registry.Unsubscribe(conn1)

	// Then only the second one is left
	_, ok := registry.SinkFor(conn1)
	req.False(ok)
	found, ok := registry.SinkFor(conn2)
	req.True(ok)
	req.Equal(Sink{name: "bob"}, found)
	req.Equal(1, registry.Len())
}
