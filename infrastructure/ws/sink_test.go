package ws

import (
	"context"
	"testing"

	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestSink_Full_Buffer_Is_A_Transport_Error(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a sink holding a single event
	sink := NewSink(1)
	req.NoError(sink.Consume(ctx, event.Message{Text: "first"}))

	// When a second event arrives before the writer drains it
	err := sink.Consume(ctx, event.Message{Text: "second"})

	// Then it is refused without blocking
	req.ErrorIs(err, errors.ErrTransport)
	req.Equal(event.Message{Text: "first"}, <-sink.Events())
}

func TestSink_Closed_Refuses_Events(t *testing.T) {
	req := require.New(t)
	sink := NewSink(4)

	sink.Close()
	sink.Close()

	req.ErrorIs(sink.Consume(context.Background(), event.StopTyping{}), errors.ErrTransport)
	req.Empty(sink.Events())
}
