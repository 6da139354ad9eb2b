package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanoutWorker_Fanout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockISinkRegistry(ctrl)
	aliceSink := mocks.NewMockEventSink(ctrl)
	bobSink := mocks.NewMockEventSink(ctrl)
	stats := observability.NewRelay()

	fanoutWorker := NewEventFanout(log, mockRegistry, nil, stats, time.Second)
	evt := event.Message{Text: "carol: hi"}

	// Given alice and bob are subscribed and carol's connection is gone
	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("alice")).Return(aliceSink, true).Times(1)
	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("carol")).Return(nil, false).Times(1)
	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("bob")).Return(bobSink, true).Times(1)
	gomock.InOrder(
		aliceSink.EXPECT().Consume(gomock.Any(), evt).Return(nil),
		bobSink.EXPECT().Consume(gomock.Any(), evt).Return(nil),
	)

	// When an event is delivered to all three
	fanoutWorker.Fanout(context.Background(), event.Delivery{
		Recipients: []domain.ConnectionID{"alice", "carol", "bob"},
		Event:      evt,
	})

	// Then the live ones got it and the vanished one is a no-op
	req.EqualValues(2, stats.Snapshot().EventsDelivered)
	req.Zero(stats.Snapshot().DeliveriesDropped)
}

func TestEventFanoutWorker_Failing_Sink_Does_Not_Stop_The_Others(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockISinkRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)
	fullSink := mocks.NewMockEventSink(ctrl)
	okSink := mocks.NewMockEventSink(ctrl)
	stats := observability.NewRelay()

	sinkTimeout := 20 * time.Millisecond
	fanoutWorker := NewEventFanout(log, mockRegistry, nil, stats, sinkTimeout)

	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("slow")).Return(slowSink, true)
	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("full")).Return(fullSink, true)
	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("ok")).Return(okSink, true)
	slowSink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.Event) error {
			<-ctx.Done()     // Waiting for timeout to trigger cancellation
			return ctx.Err() // Sending back "context deadline exceeded"
		}).Times(1)
	fullSink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("buffer full: %w", errors.ErrTransport)).Times(1)
	okSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	fanoutWorker.Fanout(context.Background(), event.Delivery{
		Recipients: []domain.ConnectionID{"slow", "full", "ok"},
		Event:      event.StopTyping{},
	})

	req.EqualValues(2, stats.Snapshot().DeliveriesDropped)
	req.EqualValues(1, stats.Snapshot().EventsDelivered)
}

func TestEventFanoutWorker_Run_Drains_Deliveries(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockISinkRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	deliveries := make(chan event.Delivery, 2)
	done := make(chan struct{})

	mockRegistry.EXPECT().SinkFor(domain.ConnectionID("alice")).Return(sink, true).Times(2)
	gomock.InOrder(
		sink.EXPECT().Consume(gomock.Any(), event.ClearView{}).Return(nil),
		sink.EXPECT().Consume(gomock.Any(), event.Message{Text: "bob: welcome"}).
			DoAndReturn(func(context.Context, event.Event) error {
				close(done)
				return nil
			}),
	)
	deliveries <- event.Delivery{Recipients: []domain.ConnectionID{"alice"}, Event: event.ClearView{}}
	deliveries <- event.Delivery{Recipients: []domain.ConnectionID{"alice"}, Event: event.Message{Text: "bob: welcome"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewEventFanout(log, mockRegistry, deliveries, observability.NewRelay(), time.Second).Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Deliveries were not drained in time")
	}
}
