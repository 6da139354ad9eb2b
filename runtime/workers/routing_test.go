package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRoutingWorker_Handles_Commands_In_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	handler := mocks.NewMockICommandHandler(ctrl)
	commands := make(chan domain.Command, 3)
	done := make(chan struct{})

	// Given three commands of the same connection
	first := domain.JoinRoom{Conn: "a", Room: "random"}
	second := domain.SendPublic{Conn: "a", Content: "hi"}
	third := domain.Disconnect{Conn: "a"}
	gomock.InOrder(
		handler.EXPECT().Handle(gomock.Any(), first),
		handler.EXPECT().Handle(gomock.Any(), second),
		handler.EXPECT().Handle(gomock.Any(), third).Do(func(context.Context, domain.Command) { close(done) }),
	)
	commands <- first
	commands <- second
	commands <- third

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := NewRoutingWorker(handler, commands, observability.NewRelay(), log)
	go func() { _ = worker.Run(ctx) }()

	// Then they are handled in arrival order
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Commands were not handled in time")
	}
}

func TestRoutingWorker_Survives_A_Panicking_Command(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	handler := mocks.NewMockICommandHandler(ctrl)
	stats := observability.NewRelay()
	commands := make(chan domain.Command, 2)
	done := make(chan struct{})

	// Given the first command makes the handler panic
	gomock.InOrder(
		handler.EXPECT().Handle(gomock.Any(), domain.Typing{Conn: "a"}).Do(func(context.Context, domain.Command) {
			panic("boom")
		}),
		handler.EXPECT().Handle(gomock.Any(), domain.Typing{Conn: "b"}).Do(func(context.Context, domain.Command) {
			close(done)
		}),
	)
	commands <- domain.Typing{Conn: "a"}
	commands <- domain.Typing{Conn: "b"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewRoutingWorker(handler, commands, stats, log).Run(ctx) }()

	// Then the next command is still handled
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Worker did not survive the panic")
	}
	req.EqualValues(1, stats.Snapshot().HandlerPanics)
}

func TestRoutingWorker_Stops_On_Closed_Channel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	commands := make(chan domain.Command)
	close(commands)

	worker := NewRoutingWorker(mocks.NewMockICommandHandler(ctrl), commands, observability.NewRelay(), logs.GetLoggerFromLevel(slog.LevelDebug))

	req.NoError(worker.Run(context.Background()))
}
