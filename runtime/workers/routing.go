package workers

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

var _ contract.Worker = (*RoutingWorker)(nil)

// RoutingWorker is the single goroutine applying commands to the routing state.
// A panicking command is logged and skipped, the next one is processed normally.
type RoutingWorker struct {
	handler  contract.ICommandHandler
	commands <-chan domain.Command
	stats    *observability.Relay
	log      *slog.Logger
}

func NewRoutingWorker(
	handler contract.ICommandHandler,
	commands <-chan domain.Command,
	stats *observability.Relay,
	log *slog.Logger) *RoutingWorker {
	return &RoutingWorker{
		handler:  handler,
		commands: commands,
		stats:    stats,
		log:      log,
	}
}

func (w *RoutingWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.stats.SetQueueLength(len(w.commands))
			w.handle(ctx, cmd)
		}
	}
}

func (w *RoutingWorker) handle(ctx context.Context, cmd domain.Command) {
	defer func() {
		if r := recover(); r != nil {
			w.stats.IncrPanics()
			w.log.Error("Command handler panicked",
				"command", fmt.Sprintf("%T", cmd),
				"connection_id", cmd.Connection(),
				"panic", r)
		}
	}()
	w.handler.Handle(ctx, cmd)
}
