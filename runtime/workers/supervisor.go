package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"
)

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor runs every worker in its own goroutine and restarts the ones that
// crash, after restartInterval. A worker returning nil is done for good.
// Run returns once every worker has stopped, which happens when the parent
// context is canceled or Stop is called.
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run ties the workers to a context derived from ctx, so that Stop only
// cancels the supervised workers and never the caller.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs one worker under supervision: a panic or an error restarts it,
// the supervision loop itself never dies with it.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				s.log.Info("Stopping worker", "name", name)
				return
			}

			err := s.runOnce(ctx, worker, name)
			if err == nil {
				// Terminated properly, never restart !
				s.log.Info("Worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "after", s.restartInterval)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Worker panicked", "name", name, "panic", r)
			err = fmt.Errorf("%v: %w", r, errors.ErrWorkerPanic)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels the supervised workers, Run returns once they are all done.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
