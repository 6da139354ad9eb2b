package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/contract"
	"chat-relay/observability"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HealthMonitoringWorker)(nil)

// Health is one sample of the relay process: counters plus resource usage.
type Health struct {
	Stats  observability.Stats
	Status string
	CPU    float64
	RAM    float32
}

// HealthMonitoringWorker periodically logs the relay counters together with
// the CPU and memory usage of the process.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	stats          *observability.Relay
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, stats *observability.Relay, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		stats:          stats,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			health, err := w.Sample()
			if err != nil {
				w.log.Debug("Unable to sample process", "pid", w.pid, "err", err)
			}
			w.log.Info("Relay health",
				"online", health.Stats.OnlineConnections,
				"rooms", health.Stats.Rooms,
				"queue", health.Stats.CommandQueueLength,
				"delivered", health.Stats.EventsDelivered,
				"dropped", health.Stats.DeliveriesDropped,
				"persisted", health.Stats.MessagesPersisted,
				"storage_failures", health.Stats.StorageFailures,
				"panics", health.Stats.HandlerPanics,
				"status", health.Status,
				"cpu", health.CPU,
				"ram", health.RAM)
		}
	}
}

// Sample reads the counters, then the process usage. Counters are returned
// even when the process cannot be inspected.
func (w *HealthMonitoringWorker) Sample() (Health, error) {
	health := Health{Stats: w.stats.Snapshot()}
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return health, err
	}
	if health.Status, err = p.Status(); err != nil {
		return health, err
	}
	if health.CPU, err = p.CPUPercent(); err != nil {
		return health, err
	}
	if health.RAM, err = p.MemoryPercent(); err != nil {
		return health, err
	}
	return health, nil
}
