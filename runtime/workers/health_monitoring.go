package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"

	"team-chat/observability"
)

// HealthMonitoringWorker samples the server's own process and logs it
// alongside the dispatch counters at a fixed interval.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitor *observability.Monitor,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitor:        monitor,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			stats := w.monitor.Snapshot()
			w.log.Info("Health",
				"cpu", cpu,
				"ram", ram,
				"connections", stats.Connections,
				"dispatched", stats.EventsDispatched,
				"deliveries_ok", stats.DeliveriesOK,
				"deliveries_failed", stats.DeliveriesFailed,
				"messages_stored", stats.MessagesStored,
				"uptime", stats.Uptime)
		}
	}
}
