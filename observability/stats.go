package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// StatsReporter periodically logs pipeline outcome counters together
// with process level resource usage.
type StatsReporter struct {
	log      *slog.Logger
	outcomes *Outcomes
	interval time.Duration
}

func NewStatsReporter(log *slog.Logger, outcomes *Outcomes, interval time.Duration) *StatsReporter {
	return &StatsReporter{log: log, outcomes: outcomes, interval: interval}
}

func (s *StatsReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Error("Error while retrieving own process", "err", err)
		proc = nil
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Context done, stopping stats reporter")
			return nil
		case <-ticker.C:
			s.report(proc)
		}
	}
}

func (s *StatsReporter) report(proc *process.Process) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	args := []any{
		"outcomes", s.outcomes.Snapshot(),
		"alloc_mb", m.Alloc / 1024 / 1024,
		"goroutines", runtime.NumGoroutine(),
		"num_gc", m.NumGC,
	}

	if proc != nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			args = append(args, "cpu_percent", cpu)
		} else {
			s.log.Debug("Error while finding process cpu usage", "err", err)
		}
		if ram, err := proc.MemoryPercent(); err == nil {
			args = append(args, "ram_percent", ram)
		} else {
			s.log.Debug("Error while finding process ram usage", "err", err)
		}
	}

	s.log.Info("Pipeline stats", args...)
}
