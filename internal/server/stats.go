package server

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// sampleProcessStats periodically refreshes the CPU/RSS gauges from
// gopsutil, the same library the teacher's health endpoints use for
// process-level observability.
func (s *Server) sampleProcessStats(ctx context.Context) {
	if s.m == nil {
		return
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Warn("process stats unavailable", zap.Error(err))
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := proc.CPUPercent(); err == nil {
				s.m.CPUPercent.Set(pct)
			}
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				s.m.RSSBytes.Set(float64(mem.RSS))
			}
		}
	}
}
