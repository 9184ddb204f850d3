package app

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/searchktools/fast-host/config"
)

// ApplyRuntime applies GC tuning; zero fields keep the runtime defaults
func ApplyRuntime(cfg config.RuntimeConfig) {
	if cfg.GCPercent != 0 {
		debug.SetGCPercent(cfg.GCPercent)
	}

	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
}

// RuntimeStats holds garbage collection statistics
type RuntimeStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	LastPause    time.Duration
	AllocBytes   uint64
	Sys          uint64
	NumGoroutine int
}

// ReadRuntimeStats returns current GC statistics
func ReadRuntimeStats() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := RuntimeStats{
		NumGC:        ms.NumGC,
		PauseTotal:   time.Duration(ms.PauseTotalNs),
		AllocBytes:   ms.Alloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return stats
}
