package test

import (
	"runtime"
	"syscall"
	"time"

	"github.com/relex/gotils/logger"
)

// CostTracker measures CPU time and heap allocations of the whole process over a benchmark run
type CostTracker struct {
	start costSample
}

// CostReport contains measurements since NewCostTracker
type CostReport struct {
	RealTime      time.Duration
	UserTime      time.Duration
	SystemTime    time.Duration
	NumHeapAllocs uint64
	GCCPUFraction float64
}

type costSample struct {
	at         time.Time
	user       time.Duration
	system     time.Duration
	heapAllocs uint64
	gcFraction float64
}

// NewCostTracker runs GC and starts tracking
func NewCostTracker() *CostTracker {
	runtime.GC()
	return &CostTracker{start: takeCostSample()}
}

// Report runs GC and reports the costs since the tracker was created
func (ct *CostTracker) Report() CostReport {
	runtime.GC()
	end := takeCostSample()
	return CostReport{
		RealTime:      end.at.Sub(ct.start.at),
		UserTime:      end.user - ct.start.user,
		SystemTime:    end.system - ct.start.system,
		NumHeapAllocs: end.heapAllocs - ct.start.heapAllocs,
		GCCPUFraction: end.gcFraction,
	}
}

func takeCostSample() costSample {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		logger.Panic("failed to get resource usage: ", err)
	}
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return costSample{
		at:         time.Now(),
		user:       time.Duration(rusage.Utime.Nano()),
		system:     time.Duration(rusage.Stime.Nano()),
		heapAllocs: memStats.Mallocs,
		gcFraction: memStats.GCCPUFraction,
	}
}
