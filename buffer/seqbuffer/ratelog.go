package seqbuffer

import (
	"sort"
	"time"
)

// rateLog remembers event times for sliding-window throughput
//
// Events must be added in non-decreasing time order.
type rateLog struct {
	times     []time.Time
	retention time.Duration
}

func newRateLog(retention time.Duration) rateLog {
	return rateLog{
		times:     make([]time.Time, 0, 256),
		retention: retention,
	}
}

func (rl *rateLog) add(now time.Time, count int) {
	for i := 0; i < count; i++ {
		rl.times = append(rl.times, now)
	}
	rl.trim(now)
}

func (rl *rateLog) trim(now time.Time) {
	cutoff := now.Add(-rl.retention)
	start := sort.Search(len(rl.times), func(i int) bool { return rl.times[i].After(cutoff) })
	if start == 0 {
		return
	}
	// shift in place only when the dead prefix is large
	if start >= len(rl.times)/2 {
		n := copy(rl.times, rl.times[start:])
		rl.times = rl.times[:n]
	} else {
		rl.times = rl.times[start:]
	}
}

// rate returns events per second within (now-window, now]
func (rl *rateLog) rate(now time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	from := now.Add(-window)
	start := sort.Search(len(rl.times), func(i int) bool { return rl.times[i].After(from) })
	end := sort.Search(len(rl.times), func(i int) bool { return rl.times[i].After(now) })
	return float64(end-start) / window.Seconds()
}

func (rl *rateLog) reset() {
	rl.times = rl.times[:0]
}
