// Package seqbuffer provides a thread-safe priority buffer ordering records by sequence number
package seqbuffer

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
)

// Direction selects push or pop events for throughput
type Direction int

// Directions for Buffer.Throughput
const (
	DirectionPush Direction = iota
	DirectionPop
)

// ErrBufferFull is returned when a record cannot be pushed into a full buffer
var ErrBufferFull = errors.New("buffer full")

// Buffer is a priority buffer of records keyed by sequence number
//
// In realtime mode the highest sequence is popped first, to favor fresh frames over complete processing;
// in ordered mode the lowest sequence is popped first.
//
// The last popped sequence never goes backwards: a pop reaching a record behind it is a conflict, and
// everything removed in that pop is pushed back, and every queued record behind the last popped sequence starts
// its hold-back. Such a record is eventually released alone with Late=true once it's at the head, see
// Config.ConflictHoldback.
type Buffer[T any] struct {
	logger     logger.Logger
	config     Config
	overflow   OverflowPolicy
	holdback   time.Duration
	mutex      sync.Mutex
	queue      entryQueue[T]
	insertions uint64
	counter    uint64 // the last assigned or seen sequence
	lastPopped uint64
	pushed     chan struct{} // closed and replaced on every push
	freed      chan struct{} // closed and replaced whenever space is freed
	pushLog    rateLog
	popLog     rateLog
	metrics    bufferMetrics
	now        func() time.Time
}

// NewBuffer creates a Buffer
func NewBuffer[T any](parentLogger logger.Logger, name string, config Config, metricCreator promreg.MetricCreator) *Buffer[T] {
	return &Buffer[T]{
		logger:   parentLogger.WithFields(logger.Fields{defs.LabelComponent: "SequencedBuffer", defs.LabelName: name}),
		config:   config,
		overflow: config.overflowPolicy(),
		holdback: config.conflictHoldback(),
		queue:    make(entryQueue[T], 0, 64),
		pushed:   make(chan struct{}),
		freed:    make(chan struct{}),
		pushLog:  newRateLog(defs.BufferThroughputRetention),
		popLog:   newRateLog(defs.BufferThroughputRetention),
		metrics:  newBufferMetrics(metricCreator, name),
		now:      time.Now,
	}
}

// Realtime returns true if the buffer pops the highest sequence first
func (buf *Buffer[T]) Realtime() bool {
	return buf.config.Realtime
}

// Push inserts a record without blocking
//
// A zero Sequence is replaced by an internal counter and a zero Timestamp by the current time.
//
// Returns false if the record was rejected because the buffer is full; with the dropOldest policy the lowest
// sequence (possibly this record) is dropped instead and true is returned.
func (buf *Buffer[T]) Push(rec base.Record[T]) bool {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	if buf.isFullLocked() {
		switch buf.overflow {
		case OverflowDropOldest:
			return buf.pushDroppingOldestLocked(rec)
		default:
			buf.metrics.droppedRejected.Inc()
			return false
		}
	}
	buf.insertLocked(rec)
	return true
}

// PushWait inserts a record, waiting for free space if the buffer is full and the overflow policy is "block"
//
// Returns ErrBufferFull if rejected by policy, or the context error if cancelled while waiting.
func (buf *Buffer[T]) PushWait(ctx context.Context, rec base.Record[T]) error {
	for {
		buf.mutex.Lock()
		if !buf.isFullLocked() {
			buf.insertLocked(rec)
			buf.mutex.Unlock()
			return nil
		}
		switch buf.overflow {
		case OverflowDropOldest:
			buf.pushDroppingOldestLocked(rec)
			buf.mutex.Unlock()
			return nil
		case OverflowReject:
			buf.metrics.droppedRejected.Inc()
			buf.mutex.Unlock()
			return ErrBufferFull
		}
		freed := buf.freed
		buf.mutex.Unlock()

		select {
		case <-freed:
		case <-ctx.Done():
			buf.metrics.droppedRejected.Inc()
			return ctx.Err()
		}
	}
}

// Pop removes up to count records of the highest priority and returns them in ascending order of sequence
//
// Returns nil if the buffer is empty or on conflict, i.e. when any of the removed records is behind the last
// popped sequence; in that case all removed records are put back unchanged.
func (buf *Buffer[T]) Pop(count int) []base.Record[T] {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return buf.popLocked(count, false, false)
}

// PopReleasingLate is Pop releasing a record behind the last popped sequence at once as late, regardless of
// Config.ConflictHoldback
//
// Returns nil only if the buffer is empty. It's for draining at shutdown, when no earlier record can arrive.
func (buf *Buffer[T]) PopReleasingLate(count int) []base.Record[T] {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return buf.popLocked(count, false, true)
}

// PopWait is Pop waiting up to timeout for records to arrive
//
// A conflict does not end the wait: it's retried on the next push until timeout.
func (buf *Buffer[T]) PopWait(ctx context.Context, count int, timeout time.Duration) []base.Record[T] {
	return buf.popWait(ctx, count, false, timeout)
}

// PopBatchWait is PopWait returning exactly size records, unless a single late record is released
func (buf *Buffer[T]) PopBatchWait(ctx context.Context, size int, timeout time.Duration) []base.Record[T] {
	return buf.popWait(ctx, size, true, timeout)
}

// Empty returns true if there is no pending record
func (buf *Buffer[T]) Empty() bool {
	return buf.Len() == 0
}

// Len returns the numbers of pending records
func (buf *Buffer[T]) Len() int {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return len(buf.queue)
}

// LastPopped returns the highest sequence successfully popped so far
func (buf *Buffer[T]) LastPopped() uint64 {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return buf.lastPopped
}

// Flush drops all pending records and returns how many were dropped
func (buf *Buffer[T]) Flush() int {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	n := len(buf.queue)
	for i := range buf.queue {
		buf.queue[i] = nil
	}
	buf.queue = buf.queue[:0]
	buf.pushLog.reset()
	buf.popLog.reset()
	buf.metrics.droppedFlush.Add(uint64(n))
	buf.metrics.queuedRecords.Set(0)
	if n > 0 {
		buf.logger.Infof("flushed %d records", n)
		buf.signalFreedLocked()
	}
	return n
}

// Throughput returns the rate of pushed or popped records per second over the last window
func (buf *Buffer[T]) Throughput(window time.Duration, direction Direction) float64 {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	now := buf.now()
	if direction == DirectionPush {
		return buf.pushLog.rate(now, window)
	}
	return buf.popLog.rate(now, window)
}

func (buf *Buffer[T]) popWait(ctx context.Context, count int, exact bool, timeout time.Duration) []base.Record[T] {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		buf.mutex.Lock()
		batch := buf.popLocked(count, exact, false)
		pushed := buf.pushed
		buf.mutex.Unlock()

		if batch != nil {
			return batch
		}
		select {
		case <-pushed:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (buf *Buffer[T]) isFullLocked() bool {
	return buf.config.Capacity > 0 && len(buf.queue) >= buf.config.Capacity
}

func (buf *Buffer[T]) insertLocked(rec base.Record[T]) {
	buf.counter++
	if rec.Sequence == 0 {
		rec.Sequence = buf.counter
	} else if rec.Sequence > buf.counter {
		buf.counter = rec.Sequence
	}
	now := buf.now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}

	key := int64(rec.Sequence)
	if buf.config.Realtime {
		key = -key
	}
	buf.insertions++
	heap.Push(&buf.queue, &entry[T]{record: rec, key: key, order: buf.insertions})

	buf.pushLog.add(now, 1)
	buf.metrics.pushedRecords.Inc()
	buf.metrics.queuedRecords.Inc()

	close(buf.pushed)
	buf.pushed = make(chan struct{})
}

func (buf *Buffer[T]) pushDroppingOldestLocked(rec base.Record[T]) bool {
	oldest := buf.queue.oldest()
	if oldest == nil {
		buf.insertLocked(rec)
		return true
	}
	if rec.Sequence != 0 && rec.Sequence < oldest.record.Sequence {
		buf.logger.Debugf("drop incoming record seq=%d behind the oldest queued", rec.Sequence)
		buf.metrics.droppedOverflow.Inc()
		return true
	}
	heap.Remove(&buf.queue, oldest.index)
	buf.metrics.queuedRecords.Dec()
	buf.metrics.droppedOverflow.Inc()
	buf.logger.Debugf("drop oldest record seq=%d on overflow", oldest.record.Sequence)
	buf.insertLocked(rec)
	return true
}

func (buf *Buffer[T]) popLocked(count int, exact bool, releaseLate bool) []base.Record[T] {
	if count < 1 {
		count = 1
	}
	if len(buf.queue) == 0 {
		return nil
	}
	now := buf.now()

	if head := buf.queue[0]; head.record.Sequence < buf.lastPopped && (releaseLate || buf.heldBackLocked(head, now)) {
		heap.Pop(&buf.queue)
		rec := head.record
		rec.Late = true
		buf.logger.Warnf("release late record seq=%d behind last popped seq=%d", rec.Sequence, buf.lastPopped)
		buf.metrics.lateRecords.Inc()
		buf.onPoppedLocked(now, 1)
		return []base.Record[T]{rec}
	}

	if exact && len(buf.queue) < count {
		return nil
	}

	removed := make([]*entry[T], 0, count)
	conflict := false
	for len(removed) < count && len(buf.queue) > 0 {
		e := heap.Pop(&buf.queue).(*entry[T])
		removed = append(removed, e)
		if e.record.Sequence < buf.lastPopped {
			conflict = true
			break
		}
	}

	if conflict {
		for _, e := range removed {
			heap.Push(&buf.queue, e)
		}
		// hold-back periods of all stale records start together
		for _, e := range buf.queue {
			if e.record.Sequence < buf.lastPopped && e.conflictedAt.IsZero() {
				e.conflictedAt = now
			}
		}
		buf.logger.Debugf("conflict: %d records pushed back, last popped seq=%d", len(removed), buf.lastPopped)
		buf.metrics.conflicts.Inc()
		return nil
	}

	// insertion sort by sequence as records are removed in priority order
	batch := make([]base.Record[T], 0, len(removed))
	for _, e := range removed {
		seq := e.record.Sequence
		pos := sort.Search(len(batch), func(i int) bool { return batch[i].Sequence > seq })
		batch = append(batch, base.Record[T]{})
		copy(batch[pos+1:], batch[pos:])
		batch[pos] = e.record
	}
	buf.lastPopped = batch[len(batch)-1].Sequence
	buf.onPoppedLocked(now, len(batch))
	return batch
}

func (buf *Buffer[T]) heldBackLocked(e *entry[T], now time.Time) bool {
	return buf.holdback > 0 && !e.conflictedAt.IsZero() && now.Sub(e.conflictedAt) >= buf.holdback
}

func (buf *Buffer[T]) onPoppedLocked(now time.Time, count int) {
	buf.popLog.add(now, count)
	buf.metrics.poppedRecords.Add(uint64(count))
	buf.metrics.queuedRecords.Sub(int64(count))
	buf.signalFreedLocked()
}

func (buf *Buffer[T]) signalFreedLocked() {
	close(buf.freed)
	buf.freed = make(chan struct{})
}
