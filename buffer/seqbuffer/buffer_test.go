package seqbuffer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBuffer(t *testing.T, config Config) (*Buffer[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	buf := NewBuffer[string](logger.WithField("test", t.Name()), "test", config, promreg.NewMetricFactory("seqbuffer_test_", nil, nil))
	buf.now = clock.Now
	return buf, clock
}

func pushSeqs(buf *Buffer[string], seqs ...uint64) {
	for _, s := range seqs {
		buf.Push(base.Record[string]{Sequence: s, Payload: "frame"})
	}
}

func sequencesOf(records []base.Record[string]) []uint64 {
	if records == nil {
		return nil
	}
	seqs := make([]uint64, len(records))
	for i, r := range records {
		seqs[i] = r.Sequence
	}
	return seqs
}

func TestBufferOrderedPopsNonDecreasing(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: false})
	rnd := rand.New(rand.NewSource(42))
	seqs := make([]uint64, 200)
	for i := range seqs {
		seqs[i] = uint64(i + 1)
	}
	rnd.Shuffle(len(seqs), func(i, j int) { seqs[i], seqs[j] = seqs[j], seqs[i] })
	pushSeqs(buf, seqs...)

	var last uint64
	popped := 0
	for !buf.Empty() {
		batch := buf.Pop(1)
		require.Len(t, batch, 1)
		assert.GreaterOrEqual(t, batch[0].Sequence, last)
		assert.False(t, batch[0].Late)
		last = batch[0].Sequence
		popped++
	}
	assert.Equal(t, 200, popped)
	assert.Equal(t, uint64(200), buf.LastPopped())
}

func TestBufferOrderedPopsLowestFirst(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: false})
	pushSeqs(buf, 3, 1, 2)

	assert.Equal(t, []uint64{1}, sequencesOf(buf.Pop(1)))
	assert.Equal(t, []uint64{2}, sequencesOf(buf.Pop(1)))
	assert.Equal(t, []uint64{3}, sequencesOf(buf.Pop(1)))
	assert.Nil(t, buf.Pop(1))
}

func TestBufferRealtimeFreshness(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: true})
	pushSeqs(buf, 1, 2, 3)

	assert.Equal(t, []uint64{3}, sequencesOf(buf.Pop(1)))
}

func TestBufferRealtimeKeepsStaleRecords(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: true, ConflictHoldback: -1})
	pushSeqs(buf, 1, 2, 3, 4, 5)

	assert.Equal(t, []uint64{5}, sequencesOf(buf.Pop(1)))
	assert.Nil(t, buf.Pop(1))
	assert.Equal(t, 4, buf.Len(), "stale records stay in the buffer")

	// fresh frames still take over
	pushSeqs(buf, 6)
	assert.Equal(t, []uint64{6}, sequencesOf(buf.Pop(1)))
}

func TestBufferConflictPushBack(t *testing.T) {
	buf, clock := newTestBuffer(t, Config{Realtime: false, ConflictHoldback: time.Second})
	pushSeqs(buf, 45)
	assert.Equal(t, []uint64{45}, sequencesOf(buf.Pop(1)))

	pushSeqs(buf, 40)
	assert.Nil(t, buf.Pop(1))
	assert.Equal(t, 1, buf.Len(), "conflicting record must not be discarded")
	assert.Equal(t, uint64(45), buf.LastPopped())

	clock.Advance(500 * time.Millisecond)
	assert.Nil(t, buf.Pop(1))
	assert.Equal(t, 1, buf.Len())

	clock.Advance(500 * time.Millisecond)
	late := buf.Pop(1)
	if assert.Len(t, late, 1) {
		assert.Equal(t, uint64(40), late[0].Sequence)
		assert.True(t, late[0].Late)
	}
	assert.True(t, buf.Empty())
	assert.Equal(t, uint64(45), buf.LastPopped(), "late release never moves the last popped sequence back")
}

func TestBufferConflictHoldbackStartsForAllStale(t *testing.T) {
	buf, clock := newTestBuffer(t, Config{Realtime: false, ConflictHoldback: time.Second})
	pushSeqs(buf, 10)
	assert.Equal(t, []uint64{10}, sequencesOf(buf.Pop(1)))

	pushSeqs(buf, 5, 3, 4)
	assert.Nil(t, buf.Pop(1))

	clock.Advance(time.Second)
	for _, seq := range []uint64{3, 4, 5} {
		late := buf.Pop(1)
		if assert.Len(t, late, 1, "seq %d", seq) {
			assert.Equal(t, seq, late[0].Sequence)
			assert.True(t, late[0].Late)
		}
	}
	assert.True(t, buf.Empty())
}

func TestBufferPopReleasingLate(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: false, ConflictHoldback: -1})
	pushSeqs(buf, 10)
	buf.Pop(1)
	pushSeqs(buf, 12, 3)

	assert.Nil(t, buf.Pop(1))
	late := buf.PopReleasingLate(1)
	if assert.Len(t, late, 1) {
		assert.Equal(t, uint64(3), late[0].Sequence)
		assert.True(t, late[0].Late)
	}
	next := buf.PopReleasingLate(1)
	if assert.Len(t, next, 1) {
		assert.Equal(t, uint64(12), next[0].Sequence)
		assert.False(t, next[0].Late)
	}
	assert.Nil(t, buf.PopReleasingLate(1))
	assert.Equal(t, uint64(12), buf.LastPopped())
}

func TestBufferConflictStrictMode(t *testing.T) {
	buf, clock := newTestBuffer(t, Config{Realtime: false, ConflictHoldback: -1})
	pushSeqs(buf, 45)
	buf.Pop(1)
	pushSeqs(buf, 40)

	clock.Advance(time.Hour)
	assert.Nil(t, buf.Pop(1))
	assert.Equal(t, 1, buf.Len())
}

func TestBufferConflictPushesBackWholeBatch(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: true})
	pushSeqs(buf, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	assert.Equal(t, []uint64{8, 9, 10}, sequencesOf(buf.Pop(3)))

	pushSeqs(buf, 11, 12)
	// removes 12, 11, then 7 which is behind 10
	assert.Nil(t, buf.Pop(3))
	assert.Equal(t, 9, buf.Len())

	assert.Equal(t, []uint64{11, 12}, sequencesOf(buf.Pop(2)))
}

func TestBufferBatchSortedAscending(t *testing.T) {
	for _, realtime := range []bool{true, false} {
		buf, _ := newTestBuffer(t, Config{Realtime: realtime})
		pushSeqs(buf, 7, 3, 9, 1, 5)

		batch := buf.Pop(5)
		assert.Equal(t, []uint64{1, 3, 5, 7, 9}, sequencesOf(batch), "realtime=%v", realtime)
		assert.Equal(t, uint64(9), buf.LastPopped())
	}
}

func TestBufferAssignsSequenceAndTimestamp(t *testing.T) {
	buf, clock := newTestBuffer(t, Config{Realtime: false})
	buf.Push(base.Record[string]{Payload: "a"})
	buf.Push(base.Record[string]{Sequence: 10, Payload: "b"})
	buf.Push(base.Record[string]{Payload: "c"})

	batch := buf.Pop(3)
	assert.Equal(t, []uint64{1, 10, 11}, sequencesOf(batch))
	assert.Equal(t, "c", batch[2].Payload)
	assert.Equal(t, clock.Now(), batch[0].Timestamp)
}

func TestBufferKeepsInsertionOrderForEqualSequences(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: false})
	buf.Push(base.Record[string]{Sequence: 4, Payload: "first"})
	buf.Push(base.Record[string]{Sequence: 4, Payload: "second"})

	assert.Equal(t, "first", buf.Pop(1)[0].Payload)
	assert.Equal(t, "second", buf.Pop(1)[0].Payload)
}

func TestBufferDropOldestOnOverflow(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: true, Capacity: 3})
	pushSeqs(buf, 1, 2, 3, 4)
	assert.Equal(t, 3, buf.Len())

	pushSeqs(buf, 1) // older than anything queued
	assert.Equal(t, []uint64{2, 3, 4}, sequencesOf(buf.Pop(3)))
}

func TestBufferRejectOnOverflow(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: false, Capacity: 2, Overflow: OverflowReject})
	assert.True(t, buf.Push(base.Record[string]{Sequence: 1}))
	assert.True(t, buf.Push(base.Record[string]{Sequence: 2}))
	assert.False(t, buf.Push(base.Record[string]{Sequence: 3}))
	assert.ErrorIs(t, buf.PushWait(context.Background(), base.Record[string]{Sequence: 3}), ErrBufferFull)
}

func TestBufferBlockOnOverflow(t *testing.T) {
	buf := NewBuffer[string](logger.WithField("test", t.Name()), "test", Config{Realtime: false, Capacity: 1},
		promreg.NewMetricFactory("seqbuffer_block_test_", nil, nil))
	require.NoError(t, buf.PushWait(context.Background(), base.Record[string]{Sequence: 1}))
	assert.False(t, buf.Push(base.Record[string]{Sequence: 2}), "plain push rejects when blocking policy is full")

	done := make(chan error, 1)
	go func() {
		done <- buf.PushWait(context.Background(), base.Record[string]{Sequence: 2})
	}()
	select {
	case <-done:
		t.Fatal("PushWait should block while full")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, []uint64{1}, sequencesOf(buf.Pop(1)))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(defs.TestReadTimeout):
		t.Fatal("PushWait not woken by pop")
	}
	assert.Equal(t, []uint64{2}, sequencesOf(buf.Pop(1)))

	require.NoError(t, buf.PushWait(context.Background(), base.Record[string]{Sequence: 3}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, buf.PushWait(ctx, base.Record[string]{Sequence: 4}), context.DeadlineExceeded)
}

func TestBufferPopWait(t *testing.T) {
	buf := NewBuffer[string](logger.WithField("test", t.Name()), "test", Config{Realtime: false},
		promreg.NewMetricFactory("seqbuffer_wait_test_", nil, nil))

	start := time.Now()
	assert.Nil(t, buf.PopWait(context.Background(), 1, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		buf.Push(base.Record[string]{Sequence: 8, Payload: "x"})
	}()
	batch := buf.PopWait(context.Background(), 1, defs.TestReadTimeout)
	assert.Equal(t, []uint64{8}, sequencesOf(batch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, buf.PopWait(ctx, 1, defs.TestReadTimeout))
}

func TestBufferPopBatchWait(t *testing.T) {
	buf := NewBuffer[string](logger.WithField("test", t.Name()), "test", Config{Realtime: false},
		promreg.NewMetricFactory("seqbuffer_batch_test_", nil, nil))
	pushSeqs(buf, 1, 2)
	assert.Nil(t, buf.PopBatchWait(context.Background(), 3, 20*time.Millisecond))
	assert.Equal(t, 2, buf.Len())

	go func() {
		time.Sleep(20 * time.Millisecond)
		pushSeqs(buf, 3)
	}()
	assert.Equal(t, []uint64{1, 2, 3}, sequencesOf(buf.PopBatchWait(context.Background(), 3, defs.TestReadTimeout)))
}

func TestBufferFlush(t *testing.T) {
	buf, _ := newTestBuffer(t, Config{Realtime: true})
	pushSeqs(buf, 1, 2, 3)
	assert.Equal(t, 3, buf.Flush())
	assert.True(t, buf.Empty())
	assert.Nil(t, buf.Pop(1))
	assert.Equal(t, 0, buf.Flush())
}

func TestBufferThroughput(t *testing.T) {
	buf, clock := newTestBuffer(t, Config{Realtime: false})
	for i := 0; i < 10; i++ {
		buf.Push(base.Record[string]{})
	}
	clock.Advance(2 * time.Second)
	for i := 0; i < 10; i++ {
		buf.Push(base.Record[string]{})
	}
	buf.Pop(5)

	assert.InDelta(t, 10.0, buf.Throughput(time.Second, DirectionPush), 0.001)
	assert.InDelta(t, 20.0/3.0, buf.Throughput(3*time.Second, DirectionPush), 0.001)
	assert.InDelta(t, 5.0, buf.Throughput(time.Second, DirectionPop), 0.001)

	clock.Advance(5 * time.Second)
	assert.InDelta(t, 0.0, buf.Throughput(time.Second, DirectionPush), 0.001)
}

func TestConfigVerify(t *testing.T) {
	assert.NoError(t, Config{Capacity: 10, Overflow: OverflowBlock}.VerifyConfig())
	assert.Error(t, Config{Capacity: -1}.VerifyConfig())
	assert.Error(t, Config{Overflow: "spill"}.VerifyConfig())
	assert.Equal(t, OverflowDropOldest, Config{Realtime: true}.overflowPolicy())
	assert.Equal(t, OverflowBlock, Config{Realtime: false}.overflowPolicy())
}
