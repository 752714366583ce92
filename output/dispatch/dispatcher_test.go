package dispatch

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	defs.EnableTestMode()
	os.Exit(m.Run())
}

type recordingSink struct {
	name   string
	err    error
	delay  time.Duration
	mutex  sync.Mutex
	topics []string
	frames []uint64
	closed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.topics = append(s.topics, topic)
	s.frames = append(s.frames, result.Frame.Number)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) receivedFrames() []uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]uint64(nil), s.frames...)
}

func newTestOutput(t *testing.T, mfactory promreg.MetricCreator) *seqbuffer.Buffer[*base.Result] {
	return seqbuffer.NewBuffer[*base.Result](logger.WithField("test", t.Name()), "output", seqbuffer.Config{}, mfactory)
}

func pushResult(buf *seqbuffer.Buffer[*base.Result], seq uint64) {
	buf.Push(base.ResultRecord{Sequence: seq, Payload: &base.Result{Frame: base.FrameInfo{Number: seq}}})
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "stream.cam1.analytic.10.0.0.5", Topic("cam1", "10.0.0.5:50051"))
	assert.Equal(t, "stream.default.analytic.default", Topic("", ""))
	assert.Equal(t, "stream.s.analytic.analytic-host", Topic("s", "grpc://analytic-host:9000/path"))
	assert.Equal(t, "stream.s.analytic.host", Topic("s", "host"))
	assert.Equal(t, "stream.s.analytic.::1", Topic("s", "[::1]:80"))
}

func TestDispatchIsolatesSinks(t *testing.T) {
	mfactory := promreg.NewMetricFactory("dispatch_isolation_test_", nil, nil)
	messenger := &recordingSink{name: "nats", err: errors.New("publish failed")}
	database := &recordingSink{name: "timescale"}
	d := NewDispatcher(logger.WithField("test", t.Name()), newTestOutput(t, mfactory),
		[]base.ResultSink{messenger, database}, "cam", "analytic:1", mfactory)
	assert.Equal(t, []string{"nats", "timescale"}, d.SinkNames())

	errs := d.Dispatch(context.Background(), base.ResultRecord{Sequence: 1, Payload: &base.Result{Frame: base.FrameInfo{Number: 1}}})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], base.ErrSinkFailure)
	assert.ErrorContains(t, errs[0], "nats")
	assert.Equal(t, []uint64{1}, database.receivedFrames())
	assert.Equal(t, []string{"stream.cam.analytic.analytic"}, database.topics)
	assert.EqualValues(t, 1, d.metrics.failedDeliveries.Get())

	d.Close()
	assert.True(t, messenger.closed)
	assert.True(t, database.closed)
}

func TestDispatchSlowSinkDoesNotBlockOthers(t *testing.T) {
	mfactory := promreg.NewMetricFactory("dispatch_slow_test_", nil, nil)
	slow := &recordingSink{name: "slow", delay: time.Hour}
	fast := &recordingSink{name: "fast"}
	d := NewDispatcher(logger.WithField("test", t.Name()), newTestOutput(t, mfactory),
		[]base.ResultSink{slow, fast}, "cam", "", mfactory)

	start := time.Now()
	errs := d.Dispatch(context.Background(), base.ResultRecord{Sequence: 1, Payload: &base.Result{}})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
	assert.Less(t, time.Since(start), defs.SinkDeliveryTimeout+time.Second)
	assert.Len(t, fast.receivedFrames(), 1)
}

func TestDispatchNextInOrder(t *testing.T) {
	mfactory := promreg.NewMetricFactory("dispatch_order_test_", nil, nil)
	output := newTestOutput(t, mfactory)
	sink := &recordingSink{name: "db"}
	d := NewDispatcher(logger.WithField("test", t.Name()), output, []base.ResultSink{sink}, "cam", "", mfactory)

	for _, seq := range []uint64{3, 1, 2} {
		pushResult(output, seq)
	}
	for i := 0; i < 3; i++ {
		assert.True(t, d.DispatchNext(context.Background()))
	}
	assert.False(t, d.DispatchNext(context.Background()))
	assert.Equal(t, []uint64{1, 2, 3}, sink.receivedFrames())

	pushResult(output, 5)
	pushResult(output, 4)
	assert.Equal(t, 2, d.Drain(context.Background()))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sink.receivedFrames())
}

func TestDrainReleasesHeldBackResults(t *testing.T) {
	mfactory := promreg.NewMetricFactory("dispatch_drain_late_test_", nil, nil)
	output := newTestOutput(t, mfactory)
	sink := &recordingSink{name: "db"}
	d := NewDispatcher(logger.WithField("test", t.Name()), output, []base.ResultSink{sink}, "cam", "", mfactory)

	pushResult(output, 11)
	assert.True(t, d.DispatchNext(context.Background()))

	// a slower worker finishes frame 10 after 11 is out
	for _, seq := range []uint64{10, 12, 13} {
		pushResult(output, seq)
	}
	assert.Equal(t, 3, d.Drain(context.Background()))
	assert.Equal(t, []uint64{11, 10, 12, 13}, sink.receivedFrames())
	assert.Equal(t, 0, output.Len())
	assert.EqualValues(t, 1, d.metrics.lateResults.Get())
}

func TestDispatchLateResult(t *testing.T) {
	mfactory := promreg.NewMetricFactory("dispatch_late_test_", nil, nil)
	sink := &recordingSink{name: "db"}
	d := NewDispatcher(logger.WithField("test", t.Name()), newTestOutput(t, mfactory), []base.ResultSink{sink}, "", "", mfactory)
	assert.Empty(t, d.Dispatch(context.Background(), base.ResultRecord{Sequence: 2, Late: true, Payload: &base.Result{}}))
	assert.EqualValues(t, 1, d.metrics.lateResults.Get())
}
