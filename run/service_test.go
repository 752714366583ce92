package run

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/analytic/testanalytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/input/synthetic"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, prefix string) (*Service, *recordingSinkConfig) {
	sinkConfig := &recordingSinkConfig{Header: bconfig.Header{Type: "recording"}}
	service, err := NewService(logger.WithField("test", t.Name()), ServiceConfig{
		Binding:      analytic.NewFrameBinding(testanalytic.Frame),
		AnalyticName: "default-analytic",
		Pipeline:     DefaultPipelineConfig(),
		Sinks:        []bconfig.SinkConfigHolder{{Value: sinkConfig}},
	}, promreg.NewMetricFactory(prefix, nil, nil))
	require.NoError(t, err)
	t.Cleanup(service.Shutdown)
	return service, sinkConfig
}

func TestServiceRequiresBinding(t *testing.T) {
	_, err := NewService(logger.WithField("test", t.Name()), ServiceConfig{Pipeline: DefaultPipelineConfig()}, nil)
	assert.Error(t, err)
}

func TestServiceConfigureAndTerminate(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_service_test_")
	ctx := context.Background()

	_, err := service.Status()
	assert.ErrorIs(t, err, base.ErrNotRunning)
	assert.ErrorIs(t, service.Terminate(ctx), base.ErrNotRunning)

	require.NoError(t, service.Configure(ctx, ConfigureRequest{
		SourceAddress: "synthetic://32x24?fps=100&paced=true",
		StreamID:      "cam-1",
		Tags:          map[string]string{"site": "lab"},
	}))
	st, err := service.Status()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, "default-analytic", st.Analytic)
	assert.Equal(t, []string{"recording-0"}, st.Sinks)
	_, uuidErr := uuid.Parse(st.SessionID)
	assert.NoError(t, uuidErr, "generated session ID")

	sink := sinkConfig.Sinks()[0]
	require.Eventually(t, func() bool { return sink.Len() >= 3 }, defs.TestReadTimeout, 10*time.Millisecond)
	sink.mutex.Lock()
	first := sink.results[0]
	sink.mutex.Unlock()
	assert.Equal(t, "lab", first.Tags["site"])
	assert.Equal(t, "cam-1", first.StreamID)
	assert.Equal(t, st.SessionID, first.SessionID)
	assert.Equal(t, "synthetic://32x24?fps=100&paced=true", first.StreamAddress)

	require.NoError(t, service.Terminate(ctx))
	assert.True(t, sink.Closed())
	st, err = service.Status()
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, st.State)
	assert.ErrorIs(t, service.Terminate(ctx), base.ErrNotRunning)
}

func TestServiceReplacesActivePipeline(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_service_replace_test_")
	ctx := context.Background()

	require.NoError(t, service.Configure(ctx, ConfigureRequest{SourceAddress: "synthetic://32x24?fps=100&paced=true", StreamID: "a"}))
	first := service.Active()
	require.NoError(t, service.Configure(ctx, ConfigureRequest{
		SourceAddress: "synthetic://32x24?fps=100&paced=true",
		StreamID:      "b",
		SessionID:     "fixed",
		Analytic:      AnalyticRequest{Name: "custom", Address: "10.0.0.1:50051"},
	}))
	second := service.Active()

	assert.NotSame(t, first, second)
	assert.Equal(t, StateTerminated, first.State())
	assert.Equal(t, StateRunning, second.State())
	sinks := sinkConfig.Sinks()
	require.Len(t, sinks, 2)
	assert.True(t, sinks[0].Closed())
	assert.False(t, sinks[1].Closed())

	st := second.Status()
	assert.Equal(t, "custom", st.Analytic)
	assert.Equal(t, "fixed", st.SessionID)
	assert.Equal(t, "stream.b.analytic.10.0.0.1", st.Topic)
}

func TestServiceRejectsInvalidRequests(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_service_invalid_test_")
	ctx := context.Background()

	cases := map[string]ConfigureRequest{
		"missing source":  {},
		"stream with dot": {SourceAddress: "synthetic://", StreamID: "a.b"},
		"half frame size": {SourceAddress: "synthetic://", FrameWidth: 640},
		"bad messenger":   {SourceAddress: "synthetic://", MessengerAddress: "not a url"},
		"empty tag key":   {SourceAddress: "synthetic://", Tags: map[string]string{"": "x"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			err := service.Configure(ctx, req)
			assert.ErrorIs(t, err, base.ErrInvalidRequest)
		})
	}
	assert.Empty(t, sinkConfig.Sinks())
	assert.Nil(t, service.Active())
}

func TestServiceSourceUnavailable(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_service_source_test_")

	err := service.Configure(context.Background(), ConfigureRequest{SourceAddress: "synthetic://wide?fps=1"})
	assert.ErrorIs(t, err, base.ErrSourceUnavailable)
	assert.Nil(t, service.Active())
	require.Len(t, sinkConfig.Sinks(), 1)
	assert.True(t, sinkConfig.Sinks()[0].Closed())
}

func TestServiceSinkFailure(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_service_sink_test_")

	err := service.Configure(context.Background(), ConfigureRequest{
		SourceAddress:    "synthetic://32x24",
		MessengerAddress: "nats://127.0.0.1:1",
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, base.ErrInvalidRequest)
	assert.Nil(t, service.Active())
	require.Len(t, sinkConfig.Sinks(), 1)
	assert.True(t, sinkConfig.Sinks()[0].Closed())
}

func TestServiceRealtimeOverride(t *testing.T) {
	service, _ := newTestService(t, "run_service_realtime_test_")
	realtime := false
	spec := service.newPipelineSpec(ConfigureRequest{SourceAddress: "synthetic://", Realtime: &realtime, FrameWidth: 64, FrameHeight: 48}, nil)
	assert.False(t, spec.Pipeline.FrameBuffer.Realtime)
	assert.Equal(t, base.CaptureOptions{FrameWidth: 64, FrameHeight: 48}, spec.CaptureOptions)
	assert.True(t, DefaultPipelineConfig().FrameBuffer.Realtime, "default not modified")

	spec = service.newPipelineSpec(ConfigureRequest{SourceAddress: "synthetic://"}, nil)
	assert.True(t, spec.Pipeline.FrameBuffer.Realtime)
	assert.Equal(t, "default-analytic", spec.Invoke.Analytic.Name)
}

// stuckSource blocks in Read until unblocked, regardless of cancellation
type stuckSource struct {
	base.CaptureSource
	unblock chan struct{}
}

func (src *stuckSource) Read() (base.CapturedFrame, error) {
	<-src.unblock
	return base.CapturedFrame{}, base.ErrSourceClosed
}

func TestServiceRejectsWhileSourceStillOpen(t *testing.T) {
	unblock := make(chan struct{})
	var opened atomic.Int32
	opener := func(address string, options base.CaptureOptions) (base.CaptureSource, error) {
		src, err := synthetic.Open(address, options)
		if err != nil {
			return nil, err
		}
		if opened.Add(1) == 1 {
			return &stuckSource{CaptureSource: src, unblock: unblock}, nil
		}
		return src, nil
	}
	service, err := NewService(logger.WithField("test", t.Name()), ServiceConfig{
		Binding:  analytic.NewFrameBinding(testanalytic.Frame),
		Pipeline: DefaultPipelineConfig(),
		Opener:   opener,
	}, promreg.NewMetricFactory("run_service_stuck_test_", nil, nil))
	require.NoError(t, err)
	t.Cleanup(service.Shutdown)
	ctx := context.Background()
	req := ConfigureRequest{SourceAddress: "synthetic://32x24?fps=100&paced=true", StreamID: "cam"}

	require.NoError(t, service.Configure(ctx, req))
	first := service.Active()
	require.NoError(t, service.Terminate(ctx))
	assert.Equal(t, StateTerminated, first.State())
	assert.False(t, first.SourceReleased())

	err = service.Configure(ctx, req)
	assert.ErrorIs(t, err, base.ErrConfigurationConflict)
	assert.EqualValues(t, 1, opened.Load())
	assert.Same(t, first, service.Active())

	close(unblock)
	require.Eventually(t, first.SourceReleased, defs.TestReadTimeout, 10*time.Millisecond)
	require.NoError(t, service.Configure(ctx, req))
	assert.EqualValues(t, 2, opened.Load())
	assert.Equal(t, StateRunning, service.Active().State())
}
