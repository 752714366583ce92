package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/input/capture"
	"github.com/relex/frame-agent/output/natssink"
	"github.com/relex/frame-agent/output/timescale"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
)

// ServiceConfig is the static part of every pipeline run by a Service
type ServiceConfig struct {
	Binding      analytic.Binding
	AnalyticName string // used when requests don't name the analytic
	Pipeline     PipelineConfig
	Sinks        []bconfig.SinkConfigHolder // static sinks created for every pipeline
	Opener       base.CaptureOpener         // nil for capture.Open
}

// Service is the control surface of the agent: it runs at most one pipeline at a time
type Service struct {
	logger        logger.Logger
	config        ServiceConfig
	metricCreator promreg.MetricCreator

	mutex  sync.Mutex
	active *Controller

	newMessengerSink func(address string) bconfig.SinkConfig
	newDatabaseSink  func(address string) bconfig.SinkConfig
}

// NewService creates a Service without any pipeline running
func NewService(parentLogger logger.Logger, config ServiceConfig, metricCreator promreg.MetricCreator) (*Service, error) {
	if config.Binding.IsZero() {
		return nil, fmt.Errorf("no analytic bound")
	}
	if err := config.Pipeline.VerifyConfig(); err != nil {
		return nil, fmt.Errorf("pipeline%w", err)
	}
	if config.Opener == nil {
		config.Opener = capture.Open
	}
	return &Service{
		logger:           parentLogger.WithField(defs.LabelComponent, "ControlService"),
		config:           config,
		metricCreator:    metricCreator,
		newMessengerSink: func(address string) bconfig.SinkConfig { return natssink.NewConfig(address) },
		newDatabaseSink:  func(address string) bconfig.SinkConfig { return timescale.NewConfig(address) },
	}, nil
}

// Configure validates the request, tears down the active pipeline if any, and starts a new one
//
// An error means the request is rejected; it wraps base.ErrInvalidRequest for bad requests,
// base.ErrConfigurationConflict if the last pipeline cannot be torn down or still holds its source, and
// base.ErrSourceUnavailable if the source cannot be opened.
func (s *Service) Configure(ctx context.Context, req ConfigureRequest) (err error) {
	defer func() { countControlRequest("configure", err) }()

	if err := req.Validate(); err != nil {
		s.logger.Warn("rejected configuration: ", err)
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.active != nil && s.active.State() != StateTerminated {
		s.logger.Warnf("%s: stop the active pipeline of stream '%s'", base.ErrConfigurationConflict.Error(), s.active.spec.Invoke.Stream.ID)
		if err := stopWithContext(ctx, s.active); err != nil {
			return fmt.Errorf("%w: teardown of the active pipeline: %w", base.ErrConfigurationConflict, err)
		}
	}
	// a terminated pipeline may still hold its source if the ingest worker didn't stop in time
	if s.active != nil && !s.active.SourceReleased() {
		s.logger.Warnf("%s: the source of the last pipeline is still open", base.ErrConfigurationConflict.Error())
		return fmt.Errorf("%w: the source of the last pipeline is still open", base.ErrConfigurationConflict)
	}

	sinks, err := s.createSinks(req)
	if err != nil {
		s.logger.Warn("rejected configuration: ", err)
		return err
	}
	controller := NewController(s.logger, s.newPipelineSpec(req, sinks), s.config.Opener, s.metricCreator)
	if err := controller.Start(ctx); err != nil {
		controller.Stop()
		return err
	}
	s.active = controller
	return nil
}

// Terminate stops the active pipeline, or returns base.ErrNotRunning if there is none
//
// If ctx ends first, the pipeline keeps stopping in background and ctx.Err() is returned.
func (s *Service) Terminate(ctx context.Context) (err error) {
	defer func() { countControlRequest("terminate", err) }()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.active == nil || s.active.State() == StateTerminated {
		return base.ErrNotRunning
	}
	s.logger.Info("terminate the active pipeline")
	return stopWithContext(ctx, s.active)
}

// Status returns the status of the active or the last pipeline, or base.ErrNotRunning if none was ever started
func (s *Service) Status() (Status, error) {
	s.mutex.Lock()
	active := s.active
	s.mutex.Unlock()

	if active == nil {
		return Status{}, base.ErrNotRunning
	}
	return active.Status(), nil
}

// Active returns the active or the last controller, or nil
func (s *Service) Active() *Controller {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// Shutdown stops the active pipeline if any and waits for it
func (s *Service) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.active != nil {
		s.active.Stop()
	}
}

func (s *Service) newPipelineSpec(req ConfigureRequest, sinks []base.ResultSink) PipelineSpec {
	pipeline := s.config.Pipeline
	if req.Realtime != nil {
		pipeline.FrameBuffer.Realtime = *req.Realtime
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return PipelineSpec{
		SourceAddress: req.SourceAddress,
		CaptureOptions: base.CaptureOptions{
			FrameWidth:  req.FrameWidth,
			FrameHeight: req.FrameHeight,
		},
		Binding: s.config.Binding,
		Invoke: analytic.InvokeOptions{
			Stream: analytic.StreamInfo{
				Address:   req.SourceAddress,
				ID:        req.StreamID,
				SessionID: sessionID,
			},
			Analytic: base.AnalyticInfo{
				Name:             lo.Ternary(req.Analytic.Name != "", req.Analytic.Name, s.config.AnalyticName),
				Address:          req.Analytic.Address,
				RequiresGPU:      req.Analytic.RequiresGPU,
				Operations:       req.Analytic.Operations,
				Filters:          req.Analytic.Filters,
				ReplicaAddresses: req.Analytic.ReplicaAddresses,
			},
			SystemTags:  req.Tags,
			ReturnFrame: req.ReturnFrame,
		},
		Sinks:    sinks,
		Pipeline: pipeline,
	}
}

func (s *Service) createSinks(req ConfigureRequest) ([]base.ResultSink, error) {
	configs := lo.Map(s.config.Sinks, func(h bconfig.SinkConfigHolder, _ int) bconfig.SinkConfig { return h.Value })
	if req.MessengerAddress != "" {
		configs = append(configs, s.newMessengerSink(req.MessengerAddress))
	}
	if req.DatabaseAddress != "" {
		configs = append(configs, s.newDatabaseSink(req.DatabaseAddress))
	}

	sinks := make([]base.ResultSink, 0, len(configs))
	for _, cfg := range configs {
		if err := cfg.VerifyConfig(); err != nil {
			closeSinks(s.logger, sinks)
			return nil, fmt.Errorf("%w: %s sink%s", base.ErrInvalidRequest, cfg.GetType(), err.Error())
		}
		sink, err := cfg.NewSink(s.logger, s.metricCreator)
		if err != nil {
			closeSinks(s.logger, sinks)
			return nil, fmt.Errorf("%s sink: %w", cfg.GetType(), err)
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		s.logger.Warn("no sink configured, results will be discarded")
	}
	return sinks, nil
}

func closeSinks(slogger logger.Logger, sinks []base.ResultSink) {
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			slogger.Warnf("failed to close sink %s: %s", sink.Name(), err.Error())
		}
	}
}

// stopWithContext stops the controller, returning early with ctx.Err() while the stop goes on in background
func stopWithContext(ctx context.Context, controller *Controller) error {
	go controller.Stop()
	select {
	case <-controller.Done().Channel():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
