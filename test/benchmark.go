package test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/analytic/testanalytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/input/synthetic"
	"github.com/relex/frame-agent/output/logsink"
	"github.com/relex/frame-agent/run"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

// BenchmarkOptions defines a pipeline benchmark over synthetic frames
type BenchmarkOptions struct {
	Frames    uint64
	Width     int
	Height    int
	Workers   int
	Analytic  string // name in testanalytic
	BatchSize int
	Realtime  bool // pop newest frames first and drop the oldest on overflow
	Capacity  int  // frame buffer capacity
	LogSink   bool // also deliver to the log sink at debug level
}

// BenchmarkResult is the outcome of a benchmark run
type BenchmarkResult struct {
	Frames    uint64
	Delivered uint64
	Cost      CostReport
}

type benchmarkMetric struct {
	fmt string
	val float64
}

// RunBenchmarkPipeline runs a full pipeline on synthetic frames until all of them have been delivered or dropped
func RunBenchmarkPipeline(options BenchmarkOptions) BenchmarkResult {
	mfactory := promreg.NewMetricFactory("benchpipeline_", nil, nil)
	result := runBenchmark(logger.Root(), options, mfactory)
	reportBenchmarkResult("BenchmarkPipeline", result, mfactory)
	logger.Info(promext.DumpMetrics("", false, false, mfactory))
	return result
}

func runBenchmark(parentLogger logger.Logger, options BenchmarkOptions, mfactory *promreg.MetricFactory) BenchmarkResult {
	binding, err := testanalytic.Lookup(options.Analytic, options.BatchSize)
	if err != nil {
		logger.Panic(err)
	}

	counter := &countingSink{}
	sinks := []base.ResultSink{counter}
	if options.LogSink {
		sinks = append(sinks, logsink.NewSink(parentLogger, true))
	}

	pipeline := run.DefaultPipelineConfig()
	pipeline.Workers.Workers = options.Workers
	pipeline.FrameBuffer = seqbuffer.Config{Realtime: options.Realtime, Capacity: options.Capacity}
	if err := pipeline.VerifyConfig(); err != nil {
		logger.Panic(err)
	}

	address := fmt.Sprintf("%s://%dx%d?frames=%d&paced=false", synthetic.Scheme, options.Width, options.Height, options.Frames)
	spec := run.PipelineSpec{
		SourceAddress: address,
		Binding:       binding,
		Invoke: analytic.InvokeOptions{
			Stream:   analytic.StreamInfo{Address: address, ID: "benchmark", SessionID: "benchmark"},
			Analytic: base.AnalyticInfo{Name: options.Analytic, Address: "localhost"},
		},
		Sinks:    sinks,
		Pipeline: pipeline,
	}
	controller := run.NewController(parentLogger, spec, synthetic.Open, mfactory)
	costTracker := NewCostTracker()
	if err := controller.Start(context.Background()); err != nil {
		logger.Panic(err)
	}
	controller.Done().WaitForever()

	return BenchmarkResult{
		Frames:    options.Frames,
		Delivered: counter.Delivered(),
		Cost:      costTracker.Report(),
	}
}

func reportBenchmarkResult(name string, result BenchmarkResult, mfactory *promreg.MetricFactory) {
	cost := result.Cost
	numRead := float64(mfactory.AddOrGetCounter("ingest_frames_total", "", nil, nil).Get())
	numFailed := float64(mfactory.AddOrGetCounter("analytic_callback_failures_total", "", nil, nil).Get())
	numLate := float64(mfactory.AddOrGetCounter("dispatch_late_results_total", "", nil, nil).Get())

	if uint64(numRead) != result.Frames {
		logger.Warnf("numbers of read frames don't match: read=%.0f expected=%d", numRead, result.Frames)
	}

	seconds := cost.RealTime.Seconds()
	printBenchmarkMetrics(name, []benchmarkMetric{
		{"%.0f frames/s", float64(result.Delivered) / seconds},
		{"%.0f allocs/frame", float64(cost.NumHeapAllocs) / numRead},
		{"%.0f delivered", float64(result.Delivered)},
		{"%.0f failed", numFailed},
		{"%.0f late", numLate},
		{"%.1f user%%", 100.0 * cost.UserTime.Seconds() / seconds},
		{"%.1f sys%%", 100.0 * cost.SystemTime.Seconds() / seconds},
		{"%.1f gc%%", 100.0 * cost.GCCPUFraction},
		{"%.3f s", seconds},
	})
}

func printBenchmarkMetrics(name string, metrics []benchmarkMetric) {
	line := name
	for _, m := range metrics {
		line += "\t" + fmt.Sprintf(m.fmt, m.val)
	}
	fmt.Println(line)
}

// countingSink counts delivered results
type countingSink struct {
	delivered atomic.Uint64
}

func (s *countingSink) Name() string {
	return "counter"
}

func (s *countingSink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	s.delivered.Add(1)
	return nil
}

func (s *countingSink) Close() error {
	return nil
}

func (s *countingSink) Delivered() uint64 {
	return s.delivered.Load()
}
