package cmd

import (
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/test"
)

type benchmarkCommandState struct {
	Frames    int    `help:"Numbers of synthetic frames to process"`
	Width     int    `help:"Frame width"`
	Height    int    `help:"Frame height"`
	Workers   int    `help:"Numbers of analytic workers"`
	Analytic  string `help:"Demo analytic: test, testBatch or brightness"`
	BatchSize int    `name:"batchsize" help:"Frames per invocation for batch analytics"`
	Capacity  int    `help:"Frame buffer capacity, 0 for unbounded"`
	Realtime  bool   `help:"Pop newest frames first and drop the oldest on overflow"`
	LogSink   bool   `name:"logsink" help:"Also deliver results to the log sink at debug level"`
}

var benchCmd = benchmarkCommandState{
	Frames:    10000,
	Width:     640,
	Height:    360,
	Workers:   4,
	Analytic:  "test",
	BatchSize: 1,
	Capacity:  256,
}

func (cmd *benchmarkCommandState) runBenchmarkPipelineCommand(_ []string) {
	defs.EnableTestMode()
	test.RunBenchmarkPipeline(test.BenchmarkOptions{
		Frames:    uint64(cmd.Frames),
		Width:     cmd.Width,
		Height:    cmd.Height,
		Workers:   cmd.Workers,
		Analytic:  cmd.Analytic,
		BatchSize: cmd.BatchSize,
		Realtime:  cmd.Realtime,
		Capacity:  cmd.Capacity,
		LogSink:   cmd.LogSink,
	})
}
