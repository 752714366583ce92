package cmd

import (
	"context"

	"github.com/relex/frame-agent/analytic/testanalytic"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/run"
	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/logger"
)

type runCommandState struct {
	Config      string `help:"Configuration file path, empty for defaults"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information"`
	ControlAddr string `help:"The listener address of control requests, overriding control.address in config"`
	Analytic    string `help:"Bound analytic: test, testBatch or brightness"`
	BatchSize   int    `name:"batchsize" help:"Frames per invocation for batch analytics"`
	Source      string `help:"Stream address of the pipeline to start immediately, e.g. synthetic://640x360?paced=true"`
	StreamID    string `name:"streamid" help:"Stream ID of the initial pipeline"`
	Messenger   string `help:"Messenger (NATS) URL of the initial pipeline"`
	Database    string `help:"Database address or DSN of the initial pipeline"`
	Tags        string `help:"System tags of the initial pipeline: k1=v1,k2=v2"`
	TestMode    bool   `help:"Use test mode config: fast retry and short timeout"`
}

var runCmd = runCommandState{
	MetricsAddr: ":9335",
	Analytic:    "test",
	BatchSize:   1,
}

func (cmd *runCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	binding, err := testanalytic.Lookup(cmd.Analytic, cmd.BatchSize)
	if err != nil {
		logger.Fatal(err)
	}

	options := run.Options{
		ConfigFile:     cmd.Config,
		ControlAddress: cmd.ControlAddr,
		Binding:        binding,
		AnalyticName:   cmd.Analytic,
	}
	if cmd.Source != "" {
		tags, err := parseTags(cmd.Tags)
		if err != nil {
			logger.Fatal(err)
		}
		options.Initial = &run.ConfigureRequest{
			SourceAddress:    cmd.Source,
			StreamID:         cmd.StreamID,
			MessengerAddress: cmd.Messenger,
			DatabaseAddress:  cmd.Database,
			Tags:             tags,
		}
	}

	msrv := util.LaunchMetricsListener(cmd.MetricsAddr)

	run.Run(options)

	if err := msrv.Shutdown(context.Background()); err != nil {
		logger.Errorf("error shutting down metrics listener: %v", err)
	}
}
