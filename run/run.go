// Package run runs the frame agent: pipeline controller, control service and its HTTP surface
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
)

// Options defines how to run the agent
type Options struct {
	ConfigFile     string // empty for DefaultConfig
	ControlAddress string // overrides control.address in config if set
	Binding        analytic.Binding
	AnalyticName   string
	Initial        *ConfigureRequest // pipeline to start immediately, optional
}

// Run runs the agent until stopped by signals
func Run(options Options) {
	runLogger := logger.WithField(defs.LabelComponent, "Launcher")

	config := DefaultConfig()
	if options.ConfigFile != "" {
		loaded, err := LoadConfigFile(options.ConfigFile)
		if err != nil {
			logger.Fatal(err)
		}
		config = *loaded
	}
	if options.ControlAddress != "" {
		config.Control.Address = options.ControlAddress
	}

	service, err := NewService(logger.Root(), ServiceConfig{
		Binding:      options.Binding,
		AnalyticName: options.AnalyticName,
		Pipeline:     config.Pipeline,
		Sinks:        config.Sinks,
	}, promreg.NewMetricFactory("frameagent_", nil, nil))
	if err != nil {
		logger.Fatal(err)
	}

	server, _, err := LaunchControlListener(logger.Root(), config.Control.Address, service)
	if err != nil {
		logger.Fatalf("failed to listen on %s: %s", config.Control.Address, err.Error())
	}

	if options.Initial != nil {
		if err := service.Configure(context.Background(), *options.Initial); err != nil {
			runLogger.Error("failed to start initial pipeline: ", err)
		}
	}

	// wait for shutdown signal
	{
		sigChan := make(chan os.Signal, 10)
		signal.Notify(sigChan, syscall.SIGINT)
		signal.Notify(sigChan, syscall.SIGTERM)
		s := <-sigChan
		runLogger.Infof("received %s, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.ControlShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		runLogger.Warn("error shutting down control listener: ", err)
	}
	service.Shutdown()
	runLogger.Info("clean exit")
}
