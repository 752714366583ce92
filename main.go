package main

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/frame-agent/cmd"
	"github.com/relex/gotils/logger"
)

var version string

func main() {
	logger.Infof("version: %s", version)
	logger.Infof("GOMAXPROCS: %d", runtime.GOMAXPROCS(0))

	registerInfoMetric()

	cmd.Execute()
}

func registerInfoMetric() {
	opts := prometheus.GaugeOpts{}
	opts.Name = "frame_agent_info"
	opts.Help = "frame-agent application information"
	gauge := prometheus.NewGaugeVec(opts, []string{"version", "goversion"})
	gauge.WithLabelValues(version, runtime.Version()).Set(1)
	prometheus.MustRegister(gauge)
}
