// Package cmd provides the agent command, control client commands and self-benchmarks
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "frame-agent runs video analytics on live streams and dispatches results to messengers and databases", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Run agent with control listener", &runCmd, runCmd.run)
	config.AddCmdWithArgs("configure ...", "Ask a running agent to start or replace its pipeline", &configureCmd, configureCmd.run)
	config.AddCmdWithArgs("terminate ...", "Ask a running agent to stop its pipeline", &terminateCmd, terminateCmd.runTerminate)
	config.AddCmdWithArgs("status ...", "Print the pipeline status of a running agent", &statusCmd, statusCmd.runStatus)
	config.AddCmdWithArgs("benchmark <type> ...", "Run benchmark of specified type", &benchCmd, nil)
	config.AddCmdWithArgs("benchmark pipeline ...", "Benchmark a pipeline on synthetic frames", nil, benchCmd.runBenchmarkPipelineCommand)
}

// Execute parses the command line and runs the specified command
func Execute() {
	config.Execute()
}
