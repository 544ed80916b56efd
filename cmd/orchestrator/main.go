package main

import (
	"context"
	"flag"
	"os/exec"

	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/orchestrator"
	"github.com/distbench/orchestrator/utils"
)

var scenarioFile string // Netbench scenario to run

func init() {
	flag.StringVar(&scenarioFile, "scenario-file", "scripts/request_response.json", "Netbench scenario file")
}

func main() {
	flag.Parse()
	cfg := config.Read()
	utils.InitLog(config.ReadBoolEnvVarOr("PROTOCOL_LOG", false), config.ReadBoolEnvVarOr("ORCH_LOG", true))

	// The result-copy step shells out to the aws CLI on the remote hosts;
	// a missing local CLI only matters for debugging, so just warn.
	if _, err := exec.LookPath("aws"); err != nil {
		utils.WarnLog("aws CLI not found locally: %v", err)
	}

	scenario, err := config.LoadScenario(scenarioFile)
	utils.FailOnError("Failed to load scenario", err)

	err = orchestrator.Run(context.Background(), &cfg, &scenario)
	utils.FailOnError("Run failed", err)
}
