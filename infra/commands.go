package infra

import (
	"fmt"
	"strings"

	"github.com/distbench/orchestrator/config"
)

const (
	remoteHome = "/home/ec2-user"
	remoteBin  = remoteHome + "/bin"
)

// ConfigCommands is the per-host setup script: fetch the worker and driver
// binaries this run uploaded and the scenario file they will execute.
func ConfigCommands(cfg *config.Config, scenario *config.Scenario, uniqueID string) []string {
	s3Path := cfg.S3Path(uniqueID)
	return []string{
		"set -e",
		fmt.Sprintf("cd %s", remoteHome),
		fmt.Sprintf("aws s3 sync %s/bin %s", s3Path, remoteBin),
		fmt.Sprintf("chmod +x %s/*", remoteBin),
		fmt.Sprintf("aws s3 cp %s/%s %s/%s", s3Path, scenario.Name, remoteHome, scenario.Name),
	}
}

// RunWorkerCommand launches the coordination worker on a remote host. Servers
// listen; clients additionally receive the server addresses to drive traffic
// against.
func RunWorkerCommand(cfg *config.Config, scenario *config.Scenario, endpoint EndpointType, serverIPs []string) []string {
	args := []string{
		fmt.Sprintf("%s/orchestrator-worker", remoteBin),
		fmt.Sprintf("--endpoint %s", endpoint),
		fmt.Sprintf("--port %d", cfg.RussulaPort),
		fmt.Sprintf("--driver %s/netbench-driver-tcp-%s", remoteBin, endpoint),
		fmt.Sprintf("--scenario %s/%s", remoteHome, scenario.Name),
	}
	if endpoint == Client {
		peers := make([]string, 0, len(serverIPs))
		for _, ip := range serverIPs {
			peers = append(peers, fmt.Sprintf("%s:%d", ip, cfg.NetbenchPort))
		}
		args = append(args, fmt.Sprintf("--netbench-servers %s", strings.Join(peers, ",")))
	}
	return []string{
		fmt.Sprintf("cd %s", remoteHome),
		strings.Join(args, " "),
	}
}

// CopyResultsCommand uploads the driver output a host produced back to the
// run's S3 prefix.
func CopyResultsCommand(cfg *config.Config, scenario *config.Scenario, endpoint EndpointType, uniqueID string) []string {
	result := fmt.Sprintf("%s.json", endpoint)
	return []string{
		fmt.Sprintf("cd %s", remoteHome),
		fmt.Sprintf("aws s3 cp %s %s/results/%s/$(hostname)-%s",
			result, cfg.S3Path(uniqueID), scenario.FileStem(), result),
	}
}
