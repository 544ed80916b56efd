package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/russula/netbench"
	"github.com/distbench/orchestrator/utils"
)

var endpoint string        // server or client
var port int               // Coordination listen port
var driver string          // Benchmark driver binary
var scenario string        // Netbench scenario file
var netbenchServers string // Comma-separated server addresses (client only)
var readyTimeout int       // Seconds to wait for the coordinator, 0 waits forever

func init() {
	flag.StringVar(&endpoint, "endpoint", "server", "Benchmark endpoint: server or client")
	flag.IntVar(&port, "port", 8888, "Coordination listen port")
	flag.StringVar(&driver, "driver", "", "Benchmark driver binary")
	flag.StringVar(&scenario, "scenario", "", "Netbench scenario file")
	flag.StringVar(&netbenchServers, "netbench-servers", "", "Comma-separated server addresses")
	flag.IntVar(&readyTimeout, "ready-timeout", 0, "Seconds to wait for the coordinator (0 = forever)")
}

func main() {
	flag.Parse()
	cfg := config.Read()
	utils.InitLog(config.ReadBoolEnvVarOr("PROTOCOL_LOG", true), config.ReadBoolEnvVarOr("ORCH_LOG", true))

	if driver == "" || scenario == "" {
		utils.FailOnError("Missing flags", fmt.Errorf("--driver and --scenario are required"))
	}

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	bound := time.Duration(readyTimeout) * time.Second

	var err error
	switch endpoint {
	case "server":
		err = runServer(&cfg, addr, bound)
	case "client":
		err = runClient(&cfg, addr, bound)
	default:
		err = fmt.Errorf("unknown endpoint %q", endpoint)
	}
	utils.FailOnError("Worker failed", err)
}

// runServer serves the scenario to completion, then reports done.
func runServer(cfg *config.Config, addr string, bound time.Duration) error {
	w, err := russula.NewBuilder([]string{addr}, netbench.NewServerWorkerProtocol, cfg.PollDelay).Build()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.RunUntilReady(); err != nil {
		return err
	}
	if err := w.PollUntil(netbench.ServerWorkerRun, bound); err != nil {
		return err
	}

	cmd, output, err := startDriver("server")
	if err != nil {
		return err
	}
	defer output.Close()

	// Run is only stepped past once the driver has exited
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	return w.PollUntil(netbench.ServerWorkerDone, 0)
}

// runClient runs the driver to completion and reports done.
func runClient(cfg *config.Config, addr string, bound time.Duration) error {
	w, err := russula.NewBuilder([]string{addr}, netbench.NewClientWorkerProtocol, cfg.PollDelay).Build()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.RunUntilReady(); err != nil {
		return err
	}
	if err := w.PollUntil(netbench.ClientWorkerRunningAwaitComplete, bound); err != nil {
		return err
	}

	cmd, output, err := startDriver("client")
	if err != nil {
		return err
	}
	defer output.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	if err := w.UserAdvanceAll(); err != nil {
		return err
	}
	return w.PollUntil(netbench.ClientWorkerDone, 0)
}

// startDriver launches the benchmark driver with its stdout captured as the
// per-endpoint result file.
func startDriver(role string) (*exec.Cmd, *os.File, error) {
	output, err := os.Create(fmt.Sprintf("%s.json", role))
	if err != nil {
		return nil, nil, fmt.Errorf("create result file: %w", err)
	}

	cmd := exec.Command(driver, scenario)
	cmd.Stdout = output
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if netbenchServers != "" {
		for i, server := range strings.Split(netbenchServers, ",") {
			cmd.Env = append(cmd.Env, fmt.Sprintf("SERVER_%d=%s", i, server))
		}
	}

	utils.OrchLog("starting driver %s %s", driver, scenario)
	if err := cmd.Start(); err != nil {
		output.Close()
		return nil, nil, fmt.Errorf("start driver: %w", err)
	}
	return cmd, output, nil
}
