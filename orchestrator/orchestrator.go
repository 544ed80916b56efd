// Package orchestrator sequences a full benchmark run: provision the fleet,
// configure the hosts, drive the server and client coordination rounds, sync
// results back to S3 and tear everything down.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/coordination"
	"github.com/distbench/orchestrator/dashboard"
	"github.com/distbench/orchestrator/infra"
	"github.com/distbench/orchestrator/utils"
)

// UniqueRunID tags every AWS resource and S3 prefix of one run.
func UniqueRunID(version string) string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("2006-01-02T15-04-05"), version)
}

// Run executes one scenario end to end. Provisioned infrastructure is always
// torn down, including on error paths.
func Run(ctx context.Context, cfg *config.Config, scenario *config.Scenario) error {
	uniqueID := UniqueRunID(cfg.Version)
	utils.OrchLog("run %s scenario %s (%d server(s), %d client(s))",
		uniqueID, scenario.Name, cfg.HostCount.Servers, cfg.HostCount.Clients)

	if err := checkRequirements(cfg, scenario); err != nil {
		return err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	ec2Client := ec2.NewFromConfig(awsCfg)
	ssmClient := ssm.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)

	status := dashboard.NewServer(uniqueID, scenario.Name)
	status.Start(fmt.Sprintf(":%d", cfg.DashboardPort))

	status.SetStep("checking aws access")
	if err := checkAwsAccess(ctx, ec2Client, cfg); err != nil {
		return err
	}

	status.SetStep("uploading artifacts")
	if err := uploadArtifacts(ctx, s3Client, cfg, scenario, uniqueID); err != nil {
		return err
	}

	status.SetStep("provisioning")
	detail, err := infra.Provision(ctx, ec2Client, cfg, uniqueID)
	defer func() {
		status.SetStep("cleanup")
		// Best effort with a fresh context so a canceled run still cleans up
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if cleanupErr := detail.Cleanup(cleanupCtx, ec2Client); cleanupErr != nil {
			utils.WarnLog("cleanup: %v", cleanupErr)
		}
	}()
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}

	status.SetStep("configuring hosts")
	if err := configureHosts(ctx, ssmClient, cfg, scenario, detail, uniqueID); err != nil {
		return err
	}

	err = runRounds(ctx, cfg, ssmClient, scenario, detail, status)
	if err != nil {
		return err
	}

	status.SetStep("copying results")
	if err := copyResults(ctx, ssmClient, cfg, scenario, detail, uniqueID); err != nil {
		return err
	}
	utils.OrchLog("results at %s/results/%s", cfg.S3Path(uniqueID), scenario.FileStem())
	return nil
}

func runRounds(ctx context.Context, cfg *config.Config, ssmClient *ssm.Client, scenario *config.Scenario, detail *infra.InfraDetail, status *dashboard.Server) error {
	status.SetStep("server round")
	serverRound, err := coordination.NewServerRound(ctx, cfg, ssmClient, scenario, detail)
	if err != nil {
		return err
	}
	defer serverRound.Close()
	status.UpdateGroup(serverRound.Name(), serverRound.Statuses())

	// Server drivers come up on Start and serve until their scenario
	// completes; their done tokens are collected after the client round.
	if err := serverRound.Start(); err != nil {
		return err
	}
	status.UpdateGroup(serverRound.Name(), serverRound.Statuses())

	status.SetStep("client round")
	clientRound, err := coordination.NewClientRound(ctx, cfg, ssmClient, scenario, detail)
	if err != nil {
		return err
	}
	defer clientRound.Close()
	status.UpdateGroup(clientRound.Name(), clientRound.Statuses())

	if err := clientRound.Start(); err != nil {
		return err
	}
	if err := clientRound.WaitDone(ctx, ssmClient); err != nil {
		return err
	}
	status.UpdateGroup(clientRound.Name(), clientRound.Statuses())

	status.SetStep("stopping servers")
	if err := serverRound.WaitDone(ctx, ssmClient); err != nil {
		return err
	}
	status.UpdateGroup(serverRound.Name(), serverRound.Statuses())
	return nil
}

// checkAwsAccess verifies credentials and permissions with a read-only call
// before any upload or resource creation happens. Resolving the runner subnet
// is the first thing provisioning needs anyway.
func checkAwsAccess(ctx context.Context, client infra.SubnetsAPI, cfg *config.Config) error {
	if _, _, err := infra.FindSubnet(ctx, client, cfg); err != nil {
		return fmt.Errorf("aws access check: %w", err)
	}
	return nil
}

// checkRequirements fails before any AWS resource is created.
func checkRequirements(cfg *config.Config, scenario *config.Scenario) error {
	if cfg.AmiID == "" {
		return fmt.Errorf("AMI_ID not set")
	}
	if scenario.Servers == 0 || scenario.Clients == 0 {
		return fmt.Errorf("scenario %s needs at least one server and one client", scenario.Name)
	}
	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", cfg.WorkspaceDir, err)
	}
	binDir := filepath.Join(cfg.WorkspaceDir, "bin")
	entries, err := os.ReadDir(binDir)
	if err != nil || len(entries) == 0 {
		return fmt.Errorf("no worker/driver binaries in %s", binDir)
	}
	return nil
}

// uploadArtifacts pushes the scenario file and the binary bundle the remote
// hosts fetch during configuration.
func uploadArtifacts(ctx context.Context, client *s3.Client, cfg *config.Config, scenario *config.Scenario, uniqueID string) error {
	if err := infra.UploadFile(ctx, client, cfg.S3Bucket, fmt.Sprintf("%s/%s", uniqueID, scenario.Name), scenario.Path); err != nil {
		return err
	}
	binDir := filepath.Join(cfg.WorkspaceDir, "bin")
	entries, err := os.ReadDir(binDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", binDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := fmt.Sprintf("%s/bin/%s", uniqueID, entry.Name())
		if err := infra.UploadFile(ctx, client, cfg.S3Bucket, key, filepath.Join(binDir, entry.Name())); err != nil {
			return err
		}
		utils.OrchLog("uploaded %s", key)
	}
	return nil
}

func configureHosts(ctx context.Context, client *ssm.Client, cfg *config.Config, scenario *config.Scenario, detail *infra.InfraDetail, uniqueID string) error {
	instanceIDs := append(detail.InstanceIDs(infra.Server), detail.InstanceIDs(infra.Client)...)
	cmd, err := infra.SendCommand(ctx, client, "configure hosts", instanceIDs, infra.ConfigCommands(cfg, scenario, uniqueID))
	if err != nil {
		return err
	}
	return infra.WaitComplete(ctx, client, cfg.SSMPollDelay, []*infra.Command{cmd})
}

func copyResults(ctx context.Context, client *ssm.Client, cfg *config.Config, scenario *config.Scenario, detail *infra.InfraDetail, uniqueID string) error {
	cmds := make([]*infra.Command, 0, 2)
	for _, endpoint := range []infra.EndpointType{infra.Server, infra.Client} {
		ids := detail.InstanceIDs(endpoint)
		if len(ids) == 0 {
			continue
		}
		cmd, err := infra.SendCommand(ctx, client,
			fmt.Sprintf("copy %s results", endpoint), ids,
			infra.CopyResultsCommand(cfg, scenario, endpoint, uniqueID))
		if err != nil {
			return err
		}
		cmds = append(cmds, cmd)
	}
	return infra.WaitComplete(ctx, client, cfg.SSMPollDelay, cmds)
}
