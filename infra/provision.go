package infra

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/utils"
)

// Provision creates the per-run security group and launches every server and
// client instance, blocking until all of them are running with a public IP.
// On failure the partial InfraDetail is still returned so the caller can tear
// down whatever did launch.
func Provision(ctx context.Context, client *ec2.Client, cfg *config.Config, uniqueID string) (*InfraDetail, error) {
	infra := &InfraDetail{}

	subnetID, vpcID, err := FindSubnet(ctx, client, cfg)
	if err != nil {
		return infra, err
	}
	utils.OrchLog("subnet %s (vpc %s)", subnetID, vpcID)

	groupID, err := CreateSecurityGroup(ctx, client, cfg, vpcID, uniqueID)
	infra.SecurityGroupID = groupID
	if err != nil {
		return infra, err
	}
	utils.OrchLog("security group %s", groupID)

	plan := LaunchPlan{SubnetID: subnetID, SecurityGroupID: groupID}
	launch := func(endpoint EndpointType, count int) ([]InstanceDetail, error) {
		instances := make([]InstanceDetail, 0, count)
		for i := 0; i < count; i++ {
			id, err := LaunchInstance(ctx, client, cfg, plan, endpoint, uniqueID)
			if err != nil {
				return instances, err
			}
			instances = append(instances, InstanceDetail{EndpointType: endpoint, ID: id})
		}
		for i := range instances {
			ip, err := PollRunning(ctx, client, instances[i].ID)
			if err != nil {
				return instances, err
			}
			instances[i].IP = ip
			utils.OrchLog("%s instance %s running at %s", endpoint, instances[i].ID, ip)
		}
		return instances, nil
	}

	infra.Servers, err = launch(Server, cfg.HostCount.Servers)
	if err != nil {
		return infra, fmt.Errorf("launch servers: %w", err)
	}
	infra.Clients, err = launch(Client, cfg.HostCount.Clients)
	if err != nil {
		return infra, fmt.Errorf("launch clients: %w", err)
	}
	return infra, nil
}
