// Package infra wraps the external collaborators of a benchmark run: EC2
// provisioning, SSM remote command execution and S3 artifact sync. These are
// thin sequential API calls with bounded retries; the coordination protocol
// itself lives in the russula package.
package infra

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/distbench/orchestrator/utils"
)

type EndpointType int

const (
	Server EndpointType = iota
	Client
)

func (e EndpointType) String() string {
	if e == Client {
		return "client"
	}
	return "server"
}

type InstanceDetail struct {
	EndpointType EndpointType
	ID           string
	IP           string
}

// InfraDetail is everything the run provisioned and must tear down again.
type InfraDetail struct {
	SecurityGroupID string
	Servers         []InstanceDetail
	Clients         []InstanceDetail
}

func (i *InfraDetail) ServerIPs() []string {
	return ips(i.Servers)
}

func (i *InfraDetail) ClientIPs() []string {
	return ips(i.Clients)
}

func (i *InfraDetail) InstanceIDs(endpoint EndpointType) []string {
	instances := i.Servers
	if endpoint == Client {
		instances = i.Clients
	}
	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		ids = append(ids, instance.ID)
	}
	return ids
}

// Cleanup terminates every instance and deletes the security group. Called
// unconditionally at the end of a run.
func (i *InfraDetail) Cleanup(ctx context.Context, client *ec2.Client) error {
	utils.OrchLog("deleting instances")
	ids := append(i.InstanceIDs(Server), i.InstanceIDs(Client)...)
	if len(ids) > 0 {
		if err := TerminateInstances(ctx, client, ids); err != nil {
			return fmt.Errorf("terminate instances: %w", err)
		}
	}
	utils.OrchLog("deleting security group")
	if i.SecurityGroupID != "" {
		if err := DeleteSecurityGroup(ctx, client, i.SecurityGroupID); err != nil {
			return fmt.Errorf("delete security group: %w", err)
		}
	}
	return nil
}

func ips(instances []InstanceDetail) []string {
	out := make([]string, 0, len(instances))
	for _, instance := range instances {
		out = append(out, instance.IP)
	}
	return out
}
