package infra

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/utils"
)

const (
	rootVolumeSizeGiB = 50
	sgDeleteAttempts  = 10
	sgDeleteDelay     = 10 * time.Second
	runningPollDelay  = 30 * time.Second
)

// SubnetsAPI is the slice of the EC2 client FindSubnet needs.
type SubnetsAPI interface {
	DescribeSubnets(ctx context.Context, input *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
}

// FindSubnet resolves the runner subnet by tag and returns its id along with
// the id of the VPC it lives in. It is also the cheapest read-only call the
// run's role must be able to make, so it doubles as the access probe.
func FindSubnet(ctx context.Context, client SubnetsAPI, cfg *config.Config) (subnetID, vpcID string, err error) {
	out, err := client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String(cfg.SubnetTagKey),
			Values: []string{cfg.SubnetTagValue},
		}},
	})
	if err != nil {
		return "", "", fmt.Errorf("describe subnets: %w", err)
	}
	if len(out.Subnets) == 0 {
		return "", "", fmt.Errorf("no subnet tagged %s=%s", cfg.SubnetTagKey, cfg.SubnetTagValue)
	}
	subnet := out.Subnets[0]
	return aws.ToString(subnet.SubnetId), aws.ToString(subnet.VpcId), nil
}

// CreateSecurityGroup creates a per-run group and opens the coordination,
// benchmark and SSH ports. The benchmark port is opened for both TCP and UDP
// so QUIC drivers work.
func CreateSecurityGroup(ctx context.Context, client *ec2.Client, cfg *config.Config, vpcID, uniqueID string) (string, error) {
	name := cfg.SecurityGroupName(uniqueID)
	created, err := client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("netbench benchmark runners"),
		VpcId:       aws.String(vpcID),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeSecurityGroup,
			Tags:         []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("create security group: %w", err)
	}
	groupID := aws.ToString(created.GroupId)

	anywhere := []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}}
	_, err = client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges:   anywhere,
			},
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(int32(cfg.RussulaPort)),
				ToPort:     aws.Int32(int32(cfg.RussulaPort)),
				IpRanges:   anywhere,
			},
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(int32(cfg.NetbenchPort)),
				ToPort:     aws.Int32(int32(cfg.NetbenchPort)),
				IpRanges:   anywhere,
			},
			{
				IpProtocol: aws.String("udp"),
				FromPort:   aws.Int32(int32(cfg.NetbenchPort)),
				ToPort:     aws.Int32(int32(cfg.NetbenchPort)),
				IpRanges:   anywhere,
			},
		},
	})
	if err != nil {
		return groupID, fmt.Errorf("authorize ingress: %w", err)
	}
	return groupID, nil
}

// LaunchPlan is the network placement every instance of a run shares.
type LaunchPlan struct {
	SubnetID        string
	SecurityGroupID string
}

// UserData builds the cloud-init script for a runner instance. The delayed
// shutdown is a dead-man switch: if the orchestrator dies before cleanup the
// instance terminates itself.
func UserData(cfg *config.Config) string {
	script := fmt.Sprintf("#!/bin/bash\nsudo shutdown -P +%d\n", cfg.ShutdownMinutes)
	return base64.StdEncoding.EncodeToString([]byte(script))
}

// LaunchInstance starts one runner. Instances terminate on shutdown so the
// dead-man switch in the user data fully reclaims them.
func LaunchInstance(ctx context.Context, client *ec2.Client, cfg *config.Config, plan LaunchPlan, endpoint EndpointType, uniqueID string) (string, error) {
	name := cfg.InstanceName(uniqueID, endpoint.String())
	input := &ec2.RunInstancesInput{
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		ImageId:      aws.String(cfg.AmiID),
		InstanceType: ec2types.InstanceType(cfg.InstanceType),
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(cfg.InstanceProfile),
		},
		InstanceInitiatedShutdownBehavior: ec2types.ShutdownBehaviorTerminate,
		UserData:                          aws.String(UserData(cfg)),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/xvda"),
			Ebs: &ec2types.EbsBlockDevice{
				DeleteOnTermination: aws.Bool(true),
				VolumeSize:          aws.Int32(rootVolumeSizeGiB),
			},
		}},
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(true),
			SubnetId:                 aws.String(plan.SubnetID),
			Groups:                   []string{plan.SecurityGroupID},
		}},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}},
		}},
	}
	if cfg.SSHKeyName != "" {
		input.KeyName = aws.String(cfg.SSHKeyName)
	}

	out, err := client.RunInstances(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run %s instance: %w", endpoint, err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("run %s instance: empty reservation", endpoint)
	}
	return aws.ToString(out.Instances[0].InstanceId), nil
}

// PollRunning waits until the instance reports running and returns its public
// IP. There is no attempt bound; callers cancel via ctx.
func PollRunning(ctx context.Context, client *ec2.Client, instanceID string) (string, error) {
	for {
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", instanceID, err)
		}
		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == ec2types.InstanceStateNameRunning && instance.PublicIpAddress != nil {
					return aws.ToString(instance.PublicIpAddress), nil
				}
			}
		}
		utils.OrchLog("instance %s not yet running", instanceID)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(runningPollDelay):
		}
	}
}

func TerminateInstances(ctx context.Context, client *ec2.Client, instanceIDs []string) error {
	_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: instanceIDs,
	})
	return err
}

// DeleteSecurityGroup retries on a fixed delay; the group stays in use until
// every terminated instance releases its network interface.
func DeleteSecurityGroup(ctx context.Context, client *ec2.Client, groupID string) error {
	var err error
	for attempt := 0; attempt < sgDeleteAttempts; attempt++ {
		_, err = client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(groupID),
		})
		if err == nil {
			return nil
		}
		utils.WarnLog("delete security group %s: %v", groupID, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sgDeleteDelay):
		}
	}
	return fmt.Errorf("delete security group %s: %w", groupID, err)
}
