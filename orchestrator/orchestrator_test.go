package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/distbench/orchestrator/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubnetsAPI struct {
	subnets []ec2types.Subnet
	err     error
}

func (s *stubSubnetsAPI) DescribeSubnets(context.Context, *ec2.DescribeSubnetsInput, ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ec2.DescribeSubnetsOutput{Subnets: s.subnets}, nil
}

func TestUniqueRunIDCarriesVersion(t *testing.T) {
	id := UniqueRunID("v1.0.0")
	assert.Contains(t, id, "v1.0.0")
	assert.NotEqual(t, "v1.0.0", id)
}

func testSetup(t *testing.T) (*config.Config, *config.Scenario) {
	t.Helper()
	cfg := config.Read()
	cfg.AmiID = "ami-123"
	cfg.WorkspaceDir = t.TempDir()
	scenario := &config.Scenario{Name: "request_response.json", Servers: 1, Clients: 1}
	return &cfg, scenario
}

func TestCheckRequirementsMissingAmi(t *testing.T) {
	cfg, scenario := testSetup(t)
	cfg.AmiID = ""
	assert.ErrorContains(t, checkRequirements(cfg, scenario), "AMI_ID")
}

func TestCheckRequirementsEmptyScenario(t *testing.T) {
	cfg, scenario := testSetup(t)
	scenario.Clients = 0
	assert.ErrorContains(t, checkRequirements(cfg, scenario), "at least one")
}

func TestCheckRequirementsNeedsBinaries(t *testing.T) {
	cfg, scenario := testSetup(t)
	assert.ErrorContains(t, checkRequirements(cfg, scenario), "binaries")
}

func TestCheckAwsAccessRejectsBadCredentials(t *testing.T) {
	cfg, _ := testSetup(t)
	api := &stubSubnetsAPI{err: fmt.Errorf("InvalidClientTokenId")}

	err := checkAwsAccess(context.Background(), api, cfg)
	require.ErrorContains(t, err, "aws access check")
	assert.ErrorContains(t, err, "InvalidClientTokenId")
}

func TestCheckAwsAccessPasses(t *testing.T) {
	cfg, _ := testSetup(t)
	api := &stubSubnetsAPI{subnets: []ec2types.Subnet{{
		SubnetId: aws.String("subnet-123"),
		VpcId:    aws.String("vpc-456"),
	}}}

	assert.NoError(t, checkAwsAccess(context.Background(), api, cfg))
}

func TestCheckRequirementsPasses(t *testing.T) {
	cfg, scenario := testSetup(t)
	binDir := filepath.Join(cfg.WorkspaceDir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "orchestrator-worker"), []byte("bin"), 0o755))

	assert.NoError(t, checkRequirements(cfg, scenario))
}
