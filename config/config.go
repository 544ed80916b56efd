// Package config holds the immutable run configuration. It is built once at
// process start and passed by reference into every component that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type HostCount struct {
	Clients int
	Servers int
}

type Config struct {
	Version string

	// aws
	Region          string
	InstanceType    string
	InstanceProfile string
	AmiID           string
	SubnetTagKey    string
	SubnetTagValue  string
	SSHKeyName      string
	S3Bucket        string

	// orchestrator
	HostCount       HostCount
	WorkspaceDir    string
	ShutdownMinutes int
	RussulaPort     int
	NetbenchPort    int
	DashboardPort   int
	PollDelay       time.Duration
	SSMPollDelay    time.Duration
}

// Read loads a .env file if one exists (never overriding already-set env
// vars) and builds the configuration from the environment with the defaults
// below.
func Read() Config {
	_ = godotenv.Load()
	return Config{
		Version: "v1.0.0",

		Region:          readStringEnvVarOr("AWS_REGION", "us-west-1"),
		InstanceType:    readStringEnvVarOr("INSTANCE_TYPE", "c5.4xlarge"),
		InstanceProfile: readStringEnvVarOr("INSTANCE_PROFILE", "NetbenchRunnerInstanceProfile"),
		AmiID:           readStringEnvVarOr("AMI_ID", ""),
		SubnetTagKey:    readStringEnvVarOr("SUBNET_TAG_KEY", "tag:aws-cdk:subnet-name"),
		SubnetTagValue:  readStringEnvVarOr("SUBNET_TAG_VALUE", "public-subnet-for-runners"),
		SSHKeyName:      readStringEnvVarOr("SSH_KEY_NAME", ""),
		S3Bucket:        readStringEnvVarOr("S3_BUCKET", "netbenchrunnerlogs"),

		HostCount: HostCount{
			Clients: readIntEnvVarOr("CLIENT_COUNT", 1),
			Servers: readIntEnvVarOr("SERVER_COUNT", 1),
		},
		WorkspaceDir:    readStringEnvVarOr("WORKSPACE_DIR", "./target/netbench"),
		ShutdownMinutes: readIntEnvVarOr("SHUTDOWN_MINUTES", 60),
		RussulaPort:     readIntEnvVarOr("RUSSULA_PORT", 8888),
		NetbenchPort:    readIntEnvVarOr("NETBENCH_PORT", 4433),
		DashboardPort:   readIntEnvVarOr("DASHBOARD_PORT", 9000),
		PollDelay:       time.Duration(readIntEnvVarOr("POLL_DELAY_SECONDS", 5)) * time.Second,
		SSMPollDelay:    time.Duration(readIntEnvVarOr("SSM_POLL_DELAY_SECONDS", 10)) * time.Second,
	}
}

func (c *Config) S3Path(uniqueID string) string {
	return fmt.Sprintf("s3://%s/%s", c.S3Bucket, uniqueID)
}

func (c *Config) SecurityGroupName(uniqueID string) string {
	return fmt.Sprintf("netbench_%s", uniqueID)
}

func (c *Config) InstanceName(uniqueID, endpoint string) string {
	return fmt.Sprintf("%s_%s", endpoint, uniqueID)
}

func readStringEnvVar(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%s not set", name)
	}
	return value, nil
}

func readStringEnvVarOr(name string, or string) string {
	value, err := readStringEnvVar(name)
	if err != nil {
		value = or
	}
	return value
}

func readIntEnvVarOr(name string, or int) int {
	valueStr, err := readStringEnvVar(name)
	if err != nil {
		return or
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return or
	}
	return value
}

func ReadBoolEnvVarOr(name string, or bool) bool {
	valueStr, err := readStringEnvVar(name)
	if err != nil {
		return or
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return or
	}
	return value
}
