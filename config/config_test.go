package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDefaults(t *testing.T) {
	cfg := Read()
	assert.Equal(t, 8888, cfg.RussulaPort)
	assert.Equal(t, "c5.4xlarge", cfg.InstanceType)
	assert.Equal(t, 1, cfg.HostCount.Servers)
	assert.NotZero(t, cfg.PollDelay)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("RUSSULA_PORT", "9999")
	t.Setenv("SERVER_COUNT", "3")
	t.Setenv("S3_BUCKET", "mybucket")

	cfg := Read()
	assert.Equal(t, 9999, cfg.RussulaPort)
	assert.Equal(t, 3, cfg.HostCount.Servers)
	assert.Equal(t, "s3://mybucket/run-1", cfg.S3Path("run-1"))
}

func TestReadIgnoresBadInt(t *testing.T) {
	t.Setenv("RUSSULA_PORT", "not-a-number")
	cfg := Read()
	assert.Equal(t, 8888, cfg.RussulaPort)
}

func TestNames(t *testing.T) {
	cfg := Read()
	assert.Equal(t, "netbench_abc", cfg.SecurityGroupName("abc"))
	assert.Equal(t, "server_abc", cfg.InstanceName("abc", "server"))
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "request_response.json")
	data := `{"clients": [{}, {}], "servers": [{}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 2, scenario.Clients)
	assert.Equal(t, 1, scenario.Servers)
	assert.Equal(t, "request_response.json", scenario.Name)
	assert.Equal(t, "request_response", scenario.FileStem())
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("does-not-exist.json")
	assert.Error(t, err)
}

func TestLoadScenarioBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := LoadScenario(path)
	assert.Error(t, err)
}
