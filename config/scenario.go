package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// netbenchScenario mirrors the scenario file schema just enough to count the
// endpoints; the full schema belongs to the netbench driver.
type netbenchScenario struct {
	Clients []json.RawMessage `json:"clients"`
	Servers []json.RawMessage `json:"servers"`
}

type Scenario struct {
	Name    string
	Path    string
	Clients int
	Servers int
}

// LoadScenario parses a netbench scenario file and records the endpoint
// counts the orchestrator has to provision for.
func LoadScenario(path string) (Scenario, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario file not found: %v", err)
	}
	var scenario netbenchScenario
	if err := json.Unmarshal(bytes, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %v", err)
	}
	return Scenario{
		Name:    filepath.Base(path),
		Path:    path,
		Clients: len(scenario.Clients),
		Servers: len(scenario.Servers),
	}, nil
}

// FileStem is the scenario name without its extension, used in S3 result
// paths.
func (s *Scenario) FileStem() string {
	return strings.TrimSuffix(s.Name, filepath.Ext(s.Name))
}
