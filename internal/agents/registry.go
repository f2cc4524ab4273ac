// Package agents holds the roster of orchestration agents whose log
// entries the store accepts. The baseline roster ships embedded; the set
// is closed at runtime but extensible by deployment (edit the YAML).
package agents

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Agent describes one orchestration agent: its stable name (the value
// persisted on agent_logs.agent_name), the model it runs, and its role.
type Agent struct {
	Name  string `yaml:"name" json:"name"`
	Model string `yaml:"model" json:"model"`
	Role  string `yaml:"role" json:"role"`
}

type rosterFile struct {
	Agents []Agent `yaml:"agents"`
}

// Registry manages the known agent set
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
	byName map[string]Agent
}

// NewRegistry creates a registry from the embedded roster YAML
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/roster.yaml")
	if err != nil {
		return nil, fmt.Errorf("read agent roster: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("unmarshal agent roster: %w", err)
	}
	if len(roster.Agents) == 0 {
		return nil, fmt.Errorf("agent roster is empty")
	}

	byName := make(map[string]Agent, len(roster.Agents))
	for _, agent := range roster.Agents {
		if agent.Name == "" {
			return nil, fmt.Errorf("agent roster entry missing name")
		}
		if _, dup := byName[agent.Name]; dup {
			return nil, fmt.Errorf("duplicate agent %q in roster", agent.Name)
		}
		byName[agent.Name] = agent
	}

	return &Registry{agents: roster.Agents, byName: byName}, nil
}

// Known reports whether name is a roster agent
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Get returns the roster entry for name
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.byName[name]
	return agent, ok
}

// List returns the roster in file order
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]Agent, len(r.agents))
	copy(agents, r.agents)
	return agents
}
