package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the versioned intent configuration document:
//
//	version: "3"
//	default_agent: conversation_agent
//	intents:
//	  billing: reporting_agent
//	  chitchat: conversation_agent
//
// Intent order in the document is preserved as registration order, which is
// why intents are decoded through a yaml.Node instead of a plain map.
type Config struct {
	Version      string    `yaml:"version"`
	DefaultAgent string    `yaml:"default_agent"`
	Intents      yaml.Node `yaml:"intents"`
}

// ParseConfig decodes a yaml intent document into a table.
func ParseConfig(data []byte) (*Table, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse intent config: %w", err)
	}

	var entries []Entry
	if cfg.Intents.Kind != 0 {
		if cfg.Intents.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse intent config: intents must be a mapping")
		}
		// Mapping node content alternates key, value.
		for i := 0; i+1 < len(cfg.Intents.Content); i += 2 {
			key := cfg.Intents.Content[i].Value
			agentID := cfg.Intents.Content[i+1].Value
			if key == "" {
				return nil, fmt.Errorf("parse intent config: empty intent key")
			}
			if agentID == "" {
				return nil, fmt.Errorf("parse intent config: intent %q has no agent id", key)
			}
			entries = append(entries, Entry{Intent: key, AgentID: agentID})
		}
	}

	return NewTable(cfg.Version, cfg.DefaultAgent, entries...), nil
}

// LoadFile reads and parses an intent configuration file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent config: %w", err)
	}
	return ParseConfig(data)
}
