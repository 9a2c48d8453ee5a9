package directory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intentmesh/intentmesh/core"
)

// agentConfig is the yaml document shape for one agent entry. Timeout is a
// duration string ("20s"); content types are the canonical envelope names.
type agentConfig struct {
	AgentID              string            `yaml:"agent_id"`
	Endpoint             string            `yaml:"endpoint"`
	AcceptedContentTypes []string          `yaml:"accepted_content_types"`
	Tools                []toolConfig      `yaml:"tools"`
	Timeout              string            `yaml:"timeout"`
	MaxRetries           int               `yaml:"max_retries"`
	Metadata             map[string]string `yaml:"metadata"`
}

type toolConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Config is the agent directory configuration document:
//
//	agents:
//	  - agent_id: reporting_agent
//	    endpoint: http://reporting:8080/invoke
//	    accepted_content_types: [text, structured_data]
//	    timeout: 20s
//	    max_retries: 2
type Config struct {
	Agents []agentConfig `yaml:"agents"`
}

// ParseConfig decodes a yaml directory document into a snapshot.
func ParseConfig(data []byte) (*Snapshot, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse directory config: %w", err)
	}

	descriptors := make([]core.AgentDescriptor, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.AgentID == "" {
			return nil, fmt.Errorf("parse directory config: agent entry without agent_id")
		}
		if a.Endpoint == "" {
			return nil, fmt.Errorf("parse directory config: agent %q has no endpoint", a.AgentID)
		}

		var timeout time.Duration
		if a.Timeout != "" {
			var err error
			timeout, err = time.ParseDuration(a.Timeout)
			if err != nil {
				return nil, fmt.Errorf("parse directory config: agent %q timeout: %w", a.AgentID, err)
			}
		}

		contentTypes := make([]core.ContentType, 0, len(a.AcceptedContentTypes))
		for _, ct := range a.AcceptedContentTypes {
			contentTypes = append(contentTypes, core.ContentType(ct))
		}

		tools := make([]core.ToolInfo, 0, len(a.Tools))
		for _, tc := range a.Tools {
			tools = append(tools, core.ToolInfo{Name: tc.Name, Description: tc.Description})
		}

		descriptors = append(descriptors, core.AgentDescriptor{
			AgentID:              a.AgentID,
			Endpoint:             a.Endpoint,
			AcceptedContentTypes: contentTypes,
			Tools:                tools,
			Timeout:              timeout,
			MaxRetries:           a.MaxRetries,
			Metadata:             a.Metadata,
		})
	}

	return NewSnapshot(descriptors...), nil
}

// LoadFile reads and parses a directory configuration file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory config: %w", err)
	}
	return ParseConfig(data)
}
