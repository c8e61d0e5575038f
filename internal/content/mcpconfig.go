package content

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
)

// MCPServer is one entry of the mcpServers map.
type MCPServer struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// MCPConfig is the decoded mcp_config.json.
type MCPConfig struct {
	Servers map[string]MCPServer `json:"mcpServers"`
}

// ServerNames returns the configured server names in sorted order.
func (c *MCPConfig) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadMCPConfig reads and decodes the MCP config at the root of fsys.
func LoadMCPConfig(fsys fs.FS) (*MCPConfig, error) {
	data, err := fs.ReadFile(fsys, MCPConfigFile)
	if err != nil {
		return nil, err
	}
	var cfg MCPConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", MCPConfigFile, err)
	}
	return &cfg, nil
}
