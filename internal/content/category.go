// Package content describes the layout of an agent content tree: the fixed
// set of categories, how entries are counted, frontmatter and MCP config.
package content

import (
	"fmt"
	"strings"
)

// Category is one of the top-level directories of a content tree.
type Category string

// The content categories, in merge order.
const (
	Agents    Category = "agents"
	Skills    Category = "skills"
	Workflows Category = "workflows"
	Rules     Category = "rules"
)

// MCPConfigFile is the root-level MCP server configuration file.
const MCPConfigFile = "mcp_config.json"

// SkillFile is the manifest every skill directory is expected to contain.
const SkillFile = "SKILL.md"

// Categories lists every category in merge order.
var Categories = []Category{Agents, Skills, Workflows, Rules}

// String implements fmt.Stringer.
func (c Category) String() string { return string(c) }

// DirEntries reports whether the category's entries are directories
// (skills) rather than markdown files.
func (c Category) DirEntries() bool { return c == Skills }

// ParseCategory maps a directory name to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown content category %q", s)
}
