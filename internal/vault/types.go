// Package vault defines vault descriptors and the registry that persists them.
package vault

import (
	"encoding/json"
	"strings"

	"github.com/choplin/agent-bridge/internal/builtin"
)

// Defaults applied to new and legacy vault records.
const (
	DefaultContentSubpath = ".agent"
	DefaultPriority       = 100
)

// Kind classifies a vault by the shape of its source.
type Kind string

// Vault source kinds.
const (
	KindGit     Kind = "git"
	KindLocal   Kind = "local"
	KindBuiltin Kind = "builtin"
)

var remotePrefixes = []string{"http://", "https://", "git@", "ssh://", "git://", "file://"}

// KindOf derives the kind of a source string.
func KindOf(source string) Kind {
	if strings.HasPrefix(source, builtin.Scheme) {
		return KindBuiltin
	}
	for _, p := range remotePrefixes {
		if strings.HasPrefix(source, p) {
			return KindGit
		}
	}
	return KindLocal
}

// Vault describes one content source.
//
//nolint:revive // the registry file calls these records vaults
type Vault struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	Description    string `json:"description,omitempty"`
	ContentSubpath string `json:"content_subpath"`
	Enabled        bool   `json:"enabled"`
	Priority       int    `json:"priority"`
}

// Kind returns the kind derived from the source.
func (v Vault) Kind() Kind { return KindOf(v.Source) }

// IsRemote reports whether the vault is fetched with git.
func (v Vault) IsRemote() bool { return v.Kind() == KindGit }

// UnmarshalJSON fills defaults for missing fields and accepts the legacy
// url and agent_subdir keys.
func (v *Vault) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name           string  `json:"name"`
		Source         *string `json:"source"`
		URL            *string `json:"url"`
		Description    string  `json:"description"`
		ContentSubpath *string `json:"content_subpath"`
		AgentSubdir    *string `json:"agent_subdir"`
		Enabled        *bool   `json:"enabled"`
		Priority       *int    `json:"priority"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = Vault{
		Name:           raw.Name,
		Description:    raw.Description,
		ContentSubpath: DefaultContentSubpath,
		Enabled:        true,
		Priority:       DefaultPriority,
	}
	switch {
	case raw.Source != nil:
		v.Source = *raw.Source
	case raw.URL != nil:
		v.Source = *raw.URL
	}
	switch {
	case raw.ContentSubpath != nil:
		v.ContentSubpath = *raw.ContentSubpath
	case raw.AgentSubdir != nil:
		v.ContentSubpath = *raw.AgentSubdir
	}
	if raw.Enabled != nil {
		v.Enabled = *raw.Enabled
	}
	if raw.Priority != nil {
		v.Priority = *raw.Priority
	}
	return nil
}
