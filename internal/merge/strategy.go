package merge

import (
	"fmt"
	"strings"
)

// Strategy decides which entry survives when several sources define the
// same name.
type Strategy int

const (
	// ProjectWins copies an entry only when the destination lacks it.
	ProjectWins Strategy = iota
	// VaultWins replaces destination entries, so the last vault in
	// priority order defining a name wins.
	VaultWins
	// VaultOnly clears the category directories first, then behaves as VaultWins.
	VaultOnly
)

// Strategies lists the strategies in their CLI spelling.
var Strategies = []Strategy{ProjectWins, VaultWins, VaultOnly}

func (s Strategy) String() string {
	switch s {
	case ProjectWins:
		return "project-wins"
	case VaultWins:
		return "vault-wins"
	case VaultOnly:
		return "vault-only"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Overwrites reports whether existing destination entries are replaced.
func (s Strategy) Overwrites() bool { return s == VaultWins || s == VaultOnly }

// ParseStrategy accepts both the CLI spelling ("vault-wins") and the
// constant spelling ("VAULT_WINS"). An empty string selects ProjectWins.
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if norm == "" {
		return ProjectWins, nil
	}
	for _, st := range Strategies {
		if st.String() == norm {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown merge strategy %q (want project-wins, vault-wins or vault-only)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	st, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
