package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/choplin/agent-bridge/internal/builtin"
	"github.com/choplin/agent-bridge/internal/filesystem"
)

// Registry is the in-memory view of the registry file at Path. Every
// mutation is written back atomically before it returns.
type Registry struct {
	path      string
	cacheRoot string
	vaults    []Vault
}

type registryFile struct {
	Vaults []Vault `json:"vaults"`
}

// DefaultVault is the single vault a fresh installation starts with.
func DefaultVault() Vault {
	return Vault{
		Name:           "antigravity-kit",
		Source:         "https://github.com/vudovn/antigravity-kit",
		Description:    "Core agent knowledge vault by Vudovn",
		ContentSubpath: DefaultContentSubpath,
		Enabled:        true,
		Priority:       DefaultPriority,
	}
}

// Open loads the registry at path. A missing file yields a registry holding
// only DefaultVault; nothing is written until the first mutation.
// cacheRoot is where remote vaults keep their working copies.
func Open(path, cacheRoot string) (*Registry, error) {
	r := &Registry{path: path, cacheRoot: cacheRoot}

	//nolint:gosec // G304: registry path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.vaults = []Vault{DefaultVault()}
			return r, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Vaults))
	for _, v := range file.Vaults {
		if err := validateName(v.Name); err != nil {
			return nil, fmt.Errorf("registry %s: %w", path, err)
		}
		if v.ContentSubpath != "" && !filepath.IsLocal(v.ContentSubpath) {
			return nil, fmt.Errorf("registry %s: %w", path,
				invalid("vault %q: content subpath %q must stay inside the source", v.Name, v.ContentSubpath))
		}
		if _, dup := seen[v.Name]; dup {
			return nil, fmt.Errorf("registry %s: %w", path, &DuplicateVaultError{Name: v.Name})
		}
		seen[v.Name] = struct{}{}
	}
	r.vaults = file.Vaults
	return r, nil
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.path }

// CacheRoot returns the directory holding remote working copies.
func (r *Registry) CacheRoot() string { return r.cacheRoot }

// AddOption customizes a vault being registered.
type AddOption func(*Vault)

// WithContentSubpath overrides the default content subpath.
func WithContentSubpath(subpath string) AddOption {
	return func(v *Vault) { v.ContentSubpath = subpath }
}

// Disabled registers the vault without enabling it.
func Disabled() AddOption {
	return func(v *Vault) { v.Enabled = false }
}

// Add registers a new vault and persists the registry. Local sources are
// stored as absolute paths.
func (r *Registry) Add(name, source, description string, priority int, opts ...AddOption) (Vault, error) {
	v := Vault{
		Name:           strings.TrimSpace(name),
		Source:         strings.TrimSpace(source),
		Description:    description,
		ContentSubpath: DefaultContentSubpath,
		Enabled:        true,
		Priority:       priority,
	}
	for _, opt := range opts {
		opt(&v)
	}

	if err := validateName(v.Name); err != nil {
		return Vault{}, err
	}
	if _, exists := r.Get(v.Name); exists {
		return Vault{}, &DuplicateVaultError{Name: v.Name}
	}
	if v.ContentSubpath == "" {
		v.ContentSubpath = "."
	}
	if !filepath.IsLocal(v.ContentSubpath) {
		return Vault{}, invalid("content subpath %q must stay inside the source", v.ContentSubpath)
	}

	switch v.Kind() {
	case KindLocal:
		abs, err := normalizeLocal(v.Source)
		if err != nil {
			return Vault{}, err
		}
		v.Source = abs
	case KindBuiltin:
		if _, err := builtin.Kit(builtin.KitName(v.Source)); err != nil {
			return Vault{}, invalid("%v", err)
		}
	}

	r.vaults = append(r.vaults, v)
	if err := r.Save(); err != nil {
		r.vaults = r.vaults[:len(r.vaults)-1]
		return Vault{}, err
	}
	return v, nil
}

// Remove unregisters name, persists the registry and purges the vault's
// cache directory. It reports whether the vault existed.
func (r *Registry) Remove(name string) (bool, error) {
	idx := r.index(name)
	if idx < 0 {
		return false, nil
	}

	removed := r.vaults[idx]
	previous := r.vaults
	r.vaults = append(append([]Vault{}, previous[:idx]...), previous[idx+1:]...)
	if err := r.Save(); err != nil {
		r.vaults = previous
		return false, err
	}

	if cache := r.CachePath(removed); cache != "" {
		if err := filesystem.RemoveAll(cache); err != nil {
			return true, fmt.Errorf("failed to purge cache for %s: %w", name, err)
		}
	}
	return true, nil
}

// Get returns the vault registered under name.
func (r *Registry) Get(name string) (Vault, bool) {
	if idx := r.index(name); idx >= 0 {
		return r.vaults[idx], true
	}
	return Vault{}, false
}

// List returns every vault ordered by ascending priority; ties keep
// registration order.
func (r *Registry) List() []Vault {
	out := make([]Vault, len(r.vaults))
	copy(out, r.vaults)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Enabled returns the enabled vaults in List order.
func (r *Registry) Enabled() []Vault {
	var out []Vault
	for _, v := range r.List() {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}

// Save writes the registry file atomically.
func (r *Registry) Save() error {
	file := registryFile{Vaults: r.vaults}
	if file.Vaults == nil {
		file.Vaults = []Vault{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	data = append(data, '\n')
	if err := filesystem.WriteFileAtomic(r.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// CachePath returns the working copy directory of a remote vault, or ""
// for local and builtin vaults. A name that would not stay a single entry
// under the cache root also yields "".
func (r *Registry) CachePath(v Vault) string {
	if !v.IsRemote() || validateName(v.Name) != nil || !filepath.IsLocal(v.Name) {
		return ""
	}
	return filepath.Join(r.cacheRoot, v.Name)
}

func (r *Registry) index(name string) int {
	for i, v := range r.vaults {
		if v.Name == name {
			return i
		}
	}
	return -1
}

func validateName(name string) error {
	switch {
	case name == "":
		return invalid("name must not be empty")
	case name == "." || name == "..":
		return invalid("name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return invalid("name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return invalid("name %q must not start with a dot", name)
	}
	return nil
}

func normalizeLocal(source string) (string, error) {
	if source == "" {
		return "", invalid("source must not be empty")
	}
	if source == "~" || strings.HasPrefix(source, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~: %w", err)
		}
		source = filepath.Join(home, strings.TrimPrefix(source, "~"))
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", source, err)
	}
	return abs, nil
}
