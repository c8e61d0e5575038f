// Package builtin exposes content kits compiled into the binary.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Scheme prefixes vault sources that refer to a bundled kit.
const Scheme = "builtin:"

//go:embed all:kits
var kits embed.FS

// Names lists the bundled kits.
func Names() []string {
	entries, err := fs.ReadDir(kits, "kits")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// KitName extracts the kit name from a builtin source such as "builtin:starter".
func KitName(source string) string {
	return strings.TrimPrefix(source, Scheme)
}

// Kit returns the root of the named kit.
func Kit(name string) (fs.FS, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid builtin kit name %q", name)
	}
	dir := path.Join("kits", name)
	if _, err := fs.Stat(kits, dir); err != nil {
		return nil, fmt.Errorf("builtin kit %q: %w", name, fs.ErrNotExist)
	}
	return fs.Sub(kits, dir)
}
