package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/choplin/agent-bridge/internal/builtin"
)

// Location tells where a vault's content can be read from.
type Location struct {
	// Root is the OS directory holding the source tree: the cache
	// directory of a remote vault or the path of a local one. Empty for
	// builtin kits.
	Root string
	// Dir is Root joined with the content subpath.
	Dir string
	// FS is the content tree itself.
	FS fs.FS
}

// Locate resolves the content location of v. It does not check that the
// location exists.
func (r *Registry) Locate(v Vault) (Location, error) {
	subpath := v.ContentSubpath
	if subpath == "" {
		subpath = "."
	}

	switch v.Kind() {
	case KindBuiltin:
		kit, err := builtin.Kit(builtin.KitName(v.Source))
		if err != nil {
			return Location{}, err
		}
		sub, err := fs.Sub(kit, filepath.ToSlash(subpath))
		if err != nil {
			return Location{}, fmt.Errorf("vault %q: %w", v.Name, err)
		}
		return Location{FS: sub}, nil
	case KindGit:
		root := r.CachePath(v)
		if root == "" {
			return Location{}, invalid("vault %q has no usable cache path", v.Name)
		}
		dir := filepath.Join(root, subpath)
		return Location{Root: root, Dir: dir, FS: os.DirFS(dir)}, nil
	default:
		dir := filepath.Join(v.Source, subpath)
		return Location{Root: v.Source, Dir: dir, FS: os.DirFS(dir)}, nil
	}
}
