package content

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// Inventory holds the number of entries found per category.
type Inventory map[Category]int

// Total sums all categories.
func (inv Inventory) Total() int {
	n := 0
	for _, c := range inv {
		n += c
	}
	return n
}

// Count inventories the content tree rooted at fsys. Agents, workflows and
// rules count *.md files; skills count directories. Missing category
// directories count as zero.
func Count(fsys fs.FS) (Inventory, error) {
	inv := make(Inventory, len(Categories))
	for _, c := range Categories {
		n, err := CountCategory(fsys, c)
		if err != nil {
			return nil, err
		}
		inv[c] = n
	}
	return inv, nil
}

// CountCategory counts the entries of a single category. Dot entries,
// such as staging directories left by an interrupted merge, are ignored.
func CountCategory(fsys fs.FS, c Category) (int, error) {
	entries, err := fs.ReadDir(fsys, string(c))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if Hidden(e.Name()) {
			continue
		}
		if c.DirEntries() {
			if e.IsDir() {
				n++
			}
			continue
		}
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".md") {
			n++
		}
	}
	return n, nil
}

// Hidden reports whether name is a dot entry.
func Hidden(name string) bool { return strings.HasPrefix(name, ".") }

// Exists reports whether name exists inside fsys.
func Exists(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, path.Clean(name))
	return err == nil
}
