package merge

import (
	"errors"
	"fmt"
)

// ErrMergeIO is matched by every MergeIOError.
var ErrMergeIO = errors.New("merge I/O failure")

// MergeIOError reports a filesystem failure while copying one entry. It
// aborts that vault's contribution to the category; the merge goes on.
type MergeIOError struct {
	Vault string
	// Category is empty for root-level entries such as mcp_config.json.
	Category string
	Entry    string
	Err      error
}

func (e *MergeIOError) Error() string {
	where := e.Entry
	switch {
	case e.Category != "" && e.Entry != "":
		where = e.Category + "/" + e.Entry
	case e.Category != "":
		where = e.Category
	}
	return fmt.Sprintf("vault %q: failed to merge %s: %v", e.Vault, where, e.Err)
}

func (e *MergeIOError) Unwrap() error { return e.Err }

// Is matches ErrMergeIO.
func (e *MergeIOError) Is(target error) bool { return target == ErrMergeIO }
