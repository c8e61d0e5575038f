package syncer

import (
	"errors"
	"fmt"
	"time"
)

// ErrSync is matched by every SyncError.
var ErrSync = errors.New("sync failed")

// SyncError reports a failed fetch of a remote vault. Err is the backend
// error, typically a *git.CommandError carrying exit status and stderr.
type SyncError struct {
	Vault string
	Op    string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("vault %q: %s failed: %v", e.Vault, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is matches ErrSync.
func (e *SyncError) Is(target error) bool { return target == ErrSync }

// Action describes what a successful sync did.
type Action string

// Sync actions.
const (
	ActionCloned    Action = "cloned"
	ActionUpdated   Action = "updated"
	ActionUpToDate  Action = "up-to-date"
	ActionValidated Action = "validated"
)

// Result is the outcome of syncing one vault.
type Result struct {
	Vault    string
	Action   Action
	Agents   int
	Skills   int
	Duration time.Duration
	Err      error
}

// OK reports whether the sync succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Status renders the outcome as "ok" or "error: <message>".
func (r Result) Status() string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	return "ok"
}

// Succeeded counts successful results.
func Succeeded(results map[string]Result) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}
