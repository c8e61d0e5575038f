package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/choplin/agent-bridge/internal/git"
)

// ResolveTarget turns the target given on the command line or through MCP
// into an absolute path. Relative targets are anchored at the enclosing git
// work tree when workingDir lies inside one, otherwise at workingDir itself.
// An empty workingDir means the current directory.
func ResolveTarget(ctx context.Context, target, workingDir string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("target must not be empty")
	}
	if target == "~" || strings.HasPrefix(target, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		target = filepath.Join(home, strings.TrimPrefix(target, "~"))
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target), nil
	}

	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		workingDir = wd
	}
	base := workingDir
	if root := git.WorkTreeRoot(ctx, workingDir); root != "" {
		base = root
	}
	abs, err := filepath.Abs(filepath.Join(base, target))
	if err != nil {
		return "", fmt.Errorf("failed to resolve target: %w", err)
	}
	return abs, nil
}
