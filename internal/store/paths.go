package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/lifnet/internal/constants"
)

// DBFile is the run database name inside a .lifnet directory.
const DBFile = "lifnet.db"

// GlobalPath returns the path to the global .lifnet directory.
// On Unix: ~/.lifnet
// On Windows: %USERPROFILE%\.lifnet
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName), nil
}

// LocalPath returns the path to the .lifnet directory for the given
// project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.DirName)
}

// PathFor returns the .lifnet directory for scope.
func PathFor(scope constants.Scope, projectRoot string) (string, error) {
	switch scope {
	case constants.ScopeGlobal:
		return GlobalPath()
	case constants.ScopeLocal, "":
		return LocalPath(projectRoot), nil
	default:
		return "", fmt.Errorf("invalid scope %q", scope)
	}
}
