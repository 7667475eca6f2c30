// Package pathutil confines caller-supplied file paths to lifnet's own
// directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/lifnet/internal/constants"
)

// ExportsDir is where relative export names land inside a .lifnet directory.
const ExportsDir = "exports"

// RedactPath reduces a full path to .../<parent>/<basename> for error
// messages, e.g. "/home/user/.lifnet/spikes.csv" becomes ".../.lifnet/spikes.csv".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Confine returns the absolute, symlink-resolved form of path if it lies
// within one of allowedDirs. The file itself need not exist.
func Confine(path string, allowedDirs []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// Resolve the parent so a symlinked directory inside an allowed tree
	// cannot point outside it.
	resolvedDir, err := resolveExisting(filepath.Dir(absPath))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		allowedResolved, err := resolveExisting(allowedAbs)
		if err != nil {
			continue
		}
		if within(resolved, allowedResolved) {
			return resolved, nil
		}
	}

	return "", fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(absPath))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// dir and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path equals base or lies below it.
func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// AllowedDirs returns the directories MCP clients may write into:
// <projectRoot>/.lifnet and ~/.lifnet.
func AllowedDirs(projectRoot string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		filepath.Join(projectRoot, constants.DirName),
		filepath.Join(homeDir, constants.DirName),
	}, nil
}

// ResolveOutput maps an export destination to an allowed absolute path.
// Relative names are placed under <projectRoot>/.lifnet/exports.
func ResolveOutput(name, projectRoot string) (string, error) {
	allowed, err := AllowedDirs(projectRoot)
	if err != nil {
		return "", err
	}
	if name != "" && !filepath.IsAbs(name) {
		name = filepath.Join(projectRoot, constants.DirName, ExportsDir, name)
	}
	return Confine(name, allowed)
}
