// Package paths confines file lookups to a root directory.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapes reports a path that leaves its root, directly or through a symlink.
var ErrEscapes = errors.New("path escapes root directory")

// Resolve maps the slash-separated relative path rel into root and follows
// symlinks. The result must still lie inside root. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func Resolve(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapes, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	full := filepath.Join(realRoot, clean)
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", rel, fs.ErrNotExist)
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", err
	}

	relToRoot, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("resolve relative path: %w", err)
	}
	if relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) || filepath.IsAbs(relToRoot) {
		return "", fmt.Errorf("%w: %s", ErrEscapes, rel)
	}
	return resolved, nil
}
