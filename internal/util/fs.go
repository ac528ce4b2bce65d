package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins name under root after stripping any directory components,
// so run and paper ids taken from external input cannot escape the output
// tree.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}
