package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrEmptyPath = errors.New("file path cannot be empty")
	ErrNULByte   = errors.New("path contains NUL byte")
	ErrTraversal = errors.New("path climbs out of its directory")
)

// ValidateFilePath checks a path taken from configuration or the
// environment: the database file, the queue file, the training prompt and
// the config file itself. Absolute paths are allowed; a path that still
// starts with ".." after cleaning is not.
func ValidateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if strings.IndexByte(path, 0) >= 0 {
		return ErrNULByte
	}
	if slices.Contains(strings.Split(filepath.ToSlash(filepath.Clean(path)), "/"), "..") {
		return fmt.Errorf("%w: %s", ErrTraversal, path)
	}
	return nil
}
