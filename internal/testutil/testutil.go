// Package testutil provides fixtures shared by notely's package tests.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNoModuleRoot is returned when no go.mod is found above this package.
var ErrNoModuleRoot = errors.New("testutil: go.mod not found")

// GetProjectRoot walks up from this source file to the directory holding
// go.mod. Tests use it to reach bin/ and other repository paths.
func GetProjectRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("testutil: no caller information")
	}
	for dir := filepath.Dir(file); ; {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoModuleRoot
		}
		dir = parent
	}
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
