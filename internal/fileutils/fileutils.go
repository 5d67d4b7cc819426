// Package fileutils provides utility functions for handling files.
package fileutils

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// AtomicWrite writes data to a file atomically.
// If the file already exists, then it will be overwritten.
// Not atomic on Windows.
func AtomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %v", err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temporary file", "file", tmp.Name(), "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("could not write to temporary file: %v", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary file: %v", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not rename temporary file: %v", err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ExpandHome replaces a leading ~ with the home directory of the current user.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %q: %v", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ResolveDir returns the absolute path of the directory dir.
//
// An empty dir resolves to <cwd>/<folder> when that directory exists, and to the
// current working directory otherwise.
// An error is returned if the resulting directory does not exist.
func ResolveDir(dir, folder string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current directory: %v", err)
		}
		dir = cwd
		if folder != "" {
			if info, err := os.Stat(filepath.Join(cwd, folder)); err == nil && info.IsDir() {
				dir = filepath.Join(cwd, folder)
			}
		}
	}

	dir, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("could not resolve %q: %v", dir, err)
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("path %s doesn't exist", dir)
	} else if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path %s is not a directory", dir)
	}
	return dir, nil
}
