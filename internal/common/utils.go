// Package common provides filesystem helpers used across the migration CLI.
package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// JSONExt is the extension of every resource definition file.
const JSONExt = ".json"

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return nil
}

// SanitizeName sanitizes a string for use in file/directory names.
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ListFiles returns the sorted paths of the regular files directly inside dir
// whose name ends with extension. An empty extension matches every file.
func ListFiles(dir, extension string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	files := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), extension) {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	sort.Strings(files)
	return files, nil
}

// File is the content of one file read by ReadAll.
type File struct {
	Path    string
	Content []byte
}

// ReadAll reads every file ListFiles returns for dir and extension.
func ReadAll(dir, extension string) ([]File, error) {
	paths, err := ListFiles(dir, extension)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, File{Path: path, Content: content})
	}
	return files, nil
}

// ListDirs returns the sorted names of the directories directly inside dir.
func ListDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), e.IsDir()
	})
	sort.Strings(names)
	return names, nil
}

// ErrFileExists is returned by CreateFile when the target is already present.
var ErrFileExists = errors.New("file already exists")

// CreateFile writes content to a new file, creating parent directories.
// It refuses to overwrite an existing file.
func CreateFile(path string, content []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrFileExists)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteFile replaces the content of path through a temporary file in the
// same directory, so readers never observe a partial write.
func WriteFile(path string, content []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".fmc-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpFile.Close()

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move temp file: %w", err)
	}
	return nil
}
