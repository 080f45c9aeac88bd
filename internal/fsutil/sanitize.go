// Package fsutil holds filename and path helpers shared by the resolver and
// the download engine.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPathTraversal is returned when a path would escape its root directory.
var ErrPathTraversal = errors.New("path escapes root directory")

// illegalChars are characters not allowed in filenames on common filesystems.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var multiSpace = regexp.MustCompile(`\s+`)

var multiDot = regexp.MustCompile(`\.{2,}`)

// SanitizeFilename removes or replaces characters that are unsafe for filenames.
// Path separators become spaces so a name can never introduce a directory.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}

// ValidatePath ensures the path is within the expected root directory.
// Returns ErrPathTraversal if the path would escape the root.
func ValidatePath(path, expectedRoot string) error {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(expectedRoot)

	prefix := cleanRoot
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, prefix) {
		return ErrPathTraversal
	}
	return nil
}

// FileSize returns the size of the file at path, or 0 if it does not exist.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, &os.PathError{Op: "stat", Path: path, Err: errors.New("is a directory")}
	}
	return info.Size(), nil
}
