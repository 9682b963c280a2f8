package ingest

import (
	"path/filepath"
	"strings"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

// AllowedExt checks ext against allow, or constants.AllowedExtensions when allow is nil.
func AllowedExt(ext string, allow map[string]struct{}) bool {
	if allow == nil {
		allow = constants.AllowedExtensions
	}
	_, ok := allow[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
