package extract

import (
	"path/filepath"
	"strings"
)

// Type is a workout file format recognised by extension.
type Type string

const (
	TypeFIT     Type = "fit"
	TypeTCX     Type = "tcx"
	TypeGPX     Type = "gpx"
	TypeUnknown Type = "unknown"
)

// FileType classifies name by extension, case-insensitively, after stripping a .gz suffix.
func FileType(name string) Type {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	switch filepath.Ext(lower) {
	case ".fit":
		return TypeFIT
	case ".tcx":
		return TypeTCX
	case ".gpx":
		return TypeGPX
	default:
		return TypeUnknown
	}
}

// Supported reports whether name is a recognised workout format. Only FIT is decoded.
func Supported(name string) bool {
	return FileType(name) != TypeUnknown
}
