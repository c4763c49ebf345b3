package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
)

// FileResult is the per-file outcome of a batch run.
type FileResult struct {
	Path         string
	RecordID     string
	Platform     string
	Deduplicated bool
	Score        *float64 // set when the batch audits records
	Err          string
}

// DirStats summarizes a batch run.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Processed    uint32
	Deduplicated uint32
	Failed       uint32
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// WorkerFromPath maps inbox/<worker>/statement.png to "<worker>". Files
// directly under root belong to def.
func WorkerFromPath(root, path, def string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return def
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == "" {
		return def
	}
	return parts[0]
}

func allowed(path string, exts map[string]struct{}) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if exts == nil {
		return constants.IsAllowedExt(ext)
	}
	_, ok := exts[ext]
	return ok
}
