package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path      string
	MediaType string
	Size      int64
	Err       string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// Load reads a document from disk into a pipeline input. The media type comes from the file
// extension; files above maxBytes are rejected.
func Load(path string, maxBytes int64) (pipeline.Input, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return pipeline.Input{}, err
	}
	mt := constants.MediaTypeForExt(filepath.Ext(abs))
	if mt == "" {
		return pipeline.Input{}, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported or missing extension: %q", filepath.Ext(abs)), common.ErrUnsupportedFormat)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return pipeline.Input{}, err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return pipeline.Input{}, common.NewAppError("INVALID_INPUT",
			fmt.Sprintf("%s is %d bytes, limit is %d", filepath.Base(abs), info.Size(), maxBytes), common.ErrInvalidInput)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{
		DocumentID: uuid.New(),
		Name:       filepath.Base(abs),
		Data:       data,
		MediaType:  mt,
	}, nil
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = constants.AllowedExtensions
	}
	_, ok := exts[constants.NormalizeExt(ext)]
	return ok
}

// ExtSet builds an extension filter from user input; nil means every supported extension.
func ExtSet(include []string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, e := range include {
		e = constants.NormalizeExt(strings.TrimSpace(e))
		if e != "" {
			out[e] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
