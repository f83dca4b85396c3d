package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the media type to select
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// File is a selected local file
type File struct {
	Path   string
	Size   int64
	Width  int
	Height int
	Thumb  string
}

// SelectOptions are passed through to the Selector
type SelectOptions struct {
	// Count caps the number of files. Zero leaves it to the selector.
	Count int
	// Sources are where files may come from, e.g. "album" or "camera"
	Sources []string
	// SizeTypes are the acceptable renditions, e.g. "original" or "compressed"
	SizeTypes   []string
	Compressed  bool
	Camera      string
	MaxDuration time.Duration
}

// Selector picks the files to upload
type Selector interface {
	Select(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error)
}

// SelectorFunc adapts a function to the Selector interface
type SelectorFunc func(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error)

// Select implements Selector
func (f SelectorFunc) Select(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error) {
	return f(ctx, kind, opts)
}

// FileSelector selects files already known by path. Files whose extension
// does not match the requested kind are rejected.
type FileSelector struct {
	Paths []string
}

// Select implements Selector
func (s FileSelector) Select(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error) {
	paths := s.Paths
	if opts.Count > 0 && len(paths) > opts.Count {
		paths = paths[:opts.Count]
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		if !matchesKind(path, kind) {
			return nil, fmt.Errorf("%s is not a %s file", path, kind)
		}

		files = append(files, File{Path: path, Size: info.Size()})
	}
	return files, nil
}

// mediaTypes covers extensions missing from minimal mime tables
var mediaTypes = map[string]string{
	".heic": "image/heic",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

func matchesKind(path string, kind Kind) bool {
	if kind == "" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		typ = mediaTypes[ext]
	}
	return strings.HasPrefix(typ, string(kind)+"/")
}
