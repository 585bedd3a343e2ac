// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/bandrev/internal/core"
)

// ErrNotFound is returned by Read when no artifact exists at the path
var ErrNotFound = errors.New("artifact not found")

// Storage persists run artifacts such as exported trade logs
type Storage interface {
	// Write stores data at the given path, replacing any previous object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under prefix, relative to the storage root
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config selects and configures a storage backend
type Config struct {
	Type string // localfs or s3
	Path string
	S3   S3Config
}

// New creates the backend named by cfg.Type
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.path is required for localfs"))
		}
		return NewLocalFS(cfg.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.s3.bucket is required"))
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}

// RunPath returns the artifact path of name within a run directory
func RunPath(runID, name string) string {
	return path.Join("runs", runID, name)
}

// cleanPath normalizes p to a slash-separated relative path and rejects
// paths that escape the storage root.
func cleanPath(p string) (string, error) {
	slashed := strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("artifact path %q escapes storage root", p)
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if c == "" {
		return "", fmt.Errorf("empty artifact path %q", p)
	}
	return c, nil
}
