// Package uri maps file system paths to canonical resource identifiers.
package uri

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// FileResolver renders absolute paths as file:// URIs.
type FileResolver struct{}

// NewFileResolver creates a FileResolver.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Resolve cleans path and returns its file URI. Relative paths are made absolute
// against the process working directory.
func (FileResolver) Resolve(path string) domain.ResourceID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(filepath.Clean(path))
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths: C:/x -> /C:/x
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return domain.ResourceID(u.String())
}
