package parser

import (
	"path/filepath"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

const testRoot = "/repo"

// fakeResolver turns paths into file URIs without touching the file system.
type fakeResolver struct{}

func (fakeResolver) Resolve(path string) domain.ResourceID {
	return domain.ResourceID("file://" + filepath.ToSlash(path))
}

func uri(rel string) domain.ResourceID {
	return fakeResolver{}.Resolve(filepath.Join(testRoot, filepath.FromSlash(rel)))
}
