// Package material resolves face material names to images on disk or in
// package archives.
package material

import (
	"path"
	"strings"

	"github.com/Faultbox/brushforge/pkg/encoding"
)

// Material is a resolved material image.
type Material struct {
	Name   string
	Path   string
	Width  int
	Height int
	Albedo [3]float32
}

// Resolver looks up materials by normalized name.
type Resolver interface {
	Resolve(name string) (Material, bool)
}

// Static is a fixed set of materials, keyed by normalized name.
type Static map[string]Material

// Resolve implements Resolver.
func (s Static) Resolve(name string) (Material, bool) {
	m, ok := s[name]
	return m, ok
}

var imageExtensions = map[string]bool{
	".tga": true, ".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".gif": true, ".webp": true, ".wal": true, ".dds": true,
}

// Normalize canonicalizes a material name: surrounding space is trimmed,
// the name is lowercased, backslashes become slashes and a trailing image
// extension is removed.
func Normalize(name string) string {
	name = encoding.NormalizePath(strings.TrimSpace(name))
	if ext := path.Ext(name); imageExtensions[ext] {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
