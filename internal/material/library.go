package material

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/texture"
	"github.com/Faultbox/brushforge/pkg/pak"
)

// Library resolves materials from a directory tree and package archives.
// Directories are searched first, then archives in reverse order (last
// added has the highest priority).
type Library struct {
	roots      []string
	extensions []string
	archives   []*pak.Archive
	cache      *Cache
	log        *zap.Logger
	mu         sync.RWMutex
}

// NewLibrary creates a library searching roots with the given extensions.
func NewLibrary(roots, extensions []string, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{
		roots:      roots,
		extensions: extensions,
		cache:      NewCache(),
		log:        log,
	}
}

// FromGame builds a library from a game configuration's materials section.
func FromGame(g *gameconfig.Game, log *zap.Logger) (*Library, error) {
	var roots []string
	if g.Materials.Root != "" {
		roots = append(roots, g.ResolvePath(g.Materials.Root))
	}
	lib := NewLibrary(roots, g.Materials.Extensions, log)
	for _, a := range g.Materials.Archives {
		if err := lib.AddArchive(g.ResolvePath(a)); err != nil {
			lib.Close()
			return nil, err
		}
	}
	return lib, nil
}

// AddArchive adds a package archive to the search list.
func (l *Library) AddArchive(path string) error {
	archive, err := pak.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	l.mu.Lock()
	l.archives = append(l.archives, archive)
	l.mu.Unlock()

	return nil
}

// Resolve implements Resolver. Results, including misses, are cached.
func (l *Library) Resolve(name string) (Material, bool) {
	if e, ok := l.cache.Get(name); ok {
		return e.Material, e.Found
	}
	m, found := l.lookup(name)
	l.cache.Set(name, Entry{Material: m, Found: found})
	return m, found
}

func (l *Library) lookup(name string) (Material, bool) {
	for _, root := range l.roots {
		for _, ext := range l.extensions {
			p := filepath.Join(root, filepath.FromSlash(name)+"."+ext)
			data, err := os.ReadFile(p)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					l.log.Warn("reading material", zap.String("path", p), zap.Error(err))
				}
				continue
			}
			if m, ok := l.probe(name, p, data, ext); ok {
				return m, true
			}
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.archives) - 1; i >= 0; i-- {
		for _, ext := range l.extensions {
			p := name + "." + ext
			data, err := l.archives[i].Read(p)
			if err != nil {
				continue
			}
			if m, ok := l.probe(name, p, data, ext); ok {
				return m, true
			}
		}
	}
	return Material{}, false
}

func (l *Library) probe(name, path string, data []byte, ext string) (Material, bool) {
	info, err := texture.Probe(data, ext)
	if err != nil {
		l.log.Warn("unreadable material image", zap.String("path", path), zap.Error(err))
		return Material{}, false
	}
	l.log.Debug("resolved material",
		zap.String("name", name),
		zap.String("path", path),
		zap.String("kind", info.Kind),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height))
	return Material{
		Name:   name,
		Path:   path,
		Width:  info.Width,
		Height: info.Height,
		Albedo: info.Albedo,
	}, true
}

// Stats returns cache hit and miss counts.
func (l *Library) Stats() (hits, misses int) {
	return l.cache.Stats()
}

// Close closes all archives.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, archive := range l.archives {
		archive.Close()
	}
	l.archives = nil
	l.cache.Clear()
}

// Entry is a cached lookup result.
type Entry struct {
	Material Material
	Found    bool
}

// Cache is an in-memory cache of lookup results.
type Cache struct {
	data map[string]Entry
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]Entry),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
