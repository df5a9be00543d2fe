package loader

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger              *slog.Logger
	influencesPerVertex int

	cache   map[string]*Asset
	backend loaderBackend
}

// Loader imports model files into skeleton and mesh factories plus animation clips, and caches the
// result by path or name. Factories are shared: every instance created from a cached asset refers
// to the same immutable template data.
//
// A Loader is safe for concurrent use.
type Loader interface {
	// Load imports a model file, or returns the cached asset for the same path.
	// The backend is chosen by extension (.gltf and .glb use the glTF backend).
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - *Asset: the loaded and cached asset
	//   - error: ErrUnsupportedFormat (wrapped) for unknown extensions, or the import error
	Load(path string) (*Asset, error)

	// LoadReader imports a model from a stream and caches it by name. Relative buffer URIs are
	// resolved against the working directory.
	//
	// Parameters:
	//   - name: the cache key for the loaded asset
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - *Asset: the loaded asset
	//   - error: error if reading or importing fails
	LoadReader(name string, r io.Reader, isGLB bool) (*Asset, error)

	// Get retrieves a cached asset by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *Asset: the cached asset or nil
	Get(name string) *Asset

	// Assets returns a copy of the cache.
	//
	// Returns:
	//   - map[string]*Asset: all cached assets keyed by name
	Assets() map[string]*Asset

	// Evict drops an asset from the cache. Instances already created from it are unaffected.
	//
	// Parameters:
	//   - name: the cache key to drop
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger:              slog.Default(),
		influencesPerVertex: animesh.DefaultInfluencesPerVertex,
		cache:               make(map[string]*Asset),
	}
	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = &gltfLoaderBackend{logger: l.logger, influencesPerVertex: l.influencesPerVertex}
	}
	return l
}

func (l *loader) Load(path string) (*Asset, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if l.backend == nil || (ext != ".gltf" && ext != ".glb") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return l.importAndCache(path, data, filepath.Dir(path), ext == ".glb")
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (*Asset, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}
	if l.backend == nil {
		return nil, ErrUnsupportedFormat
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("loader: read %q: %w", name, err)
	}
	return l.importAndCache(name, data, ".", isGLB)
}

// importAndCache imports outside the lock; when two callers race on the same key the first
// stored asset wins so every caller shares one set of factories.
func (l *loader) importAndCache(name string, data []byte, baseDir string, isBinary bool) (*Asset, error) {
	asset, err := l.backend.Import(name, data, baseDir, isBinary)
	if err != nil {
		return nil, fmt.Errorf("loader: import %q: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.cache[name]; ok {
		return existing, nil
	}
	l.cache[name] = asset
	l.logger.Debug("asset imported",
		"asset", name,
		"vertices", asset.Mesh.VertexCount(),
		"submeshes", len(asset.Mesh.Submeshes()),
		"clips", len(asset.Clips),
	)
	return asset, nil
}

func (l *loader) Get(name string) *Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[name]
}

func (l *loader) Assets() map[string]*Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.cache)
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}
