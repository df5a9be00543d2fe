package material

import (
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-animesh/engine/loader"
)

// DefaultName is the name Library.Resolve falls back to for unknown or empty material names.
const DefaultName = "default"

// material is the implementation of the Material interface.
type material struct {
	name        string
	baseColor   [4]float32
	metallic    float32
	roughness   float32
	doubleSided bool
}

// Material defines the interface for a render material, the surface properties a submesh refers
// to by name. Materials are immutable once built.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo/diffuse RGBA color of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// DoubleSided reports whether back faces are drawn.
	//
	// Returns:
	//   - bool: true if culling is disabled for the material
	DoubleSided() bool

	// Params packs the material into its GPU uniform layout.
	//
	// Returns:
	//   - GPUMaterialParams: the uniform block
	Params() GPUMaterialParams
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		name:      DefaultName,
		baseColor: [4]float32{1, 1, 1, 1},
		metallic:  0.0,
		roughness: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// FromLoaded converts an imported material description.
//
// Parameters:
//   - m: the material the loader produced
//
// Returns:
//   - Material: the equivalent Material
func FromLoaded(m loader.Material) Material {
	return NewMaterial(
		WithName(m.Name),
		WithBaseColor(m.BaseColor),
		WithMetallic(m.Metallic),
		WithRoughness(m.Roughness),
		WithDoubleSided(m.DoubleSided),
	)
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) DoubleSided() bool {
	return m.doubleSided
}

func (m *material) Params() GPUMaterialParams {
	p := GPUMaterialParams{
		BaseColor: m.baseColor,
		Metallic:  m.metallic,
		Roughness: m.roughness,
	}
	if m.doubleSided {
		p.Flags |= FlagDoubleSided
	}
	return p
}

// library is the implementation of the Library interface.
type library struct {
	mu        sync.RWMutex
	materials map[string]Material
	fallback  Material
}

// Library maps material names to materials. Submeshes reference materials by name only, so a
// Library is what turns RenderMesh.Material into surface parameters.
//
// A Library is safe for concurrent use.
type Library interface {
	// Add registers a material, replacing any with the same name.
	//
	// Parameters:
	//   - m: the material
	Add(m Material)

	// Get looks a material up by name.
	//
	// Parameters:
	//   - name: the material name
	//
	// Returns:
	//   - Material: the material
	//   - bool: true if found
	Get(name string) (Material, bool)

	// Resolve looks a material up by name and falls back to the library's default material.
	//
	// Parameters:
	//   - name: the material name
	//
	// Returns:
	//   - Material: the named material, or the default
	Resolve(name string) Material

	// Names lists the registered material names, sorted.
	//
	// Returns:
	//   - []string: the names
	Names() []string
}

var _ Library = &library{}

// NewLibrary creates a Library holding materials. Its fallback is a white, fully rough dielectric
// named DefaultName unless materials registers one under that name.
//
// Parameters:
//   - materials: the initial materials
//
// Returns:
//   - Library: the new library
func NewLibrary(materials ...Material) Library {
	l := &library{
		materials: make(map[string]Material, len(materials)),
		fallback:  NewMaterial(),
	}
	for _, m := range materials {
		l.Add(m)
	}
	return l
}

// FromAsset builds a Library from an imported asset's materials.
//
// Parameters:
//   - asset: the imported asset
//
// Returns:
//   - Library: a library with one material per asset material
func FromAsset(asset *loader.Asset) Library {
	l := NewLibrary()
	for _, m := range asset.Materials {
		l.Add(FromLoaded(m))
	}
	return l
}

func (l *library) Add(m Material) {
	if m == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.materials[m.Name()] = m
	if m.Name() == DefaultName {
		l.fallback = m
	}
}

func (l *library) Get(name string) (Material, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.materials[name]
	return m, ok
}

func (l *library) Resolve(name string) Material {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.materials[name]; ok {
		return m
	}
	return l.fallback
}

func (l *library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.materials))
}
