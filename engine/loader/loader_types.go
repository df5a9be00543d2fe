package loader

import (
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// Material is the CPU-side description of a material referenced by submeshes by name.
type Material struct {
	Name        string
	BaseColor   mgl32.Vec4
	Metallic    float32
	Roughness   float32
	DoubleSided bool
}

// Asset is everything imported from one model file. Skeleton is nil for static meshes, in which
// case Mesh carries no influences and Clips is empty.
type Asset struct {
	Name      string
	Skeleton  skeleton.SkeletonFactory
	Mesh      animesh.AnimatedMeshFactory
	Clips     []animator.Clip
	Materials []Material
}

// Material looks a material up by name.
//
// Parameters:
//   - name: the material name a submesh references
//
// Returns:
//   - Material: the material
//   - bool: true if found
func (a *Asset) Material(name string) (Material, bool) {
	for _, m := range a.Materials {
		if m.Name == name {
			return m, true
		}
	}
	return Material{}, false
}
