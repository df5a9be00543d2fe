package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-animesh/common"
)

// GPUVertex is the GPU-aligned representation of a single CPU-skinned vertex.
// Size: 64 bytes (std430 aligned, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
	Color    [4]float32 // offset 32
	Tangent  [4]float32 // offset 48: xyz tangent, w bitangent handedness
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the vertex little-endian for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	return g.appendTo(make([]byte, 0, 64))
}

func (g *GPUVertex) appendTo(buf []byte) []byte {
	buf = appendFloats(buf, g.Position[:]...)
	buf = appendFloats(buf, g.Normal[:]...)
	buf = appendFloats(buf, g.TexCoord[:]...)
	buf = appendFloats(buf, g.Color[:]...)
	return appendFloats(buf, g.Tangent[:]...)
}

// GPUSkinnedVertex is the bind-pose vertex layout for renderers that skin on the GPU from the
// skeleton palette. It extends GPUVertex with the first four influences of the vertex.
// Size: 96 bytes (64 base vertex + 32 skinning data).
type GPUSkinnedVertex struct {
	GPUVertex              // offset  0
	BoneIndices [4]uint32  // offset 64
	BoneWeights [4]float32 // offset 80
}

// Size returns the size of the GPUSkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the vertex little-endian for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPUSkinnedVertex) Marshal() []byte {
	buf := g.GPUVertex.appendTo(make([]byte, 0, 96))
	for _, idx := range g.BoneIndices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return appendFloats(buf, g.BoneWeights[:]...)
}

// GPUModelData is a per-object model-to-world matrix.
// Size: 64 bytes (mat4x4<f32>).
type GPUModelData struct {
	Model [16]float32
}

// NewModelData packs a rigid transform as a column-major model matrix.
//
// Parameters:
//   - t: the object's world transform
//
// Returns:
//   - GPUModelData: the packed matrix
func NewModelData(t common.Transform) GPUModelData {
	return GPUModelData{Model: [16]float32(t.Mat4())}
}

// Size returns the size of the GPUModelData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUModelData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the matrix little-endian for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUModelData) Marshal() []byte {
	return appendFloats(make([]byte, 0, 64), g.Model[:]...)
}

func appendFloats(buf []byte, values ...float32) []byte {
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}
