package model

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-animesh/common"
)

// RenderMesh is one visible submesh flattened for a renderer: only the vertices the submesh
// references, re-indexed from zero, already skinned and morphed.
type RenderMesh struct {
	// Name is the submesh name.
	Name string

	// Submesh is the submesh index within the factory.
	Submesh int

	// Material is the instance's effective material for the submesh.
	Material string

	Vertices []GPUVertex
	Indices  []uint32

	// Bounds is the skinned bounding box of Vertices.
	Bounds common.AABB

	// Revision changes whenever the vertex data may have changed. Uploaders compare it to skip
	// redundant buffer writes.
	Revision uint64
}

// VertexBytes packs Vertices for upload.
//
// Returns:
//   - []byte: len(Vertices) × 64 bytes, little-endian
func (m *RenderMesh) VertexBytes() []byte {
	buf := make([]byte, 0, len(m.Vertices)*64)
	for i := range m.Vertices {
		buf = m.Vertices[i].appendTo(buf)
	}
	return buf
}

// IndexBytes packs Indices as little-endian uint32.
//
// Returns:
//   - []byte: len(Indices) × 4 bytes
func (m *RenderMesh) IndexBytes() []byte {
	buf := make([]byte, 0, len(m.Indices)*4)
	for _, idx := range m.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return buf
}
