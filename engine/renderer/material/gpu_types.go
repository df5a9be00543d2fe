package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Flag bits packed into GPUMaterialParams.Flags.
const (
	FlagDoubleSided uint32 = 1 << iota
)

// GPUMaterialParams is the GPU-aligned uniform block a skinned mesh's fragment stage reads its
// surface parameters from.
// Size: 32 bytes (two vec4-sized rows, std140 aligned).
type GPUMaterialParams struct {
	BaseColor [4]float32 // offset 0: RGBA albedo (16 bytes)
	Metallic  float32    // offset 16
	Roughness float32    // offset 20
	Flags     uint32     // offset 24: FlagDoubleSided, ...
	_         uint32     // offset 28: padding
}

// Size returns the size of the GPUMaterialParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterialParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUMaterialParams) Marshal() []byte {
	buf := make([]byte, 32)
	for i, c := range g.BaseColor {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(c))
	}
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Roughness))
	binary.LittleEndian.PutUint32(buf[24:28], g.Flags)
	return buf
}
