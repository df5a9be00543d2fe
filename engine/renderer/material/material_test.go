package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/engine/loader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsMarshal(t *testing.T) {
	m := NewMaterial(
		WithName("gold"),
		WithBaseColor(mgl32.Vec4{1, 0.8, 0.2, 1}),
		WithMetallic(1),
		WithRoughness(1.5),
		WithDoubleSided(true),
	)
	p := m.Params()
	assert.Equal(t, 32, p.Size())
	assert.Equal(t, float32(1), p.Roughness, "roughness is clamped")

	buf := p.Marshal()
	require.Len(t, buf, 32)
	assert.Equal(t, float32(0.8), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, FlagDoubleSided, binary.LittleEndian.Uint32(buf[24:]))
	assert.Zero(t, binary.LittleEndian.Uint32(buf[28:]))
}

func TestLibraryResolve(t *testing.T) {
	lib := FromAsset(&loader.Asset{Materials: []loader.Material{
		{Name: "skin", BaseColor: mgl32.Vec4{1, 0.5, 0.5, 1}, Roughness: 0.6},
		{Name: "cloth", BaseColor: mgl32.Vec4{0, 0, 1, 1}, Roughness: 0.9, DoubleSided: true},
	}})
	assert.Equal(t, []string{"cloth", "skin"}, lib.Names())

	skin, ok := lib.Get("skin")
	require.True(t, ok)
	assert.InDelta(t, 0.6, skin.Roughness(), 1e-6)
	assert.True(t, lib.Resolve("cloth").DoubleSided())

	fallback := lib.Resolve("missing")
	assert.Equal(t, DefaultName, fallback.Name())
	assert.Equal(t, [4]float32{1, 1, 1, 1}, fallback.BaseColor())
	_, ok = lib.Get("missing")
	assert.False(t, ok)

	lib.Add(NewMaterial(WithName(DefaultName), WithBaseColor(mgl32.Vec4{1, 0, 1, 1})))
	assert.Equal(t, [4]float32{1, 0, 1, 1}, lib.Resolve("").BaseColor())
	lib.Add(nil)
	assert.Len(t, lib.Names(), 3)
}
