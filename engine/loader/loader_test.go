package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferBuilder packs accessors into a single 4-byte aligned buffer.
type bufferBuilder struct {
	data      bytes.Buffer
	views     []map[string]any
	accessors []map[string]any
}

func (b *bufferBuilder) add(t *testing.T, componentType int, accessorType string, count int, values any) int {
	t.Helper()
	for b.data.Len()%4 != 0 {
		b.data.WriteByte(0)
	}
	off := b.data.Len()
	require.NoError(t, binary.Write(&b.data, binary.LittleEndian, values))
	b.views = append(b.views, map[string]any{"buffer": 0, "byteOffset": off, "byteLength": b.data.Len() - off})
	b.accessors = append(b.accessors, map[string]any{
		"bufferView":    len(b.views) - 1,
		"componentType": componentType,
		"count":         count,
		"type":          accessorType,
	})
	return len(b.accessors) - 1
}

// riggedDocument builds a two-joint rig (hips -> spine) with one skinned triangle, a named morph
// target, a socket node under the spine and a one second rotation clip. The buffer is returned
// separately so callers can embed it as a data URI or a GLB chunk.
func riggedDocument(t *testing.T) (map[string]any, []byte) {
	t.Helper()
	b := &bufferBuilder{}
	pos := b.add(t, gltfComponentTypeFloat, "VEC3", 3, []float32{0, 1, 0, 1, 1, 0, 0, 2, 0})
	nrm := b.add(t, gltfComponentTypeFloat, "VEC3", 3, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1})
	tan := b.add(t, gltfComponentTypeFloat, "VEC4", 3, []float32{1, 0, 0, -1, 1, 0, 0, 1, 1, 0, 0, 1})
	uv := b.add(t, gltfComponentTypeFloat, "VEC2", 3, []float32{0, 0, 1, 0, 0, 1})
	col := b.add(t, gltfComponentTypeFloat, "VEC3", 3, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1})
	jnt := b.add(t, gltfComponentTypeUnsignedByte, "VEC4", 3, []uint8{0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0})
	wgt := b.add(t, gltfComponentTypeFloat, "VEC4", 3, []float32{0.25, 0.75, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0})
	idx := b.add(t, gltfComponentTypeUnsignedShort, "SCALAR", 3, []uint16{0, 1, 2})
	smile := b.add(t, gltfComponentTypeFloat, "VEC3", 3, []float32{0, 0.1, 0, 0, 0, 0, 0, 0, 0})
	ibm := b.add(t, gltfComponentTypeFloat, "MAT4", 2, []float32{
		1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, -1, 0, 1,
		1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, -1.5, 0, 1,
	})
	times := b.add(t, gltfComponentTypeFloat, "SCALAR", 2, []float32{0, 1})
	s45 := float32(0.70710677)
	rots := b.add(t, gltfComponentTypeFloat, "VEC4", 2, []float32{0, 0, 0, 1, 0, 0, s45, s45})

	doc := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"nodes": []map[string]any{
			{"name": "hips", "translation": []float32{0, 1, 0}, "children": []int{1}},
			{"name": "spine", "translation": []float32{0, 0.5, 0}, "children": []int{3}},
			{"name": "body", "mesh": 0, "skin": 0},
			{"name": "tip", "translation": []float32{0, 0.1, 0}},
		},
		"skins": []map[string]any{{"joints": []int{0, 1}, "inverseBindMatrices": ibm}},
		"meshes": []map[string]any{{
			"name": "body",
			"primitives": []map[string]any{{
				"attributes": map[string]int{
					"POSITION": pos, "NORMAL": nrm, "TANGENT": tan, "TEXCOORD_0": uv,
					"COLOR_0": col, "JOINTS_0": jnt, "WEIGHTS_0": wgt,
				},
				"indices":  idx,
				"material": 0,
				"targets":  []map[string]int{{"POSITION": smile}},
			}},
			"extras": map[string]any{"targetNames": []string{"smile"}},
		}},
		"materials": []map[string]any{{
			"name":                 "skin",
			"pbrMetallicRoughness": map[string]any{"baseColorFactor": []float32{1, 0, 0, 1}, "metallicFactor": 0},
		}},
		"animations": []map[string]any{{
			"name": "wave",
			"channels": []map[string]any{
				{"sampler": 0, "target": map[string]any{"node": 1, "path": "rotation"}},
				{"sampler": 1, "target": map[string]any{"node": 0, "path": "scale"}},
			},
			"samplers": []map[string]any{{"input": times, "output": rots}, {"input": times, "output": pos}},
		}},
		"bufferViews": b.views,
		"accessors":   b.accessors,
	}
	return doc, b.data.Bytes()
}

func embeddedGLTF(t *testing.T) []byte {
	t.Helper()
	doc, bin := riggedDocument(t)
	doc["buffers"] = []map[string]any{{
		"byteLength": len(bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin),
	}}
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func glbContainer(t *testing.T) []byte {
	t.Helper()
	doc, bin := riggedDocument(t)
	doc["buffers"] = []map[string]any{{"byteLength": len(bin)}}
	js, err := json.Marshal(doc)
	require.NoError(t, err)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var out bytes.Buffer
	total := 12 + 8 + len(js) + 8 + len(bin)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: 2, Length: uint32(total)}))
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON}))
	out.Write(js)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN}))
	out.Write(bin)
	return out.Bytes()
}

func assertRig(t *testing.T, asset *Asset) {
	t.Helper()
	sf := asset.Skeleton
	require.NotNil(t, sf)
	require.Equal(t, 2, sf.BoneCount())
	hips, ok := sf.BoneIndex("hips")
	require.True(t, ok)
	spine, ok := sf.BoneIndex("spine")
	require.True(t, ok)
	assert.Equal(t, hips, sf.Parent(spine))
	assert.True(t, sf.BindWorld(spine).ApproxEqual(common.TranslationTransform(0, 1.5, 0), 1e-6))
	assert.True(t, sf.InverseBind(spine).ApproxEqual(common.TranslationTransform(0, -1.5, 0), 1e-6))

	mesh := asset.Mesh
	require.Equal(t, 3, mesh.VertexCount())
	assert.Len(t, mesh.Normals(), 3)
	require.Len(t, mesh.Binormals(), 3)
	assert.True(t, mesh.Binormals()[0].ApproxEqual(mgl32.Vec3{0, -1, 0}), "negative w flips the bitangent")
	assert.True(t, mesh.Binormals()[1].ApproxEqual(mgl32.Vec3{0, 1, 0}))
	assert.Equal(t, mgl32.Vec2{1, 0}, mesh.TexCoords()[1])
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, mesh.Colors()[1], "RGB colors get opaque alpha")

	k := mesh.InfluencesPerVertex()
	first := mesh.Influences()[:k]
	assert.Equal(t, spine, first[0].Bone, "heaviest influence first")
	assert.InDelta(t, 0.75, first[0].Weight, 1e-6)
	assert.Equal(t, hips, first[1].Bone)
	assert.Equal(t, spine, mesh.MaxInfluenceBone())

	require.Len(t, mesh.Submeshes(), 1)
	sub := mesh.Submeshes()[0]
	assert.Equal(t, "body", sub.Name)
	assert.Equal(t, "skin", sub.Material)
	assert.Equal(t, []uint32{0, 1, 2}, sub.Indices)
	assert.True(t, sub.Visible)

	smile, ok := mesh.MorphTargetIndex("smile")
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{0, 0.1, 0}, mesh.MorphTargets()[smile].Offsets[0])

	require.Len(t, mesh.SocketFactories(), 1)
	tip := mesh.SocketFactories()[0]
	assert.Equal(t, "tip", tip.Name)
	assert.Equal(t, spine, tip.Bone)
	assert.Equal(t, mgl32.Vec3{0, 0.1, 0}, tip.Offset.Translation)

	require.Len(t, asset.Clips, 1)
	clip := asset.Clips[0]
	assert.Equal(t, "wave", clip.Name)
	assert.Equal(t, float32(1), clip.Duration)
	require.Len(t, clip.Channels, 1, "scale channels are not imported")
	assert.Equal(t, spine, clip.Channels[0].Bone)
	assert.Len(t, clip.Channels[0].Rotations, 2)

	mat, ok := asset.Material("skin")
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, mat.BaseColor)
	assert.Zero(t, mat.Metallic)
	assert.Equal(t, float32(1), mat.Roughness)
}

func TestLoadReaderImportsRig(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	asset, err := l.LoadReader("rig", bytes.NewReader(embeddedGLTF(t)), false)
	require.NoError(t, err)
	assertRig(t, asset)

	again, err := l.LoadReader("rig", iotest.ErrReader(errors.New("not read")), false)
	require.NoError(t, err, "cached assets skip the reader")
	assert.Same(t, asset, again)
	assert.Same(t, asset, l.Get("rig"))
	assert.Len(t, l.Assets(), 1)

	l.Evict("rig")
	assert.Nil(t, l.Get("rig"))
}

func TestLoadGLBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.glb")
	require.NoError(t, os.WriteFile(path, glbContainer(t), 0o644))

	l := NewLoader(BackendTypeGLTF)
	asset, err := l.Load(path)
	require.NoError(t, err)
	assertRig(t, asset)

	cached, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, asset, cached)
}

func TestInfluenceLimit(t *testing.T) {
	l := NewLoader(BackendTypeGLTF, WithInfluencesPerVertex(1))
	asset, err := l.LoadReader("rig", bytes.NewReader(embeddedGLTF(t)), false)
	require.NoError(t, err)

	mesh := asset.Mesh
	require.Equal(t, 1, mesh.InfluencesPerVertex())
	spine, _ := asset.Skeleton.BoneIndex("spine")
	assert.Equal(t, spine, mesh.Influences()[0].Bone)
	assert.InDelta(t, 1, mesh.Influences()[0].Weight, 1e-6, "kept weights are renormalized")
	assert.False(t, mesh.Pending(), "imported factories are ready to instance")
}

func TestLoadRejectsBadInput(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	_, err := l.Load("model.obj")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.gltf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cases := map[string]struct {
		doc  string
		want error
	}{
		"old version":   {`{"asset":{"version":"1.0"}}`, ErrUnsupportedFormat},
		"bad json":      {`{"asset":`, ErrMalformedAsset},
		"bad data uri":  {`{"asset":{"version":"2.0"},"buffers":[{"byteLength":4,"uri":"data:application/octet-stream;base64,***"}]}`, ErrMalformedAsset},
		"text data uri": {`{"asset":{"version":"2.0"},"buffers":[{"byteLength":4,"uri":"data:text/plain,abcd"}]}`, ErrUnsupportedFormat},
		"short buffer":  {`{"asset":{"version":"2.0"},"buffers":[{"byteLength":8,"uri":"data:application/octet-stream;base64,AAAA"}]}`, ErrMalformedAsset},
		"node cycle":    {`{"asset":{"version":"2.0"},"nodes":[{"children":[1]},{"children":[0]}]}`, ErrMalformedAsset},
		"no position":   {`{"asset":{"version":"2.0"},"meshes":[{"primitives":[{"attributes":{}}]}]}`, ErrMalformedAsset},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.LoadReader(name, bytes.NewReader([]byte(tc.doc)), false)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, l.Get(name), "failed imports are not cached")
		})
	}
}

func TestStaticMeshHasNoSkeleton(t *testing.T) {
	doc, bin := riggedDocument(t)
	delete(doc, "skins")
	delete(doc, "animations")
	doc["buffers"] = []map[string]any{{
		"byteLength": len(bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin),
	}}
	js, err := json.Marshal(doc)
	require.NoError(t, err)

	asset, err := NewLoader(BackendTypeGLTF).LoadReader("static", bytes.NewReader(js), false)
	require.NoError(t, err)
	assert.Nil(t, asset.Skeleton)
	assert.Nil(t, asset.Mesh.Influences())
	assert.Empty(t, asset.Clips)
	assert.Empty(t, asset.Mesh.SocketFactories())
	assert.Equal(t, 3, asset.Mesh.VertexCount())
}
