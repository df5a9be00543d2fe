package loader

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfImporter turns one parsed glTF document into an Asset. The first skin, if any, becomes the
// skeleton; every triangle primitive of every mesh becomes a submesh of one shared vertex buffer.
type gltfImporter struct {
	parser gltfParser
	doc    *gltfDocument
	logger *slog.Logger
	k      int

	parentOf []int
	skin     *gltfSkin
	// jointOf maps a node index to its position in skin.Joints
	jointOf  map[int]int
	skelf    skeleton.SkeletonFactory
	nodeBone map[int]common.BoneID
}

func newGLTFImporter(parser gltfParser, logger *slog.Logger, influencesPerVertex int) *gltfImporter {
	return &gltfImporter{
		parser:  parser,
		doc:     parser.Document(),
		logger:  logger,
		k:       influencesPerVertex,
		jointOf: make(map[int]int),
	}
}

// Import runs every extraction stage in dependency order.
func (im *gltfImporter) Import(name string) (*Asset, error) {
	if err := im.buildHierarchy(); err != nil {
		return nil, err
	}
	if len(im.doc.Skins) > 0 {
		if len(im.doc.Skins) > 1 {
			im.logger.Warn("glTF asset has several skins, importing the first", "asset", name, "skins", len(im.doc.Skins))
		}
		if err := im.extractSkeleton(&im.doc.Skins[0]); err != nil {
			return nil, err
		}
	}

	materials := im.extractMaterials()
	mesh, err := im.extractMesh(name, materials)
	if err != nil {
		return nil, err
	}
	clips, err := im.extractClips()
	if err != nil {
		return nil, err
	}
	return &Asset{
		Name:      name,
		Skeleton:  im.skelf,
		Mesh:      mesh,
		Clips:     clips,
		Materials: materials,
	}, nil
}

// buildHierarchy records each node's parent and rejects cycles and shared children.
func (im *gltfImporter) buildHierarchy() error {
	nodes := im.doc.Nodes
	im.parentOf = make([]int, len(nodes))
	for i := range im.parentOf {
		im.parentOf[i] = -1
	}
	for i, n := range nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(nodes) || c == i {
				return fmt.Errorf("%w: node %d has invalid child %d", ErrMalformedAsset, i, c)
			}
			if im.parentOf[c] >= 0 {
				return fmt.Errorf("%w: node %d has two parents", ErrMalformedAsset, c)
			}
			im.parentOf[c] = i
		}
	}
	for i := range nodes {
		steps := 0
		for a := im.parentOf[i]; a >= 0; a = im.parentOf[a] {
			if steps++; steps > len(nodes) {
				return fmt.Errorf("%w: node %d is part of a cycle", ErrMalformedAsset, i)
			}
		}
	}
	return nil
}

// nodeLocal returns a node's rigid local transform. Scale is not representable and is dropped.
func (im *gltfImporter) nodeLocal(i int) common.Transform {
	n := im.doc.Nodes[i]
	if n.Matrix != nil {
		return common.TransformFromMat4(mgl32.Mat4(*n.Matrix))
	}
	t := common.IdentityTransform()
	if n.Translation != nil {
		t.Translation = mgl32.Vec3(*n.Translation)
	}
	if n.Rotation != nil {
		t.Rotation = common.QuatFromXYZW(*n.Rotation)
	}
	return t
}

func (im *gltfImporter) extractSkeleton(skin *gltfSkin) error {
	im.skin = skin
	for i, node := range skin.Joints {
		if node < 0 || node >= len(im.doc.Nodes) {
			return fmt.Errorf("%w: skin joint %d references node %d", ErrMalformedAsset, i, node)
		}
		if _, dup := im.jointOf[node]; dup {
			return fmt.Errorf("%w: node %d listed twice in skin", ErrMalformedAsset, node)
		}
		im.jointOf[node] = i
	}

	defs := make([]common.BoneDefinition, len(skin.Joints))
	for i, node := range skin.Joints {
		bind := im.nodeLocal(node)
		parent := common.NoBone
		// fold non-joint ancestors into the bind so bind-world stays in model space
		for a := im.parentOf[node]; a >= 0; a = im.parentOf[a] {
			if j, ok := im.jointOf[a]; ok {
				parent = common.BoneID(j)
				break
			}
			bind = common.Compose(im.nodeLocal(a), bind)
		}
		defs[i] = common.BoneDefinition{
			Name:   common.Coalesce(im.doc.Nodes[node].Name, fmt.Sprintf("joint_%d", i)),
			Parent: parent,
			Bind:   bind,
		}
	}

	var options []skeleton.SkeletonFactoryBuilderOption
	if skin.InverseBindMatrices != nil {
		raw, err := im.parser.ReadFloats(*skin.InverseBindMatrices, gltfAccessorTypeMat4)
		if err != nil {
			return fmt.Errorf("inverse bind matrices: %w", err)
		}
		if len(raw) != 16*len(defs) {
			return fmt.Errorf("%w: %d inverse bind matrices for %d joints", ErrMalformedAsset, len(raw)/16, len(defs))
		}
		inverse := make([]common.Transform, len(defs))
		for i := range inverse {
			var m mgl32.Mat4
			copy(m[:], raw[i*16:(i+1)*16])
			inverse[i] = common.TransformFromMat4(m)
		}
		options = append(options, skeleton.WithInverseBindTransforms(inverse))
	}

	sf, err := skeleton.NewSkeletonFactory(defs, options...)
	if err != nil {
		return err
	}
	im.skelf = sf
	im.nodeBone = make(map[int]common.BoneID, len(skin.Joints))
	remap := sf.Remap()
	for node, j := range im.jointOf {
		im.nodeBone[node] = remap[j]
	}
	return nil
}

func (im *gltfImporter) extractMaterials() []Material {
	out := make([]Material, len(im.doc.Materials))
	for i, m := range im.doc.Materials {
		mat := Material{
			Name:        common.Coalesce(m.Name, fmt.Sprintf("material_%d", i)),
			BaseColor:   mgl32.Vec4{1, 1, 1, 1},
			Metallic:    1,
			Roughness:   1,
			DoubleSided: m.DoubleSided,
		}
		if pbr := m.PbrMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.BaseColor = mgl32.Vec4(*pbr.BaseColorFactor)
			}
			if pbr.MetallicFactor != nil {
				mat.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.Roughness = *pbr.RoughnessFactor
			}
		}
		out[i] = mat
	}
	return out
}

// morphSegment is one primitive's contribution to a morph target.
type morphSegment struct {
	base    int
	offsets []mgl32.Vec3
}

// meshBuild accumulates primitives into shared vertex buffers. Optional attributes are padded with
// zeros for primitives that lack them and dropped at the end unless every primitive had them.
type meshBuild struct {
	primitives int
	seen       map[string]int

	positions  []mgl32.Vec3
	normals    []mgl32.Vec3
	tangents   []mgl32.Vec3
	binormals  []mgl32.Vec3
	texCoords  []mgl32.Vec2
	colors     []mgl32.Vec4
	influences []animesh.BoneInfluence

	morphOrder []string
	morphs     map[string][]morphSegment

	submeshes []animesh.Submesh
	names     map[string]int
}

func (im *gltfImporter) extractMesh(asset string, materials []Material) (animesh.AnimatedMeshFactory, error) {
	b := &meshBuild{
		seen:   make(map[string]int),
		morphs: make(map[string][]morphSegment),
		names:  make(map[string]int),
	}
	for mi, mesh := range im.doc.Meshes {
		meshName := common.Coalesce(mesh.Name, fmt.Sprintf("mesh_%d", mi))
		for pi, prim := range mesh.Primitives {
			if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
				im.logger.Warn("skipping non-triangle primitive", "asset", asset, "mesh", meshName, "primitive", pi, "mode", *prim.Mode)
				continue
			}
			name := meshName
			if len(mesh.Primitives) > 1 {
				name = fmt.Sprintf("%s_%d", meshName, pi)
			}
			if err := im.addPrimitive(b, name, mesh, prim, materials); err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", meshName, pi, err)
			}
		}
	}

	options := []animesh.AnimatedMeshFactoryBuilderOption{animesh.WithPositions(b.positions)}
	keep := func(attr string) bool {
		if n := b.seen[attr]; n > 0 && n < b.primitives {
			im.logger.Warn("dropping attribute missing from some primitives", "asset", asset, "attribute", attr)
			return false
		}
		return b.primitives > 0 && b.seen[attr] == b.primitives
	}
	if keep("NORMAL") {
		options = append(options, animesh.WithNormals(b.normals))
		if keep("TANGENT") {
			options = append(options, animesh.WithTangents(b.tangents, b.binormals))
		}
	}
	if keep("TEXCOORD_0") {
		options = append(options, animesh.WithTexCoords(b.texCoords))
	}
	if keep("COLOR_0") {
		options = append(options, animesh.WithColors(b.colors))
	}
	if im.skelf != nil {
		options = append(options, animesh.WithSkeletonFactory(im.skelf))
		// primitives without weights keep zero slots and stay in bind pose
		if b.seen["JOINTS_0"] > 0 {
			options = append(options, animesh.WithInfluences(b.influences, im.k))
		}
	}
	for _, name := range b.morphOrder {
		offsets := make([]mgl32.Vec3, len(b.positions))
		for _, seg := range b.morphs[name] {
			copy(offsets[seg.base:], seg.offsets)
		}
		options = append(options, animesh.WithMorphTarget(animesh.MorphTarget{Name: name, Offsets: offsets}))
	}
	for _, s := range b.submeshes {
		options = append(options, animesh.WithSubmesh(s))
	}
	for _, s := range im.sockets() {
		options = append(options, animesh.WithSocket(s))
	}

	f, err := animesh.NewAnimatedMeshFactory(options...)
	if err != nil {
		return nil, err
	}
	f.NormalizeInfluences()
	f.Invalidate()
	return f, nil
}

func (im *gltfImporter) addPrimitive(b *meshBuild, name string, mesh gltfMesh, prim gltfPrimitive, materials []Material) error {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return fmt.Errorf("%w: primitive has no POSITION", ErrMalformedAsset)
	}
	raw, err := im.parser.ReadFloats(posIdx, gltfAccessorTypeVec3)
	if err != nil {
		return err
	}
	positions := toVec3(raw)
	n := len(positions)
	base := len(b.positions)
	b.positions = append(b.positions, positions...)
	b.primitives++

	normals := make([]mgl32.Vec3, n)
	if err := im.optional(b, prim, "NORMAL", gltfAccessorTypeVec3, n, func(v []float32) { normals = toVec3(v) }); err != nil {
		return err
	}
	b.normals = append(b.normals, normals...)

	tangents, binormals := make([]mgl32.Vec3, n), make([]mgl32.Vec3, n)
	if err := im.optional(b, prim, "TANGENT", gltfAccessorTypeVec4, n, func(v []float32) {
		for i := range n {
			t := mgl32.Vec3{v[i*4], v[i*4+1], v[i*4+2]}
			tangents[i] = t
			// w carries the handedness of the bitangent
			binormals[i] = normals[i].Cross(t).Mul(v[i*4+3])
		}
	}); err != nil {
		return err
	}
	b.tangents = append(b.tangents, tangents...)
	b.binormals = append(b.binormals, binormals...)

	uvs := make([]mgl32.Vec2, n)
	if err := im.optional(b, prim, "TEXCOORD_0", gltfAccessorTypeVec2, n, func(v []float32) {
		for i := range n {
			uvs[i] = mgl32.Vec2{v[i*2], v[i*2+1]}
		}
	}); err != nil {
		return err
	}
	b.texCoords = append(b.texCoords, uvs...)

	colors := make([]mgl32.Vec4, n)
	if err := im.readColors(b, prim, n, colors); err != nil {
		return err
	}
	b.colors = append(b.colors, colors...)

	influences := make([]animesh.BoneInfluence, n*im.k)
	if im.skelf != nil {
		if err := im.readInfluences(b, prim, n, influences); err != nil {
			return err
		}
	}
	b.influences = append(b.influences, influences...)

	for t, target := range prim.Targets {
		idx, ok := target["POSITION"]
		if !ok {
			continue
		}
		raw, err := im.parser.ReadFloats(idx, gltfAccessorTypeVec3)
		if err != nil {
			return fmt.Errorf("morph target %d: %w", t, err)
		}
		if len(raw) != n*3 {
			return fmt.Errorf("%w: morph target %d has %d vertices, want %d", ErrMalformedAsset, t, len(raw)/3, n)
		}
		targetName := fmt.Sprintf("%s_target_%d", name, t)
		if t < len(mesh.Extras.TargetNames) && mesh.Extras.TargetNames[t] != "" {
			targetName = mesh.Extras.TargetNames[t]
		}
		if _, exists := b.morphs[targetName]; !exists {
			b.morphOrder = append(b.morphOrder, targetName)
		}
		b.morphs[targetName] = append(b.morphs[targetName], morphSegment{base: base, offsets: toVec3(raw)})
	}

	indices := make([]uint32, 0, n)
	if prim.Indices != nil {
		local, err := im.parser.ReadUints(*prim.Indices, gltfAccessorTypeScalar)
		if err != nil {
			return fmt.Errorf("indices: %w", err)
		}
		for _, i := range local {
			indices = append(indices, i+uint32(base))
		}
	} else {
		for i := range n {
			indices = append(indices, uint32(base+i))
		}
	}

	if c := b.names[name]; c > 0 {
		name = fmt.Sprintf("%s_%d", name, c)
	}
	b.names[name]++
	sub := animesh.Submesh{Name: name, Indices: indices, Visible: true}
	if prim.Material != nil {
		if *prim.Material < 0 || *prim.Material >= len(materials) {
			return fmt.Errorf("%w: material %d out of range", ErrMalformedAsset, *prim.Material)
		}
		sub.Material = materials[*prim.Material].Name
	}
	b.submeshes = append(b.submeshes, sub)
	return nil
}

// optional reads an attribute if the primitive has it and counts it towards the keep decision.
func (im *gltfImporter) optional(b *meshBuild, prim gltfPrimitive, attr, accessorType string, n int, apply func([]float32)) error {
	idx, ok := prim.Attributes[attr]
	if !ok {
		return nil
	}
	v, err := im.parser.ReadFloats(idx, accessorType)
	if err != nil {
		return fmt.Errorf("%s: %w", attr, err)
	}
	if len(v) != n*componentCount(accessorType) {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrMalformedAsset, attr, len(v)/componentCount(accessorType), n)
	}
	apply(v)
	b.seen[attr]++
	return nil
}

// readColors accepts COLOR_0 as VEC3 or VEC4; RGB colors get alpha 1.
func (im *gltfImporter) readColors(b *meshBuild, prim gltfPrimitive, n int, colors []mgl32.Vec4) error {
	idx, ok := prim.Attributes["COLOR_0"]
	if !ok {
		return nil
	}
	if idx < 0 || idx >= len(im.doc.Accessors) {
		return fmt.Errorf("%w: COLOR_0 accessor %d out of range", ErrMalformedAsset, idx)
	}
	if im.doc.Accessors[idx].Type == gltfAccessorTypeVec3 {
		return im.optional(b, prim, "COLOR_0", gltfAccessorTypeVec3, n, func(v []float32) {
			for i := range n {
				colors[i] = mgl32.Vec4{v[i*3], v[i*3+1], v[i*3+2], 1}
			}
		})
	}
	return im.optional(b, prim, "COLOR_0", gltfAccessorTypeVec4, n, func(v []float32) {
		for i := range n {
			colors[i] = mgl32.Vec4{v[i*4], v[i*4+1], v[i*4+2], v[i*4+3]}
		}
	})
}

// readInfluences gathers every JOINTS_n/WEIGHTS_n set and keeps the K heaviest pairs per vertex.
func (im *gltfImporter) readInfluences(b *meshBuild, prim gltfPrimitive, n int, out []animesh.BoneInfluence) error {
	var joints [][]uint32
	var weights [][]float32
	for set := 0; ; set++ {
		ji, jok := prim.Attributes[fmt.Sprintf("JOINTS_%d", set)]
		wi, wok := prim.Attributes[fmt.Sprintf("WEIGHTS_%d", set)]
		if !jok || !wok {
			break
		}
		j, err := im.parser.ReadUints(ji, gltfAccessorTypeVec4)
		if err != nil {
			return fmt.Errorf("JOINTS_%d: %w", set, err)
		}
		w, err := im.parser.ReadFloats(wi, gltfAccessorTypeVec4)
		if err != nil {
			return fmt.Errorf("WEIGHTS_%d: %w", set, err)
		}
		if len(j) != n*4 || len(w) != n*4 {
			return fmt.Errorf("%w: influence set %d does not cover %d vertices", ErrMalformedAsset, set, n)
		}
		joints = append(joints, j)
		weights = append(weights, w)
	}
	if len(joints) == 0 {
		return nil
	}
	b.seen["JOINTS_0"]++

	remap := im.skelf.Remap()
	pairs := make([]animesh.BoneInfluence, 0, 4*len(joints))
	for v := range n {
		pairs = pairs[:0]
		for s := range joints {
			for c := range 4 {
				w := weights[s][v*4+c]
				if w <= 0 {
					continue
				}
				j := int(joints[s][v*4+c])
				if j >= len(remap) {
					return fmt.Errorf("%w: vertex %d references joint %d of %d", ErrMalformedAsset, v, j, len(remap))
				}
				pairs = append(pairs, animesh.BoneInfluence{Bone: remap[j], Weight: w})
			}
		}
		slices.SortStableFunc(pairs, func(a, b animesh.BoneInfluence) int {
			return cmp.Compare(b.Weight, a.Weight)
		})
		copy(out[v*im.k:(v+1)*im.k], pairs)
	}
	return nil
}

// sockets turns empty nodes parented directly to a joint into sockets on that bone.
func (im *gltfImporter) sockets() []animesh.SocketFactory {
	if im.skelf == nil {
		return nil
	}
	var out []animesh.SocketFactory
	seen := make(map[string]bool)
	for i, n := range im.doc.Nodes {
		if _, isJoint := im.jointOf[i]; isJoint || n.Mesh != nil || len(n.Children) > 0 {
			continue
		}
		bone, ok := im.nodeBone[im.parentOf[i]]
		if !ok {
			continue
		}
		name := common.Coalesce(n.Name, fmt.Sprintf("socket_%d", i))
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, animesh.SocketFactory{Name: name, Bone: bone, Offset: im.nodeLocal(i)})
	}
	return out
}

func (im *gltfImporter) extractClips() ([]animator.Clip, error) {
	if im.skelf == nil {
		return nil, nil
	}
	clips := make([]animator.Clip, 0, len(im.doc.Animations))
	for ai, anim := range im.doc.Animations {
		clip := animator.Clip{Name: common.Coalesce(anim.Name, fmt.Sprintf("animation_%d", ai))}
		channels := make(map[common.BoneID]*animator.Channel)
		for ci, ch := range anim.Channels {
			if ch.Target.Node == nil {
				continue
			}
			bone, ok := im.nodeBone[*ch.Target.Node]
			if !ok {
				continue
			}
			if ch.Target.Path != gltfAnimPathTranslation && ch.Target.Path != gltfAnimPathRotation {
				continue
			}
			if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
				return nil, fmt.Errorf("%w: animation %q channel %d sampler %d", ErrMalformedAsset, clip.Name, ci, ch.Sampler)
			}
			s := anim.Samplers[ch.Sampler]
			times, err := im.parser.ReadFloats(s.Input, gltfAccessorTypeScalar)
			if err != nil {
				return nil, fmt.Errorf("animation %q channel %d times: %w", clip.Name, ci, err)
			}
			if len(times) > 0 && times[len(times)-1] > clip.Duration {
				clip.Duration = times[len(times)-1]
			}

			out, ok := channels[bone]
			if !ok {
				out = &animator.Channel{Bone: bone}
				channels[bone] = out
			}
			if ch.Target.Path == gltfAnimPathTranslation {
				values, err := im.sampleValues(s, len(times), gltfAccessorTypeVec3)
				if err != nil {
					return nil, fmt.Errorf("animation %q channel %d: %w", clip.Name, ci, err)
				}
				out.Translations = make([]animator.Vec3Key, len(times))
				for k, t := range times {
					out.Translations[k] = animator.Vec3Key{Time: t, Value: mgl32.Vec3{values[k*3], values[k*3+1], values[k*3+2]}}
				}
			} else {
				values, err := im.sampleValues(s, len(times), gltfAccessorTypeVec4)
				if err != nil {
					return nil, fmt.Errorf("animation %q channel %d: %w", clip.Name, ci, err)
				}
				out.Rotations = make([]animator.QuatKey, len(times))
				for k, t := range times {
					q := [4]float32{values[k*4], values[k*4+1], values[k*4+2], values[k*4+3]}
					out.Rotations[k] = animator.QuatKey{Time: t, Value: common.QuatFromXYZW(q)}
				}
			}
		}
		for _, ch := range channels {
			clip.Channels = append(clip.Channels, *ch)
		}
		slices.SortFunc(clip.Channels, func(a, b animator.Channel) int { return cmp.Compare(a.Bone, b.Bone) })
		if err := clip.Validate(im.skelf.BoneCount()); err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

// sampleValues reads a sampler's output as keys×components floats. Cubic spline outputs store
// in-tangent, value and out-tangent per key; only the values are kept and playback is linear.
func (im *gltfImporter) sampleValues(s gltfAnimSampler, keys int, accessorType string) ([]float32, error) {
	raw, err := im.parser.ReadFloats(s.Output, accessorType)
	if err != nil {
		return nil, err
	}
	comps := componentCount(accessorType)
	if s.Interpolation == gltfInterpolationCubicSpline {
		if len(raw) != keys*comps*3 {
			return nil, fmt.Errorf("%w: cubic spline output has %d values for %d keys", ErrMalformedAsset, len(raw), keys)
		}
		values := make([]float32, 0, keys*comps)
		for k := range keys {
			values = append(values, raw[(k*3+1)*comps:(k*3+2)*comps]...)
		}
		return values, nil
	}
	if len(raw) != keys*comps {
		return nil, fmt.Errorf("%w: sampler output has %d values for %d keys", ErrMalformedAsset, len(raw), keys)
	}
	return raw, nil
}

func toVec3(v []float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(v)/3)
	for i := range out {
		out[i] = mgl32.Vec3{v[i*3], v[i*3+1], v[i*3+2]}
	}
	return out
}
