package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/loader"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	segmentLength = 0.5
	tubeRadius    = 0.15
)

// tentacle builds a vertical tube skinned to a chain of segments bones, with a "bulge" morph
// target, a "tip" socket on the last bone and a looping "sway" clip.
func tentacle(segments, sides int) (*loader.Asset, error) {
	defs := make([]common.BoneDefinition, segments)
	for i := range defs {
		defs[i] = common.BoneDefinition{
			Name:   fmt.Sprintf("seg_%d", i),
			Parent: common.BoneID(i - 1),
			Bind:   common.TranslationTransform(0, segmentLength, 0),
		}
	}
	defs[0].Parent = common.NoBone
	defs[0].Bind = common.IdentityTransform()

	sf, err := skeleton.NewSkeletonFactory(defs)
	if err != nil {
		return nil, err
	}

	// One ring per bone plus one capping the last segment.
	rings := segments + 1
	n := rings * sides
	positions := make([]mgl32.Vec3, 0, n)
	normals := make([]mgl32.Vec3, 0, n)
	uvs := make([]mgl32.Vec2, 0, n)
	bulge := make([]mgl32.Vec3, 0, n)
	influences := make([]animesh.BoneInfluence, 0, 2*n)
	for r := range rings {
		y := float32(r) * segmentLength
		lower := common.BoneID(min(r, segments-1))
		upper := common.BoneID(min(r+1, segments-1))
		// rings sit on a joint; share them with the next bone by a quarter
		wUpper := float32(0.25)
		if lower == upper {
			wUpper = 0
		}
		for s := range sides {
			angle := 2 * math32.Pi * float32(s) / float32(sides)
			out := mgl32.Vec3{math32.Cos(angle), 0, math32.Sin(angle)}
			positions = append(positions, mgl32.Vec3{out[0] * tubeRadius, y, out[2] * tubeRadius})
			normals = append(normals, out)
			uvs = append(uvs, mgl32.Vec2{float32(s) / float32(sides), float32(r) / float32(segments)})
			bulge = append(bulge, out.Mul(tubeRadius*0.5*math32.Sin(math32.Pi*float32(r)/float32(segments))))
			influences = append(influences,
				animesh.BoneInfluence{Bone: lower, Weight: 1 - wUpper},
				animesh.BoneInfluence{Bone: upper, Weight: wUpper},
			)
		}
	}

	indices := make([]uint32, 0, segments*sides*6)
	for r := range segments {
		for s := range sides {
			a := uint32(r*sides + s)
			b := uint32(r*sides + (s+1)%sides)
			c := a + uint32(sides)
			d := b + uint32(sides)
			indices = append(indices, a, c, b, b, c, d)
		}
	}

	f, err := animesh.NewAnimatedMeshFactory(
		animesh.WithSkeletonFactory(sf),
		animesh.WithPositions(positions),
		animesh.WithNormals(normals),
		animesh.WithTexCoords(uvs),
		animesh.WithInfluences(influences, 2),
		animesh.WithSubmesh(animesh.Submesh{Name: "skin", Indices: indices, Material: "flesh", Visible: true}),
		animesh.WithMorphTarget(animesh.MorphTarget{Name: "bulge", Offsets: bulge}),
		animesh.WithSocket(animesh.SocketFactory{
			Name:   "tip",
			Bone:   common.BoneID(segments - 1),
			Offset: common.TranslationTransform(0, segmentLength, 0),
		}),
	)
	if err != nil {
		return nil, err
	}

	return &loader.Asset{
		Name:      "tentacle",
		Skeleton:  sf,
		Mesh:      f,
		Clips:     []animator.Clip{sway(segments)},
		Materials: []loader.Material{{Name: "flesh", BaseColor: mgl32.Vec4{0.8, 0.4, 0.5, 1}, Metallic: 0, Roughness: 0.7}},
	}, nil
}

// sway swings every segment around Z with a phase lag down the chain.
func sway(segments int) animator.Clip {
	const (
		duration = 2
		keys     = 9
	)
	clip := animator.Clip{Name: "sway", Duration: duration}
	for b := range segments {
		ch := animator.Channel{Bone: common.BoneID(b)}
		for k := range keys {
			t := duration * float32(k) / float32(keys-1)
			angle := 0.25 * math32.Sin(2*math32.Pi*t/duration-float32(b)*0.4)
			ch.Rotations = append(ch.Rotations, animator.QuatKey{
				Time:  t,
				Value: mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1}),
			})
		}
		clip.Channels = append(clip.Channels, ch)
	}
	return clip
}

// tentacleChains makes the upper half of the tentacle one ragdoll chain.
func tentacleChains(segments int) []ragdoll.ChainDefinition {
	def := ragdoll.ChainDefinition{Name: "tail", BodyRadius: tubeRadius, Mass: 1}
	for i := segments / 2; i < segments; i++ {
		name := fmt.Sprintf("seg_%d", i)
		if len(def.Bones) > 0 {
			def.Joints = append(def.Joints, ragdoll.JointDefinition{
				Parent:     def.Bones[len(def.Bones)-1],
				Child:      name,
				SwingLimit: 0.8,
			})
		}
		def.Bones = append(def.Bones, name)
	}
	return []ragdoll.ChainDefinition{def}
}
