package animesh

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// stamp records the inputs an output buffer was computed from.
type stamp struct {
	skeleton, factory, morph uint64
	skinning                 bool
	valid                    bool
}

// submeshState holds an instance's per-submesh overrides.
type submeshState struct {
	visible     bool
	material    string
	hasMaterial bool
}

// animatedMeshInstance is the implementation of the AnimatedMeshInstance interface.
type animatedMeshInstance struct {
	name   string
	logger *slog.Logger

	factory AnimatedMeshFactory
	skel    skeleton.Skeleton

	factoryVersion uint64

	weights      []float32
	morphVersion uint64

	palette      []mgl32.Mat4
	paletteStamp uint64
	paletteValid bool

	// working is the morph destination storage; current is what the skinning engine reads, which is
	// either working or the factory's base positions.
	working, current []mgl32.Vec3
	morphStamp       stamp

	out                                  SkinOutput
	positionStamp, normalStamp, tanStamp stamp

	skinningEnabled bool
	lastMode        SkinningMode
	skinCount       uint64

	submeshes []submeshState

	sockets      []*socket
	socketByName map[string]*socket

	lastErr error
}

// AnimatedMeshInstance is a live instance of an AnimatedMeshFactory bound to one Skeleton. It owns
// the skinned output buffers, morph weights, submesh overrides and sockets.
//
// Each output buffer tracks the skeleton version, factory version and morph weights it was computed
// from, and is only recomputed when consumed while stale. Recomputation fully overwrites outputs, so
// repeated updates with unchanged inputs produce identical bytes.
//
// An instance is not safe for concurrent use. Per-frame failures never propagate: the instance keeps
// its last good buffers, records the failure in LastError and logs it.
type AnimatedMeshInstance interface {
	// Name returns the instance's diagnostic name.
	Name() string

	// Factory returns the shared template.
	//
	// Returns:
	//   - AnimatedMeshFactory: the factory this instance draws from
	Factory() AnimatedMeshFactory

	// Skeleton returns the live skeleton driving this instance.
	//
	// Returns:
	//   - skeleton.Skeleton: the bound skeleton
	Skeleton() skeleton.Skeleton

	// VertexCount returns N, the length of every skinned buffer.
	VertexCount() int

	// MorphWeight returns a target's weight, or 0 for an invalid index.
	//
	// Parameters:
	//   - index: the morph target index
	//
	// Returns:
	//   - float32: the weight
	MorphWeight(index int) float32

	// MorphWeights returns a copy of all morph weights, parallel to the factory's targets.
	//
	// Returns:
	//   - []float32: the weights
	MorphWeights() []float32

	// SetMorphWeight sets a target's weight by index.
	//
	// Parameters:
	//   - index: the morph target index
	//   - weight: the new weight
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for an invalid index
	SetMorphWeight(index int, weight float32) error

	// SetMorphWeightByName sets a target's weight by name.
	//
	// Parameters:
	//   - name: the morph target name
	//   - weight: the new weight
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for an unknown name
	SetMorphWeightByName(name string, weight float32) error

	// SetSkinningEnabled toggles skinning. While disabled the outputs mirror the morphed base
	// geometry (the static pose).
	//
	// Parameters:
	//   - enabled: whether bones deform the mesh
	SetSkinningEnabled(enabled bool)

	// Update brings the requested outputs up to date, selecting the cheapest skinning mode that
	// covers them, and then updates every socket. Outputs whose inputs have not changed since their
	// last computation are skipped.
	//
	// Parameters:
	//   - want: the outputs consumed this frame
	Update(want SkinOutputs)

	// MorphedPositions returns the morph working buffer (the factory's base positions when no
	// target is active).
	//
	// Returns:
	//   - []mgl32.Vec3: N working positions
	MorphedPositions() []mgl32.Vec3

	// Positions returns the skinned positions, recomputing them first if stale.
	//
	// Returns:
	//   - []mgl32.Vec3: N skinned positions
	Positions() []mgl32.Vec3

	// Normals returns the skinned normals, recomputing them first if stale.
	//
	// Returns:
	//   - []mgl32.Vec3: N skinned normals
	//   - bool: false when the factory has no normals
	Normals() ([]mgl32.Vec3, bool)

	// Tangents returns the skinned tangents, recomputing them first if stale.
	//
	// Returns:
	//   - []mgl32.Vec3: N skinned tangents
	//   - bool: false when the factory has no tangent frame
	Tangents() ([]mgl32.Vec3, bool)

	// Binormals returns the skinned binormals, recomputing them first if stale.
	//
	// Returns:
	//   - []mgl32.Vec3: N skinned binormals
	//   - bool: false when the factory has no tangent frame
	Binormals() ([]mgl32.Vec3, bool)

	// LastMode returns the skinning mode used by the most recent recomputation.
	LastMode() SkinningMode

	// SkinCount returns how many times skinning actually ran; skipped updates do not count.
	SkinCount() uint64

	// SubmeshVisible returns a submesh's effective visibility.
	//
	// Parameters:
	//   - index: the submesh index
	//
	// Returns:
	//   - bool: the override if set, else the factory default; false for an invalid index
	SubmeshVisible(index int) bool

	// SetSubmeshVisible overrides a submesh's visibility for this instance.
	//
	// Parameters:
	//   - index: the submesh index
	//   - visible: the new visibility
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for an invalid index
	SetSubmeshVisible(index int, visible bool) error

	// SubmeshMaterial returns a submesh's effective material.
	//
	// Parameters:
	//   - index: the submesh index
	//
	// Returns:
	//   - string: the override if set, else the factory's material; empty for an invalid index
	SubmeshMaterial(index int) string

	// SetSubmeshMaterial overrides a submesh's material for this instance.
	//
	// Parameters:
	//   - index: the submesh index
	//   - material: the material reference
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for an invalid index
	SetSubmeshMaterial(index int, material string) error

	// Sockets returns the live sockets in factory declaration order.
	//
	// Returns:
	//   - []Socket: the sockets
	Sockets() []Socket

	// Socket looks a socket up by name.
	//
	// Parameters:
	//   - name: the socket name
	//
	// Returns:
	//   - Socket: the socket, or nil
	//   - bool: true if found
	Socket(name string) (Socket, bool)

	// UpdateSockets refreshes every socket whose bone may have moved.
	UpdateSockets()

	// LastError returns the most recent per-frame failure, or nil once an update succeeds again.
	//
	// Returns:
	//   - error: the last failure or nil
	LastError() error
}

var _ AnimatedMeshInstance = &animatedMeshInstance{}

// NewAnimatedMeshInstance binds a factory to a live skeleton.
//
// Parameters:
//   - factory: the shared template
//   - skel: the skeleton driving this instance; must have a bone for every influenced id
//   - options: functional options for logging and naming
//
// Returns:
//   - AnimatedMeshInstance: the new instance, with outputs initialized to the unskinned geometry
//   - error: ErrInvalidArgument (wrapped) if either argument is unusable
func NewAnimatedMeshInstance(factory AnimatedMeshFactory, skel skeleton.Skeleton, options ...AnimatedMeshInstanceBuilderOption) (AnimatedMeshInstance, error) {
	if factory == nil || skel == nil {
		return nil, fmt.Errorf("%w: factory and skeleton are required", ErrInvalidArgument)
	}
	if maxBone := factory.MaxInfluenceBone(); int(maxBone) >= skel.BoneCount() {
		return nil, fmt.Errorf("%w: mesh references bone %d, skeleton has %d bones", ErrInvalidArgument, maxBone, skel.BoneCount())
	}

	a := &animatedMeshInstance{
		logger:          slog.Default(),
		factory:         factory,
		skel:            skel,
		skinningEnabled: true,
		socketByName:    make(map[string]*socket),
	}
	for _, opt := range options {
		opt(a)
	}

	a.syncFactory(true)
	Skin(SkinNone, SkinInput{
		Positions: factory.Positions(),
		Normals:   factory.Normals(),
		Tangents:  factory.Tangents(),
		Binormals: factory.Binormals(),
	}, nil, nil, 0, &a.out)
	a.current = factory.Positions()

	return a, nil
}

func (a *animatedMeshInstance) Name() string {
	return a.name
}

func (a *animatedMeshInstance) Factory() AnimatedMeshFactory {
	return a.factory
}

func (a *animatedMeshInstance) Skeleton() skeleton.Skeleton {
	return a.skel
}

func (a *animatedMeshInstance) VertexCount() int {
	return a.factory.VertexCount()
}

func (a *animatedMeshInstance) MorphWeight(index int) float32 {
	if index < 0 || index >= len(a.weights) {
		return 0
	}
	return a.weights[index]
}

func (a *animatedMeshInstance) MorphWeights() []float32 {
	return append([]float32(nil), a.weights...)
}

func (a *animatedMeshInstance) SetMorphWeight(index int, weight float32) error {
	a.syncFactory(false)
	if index < 0 || index >= len(a.weights) {
		return fmt.Errorf("%w: morph target %d of %d", ErrInvalidArgument, index, len(a.weights))
	}
	if a.weights[index] != weight {
		a.weights[index] = weight
		a.morphVersion++
	}
	return nil
}

func (a *animatedMeshInstance) SetMorphWeightByName(name string, weight float32) error {
	idx, ok := a.factory.MorphTargetIndex(name)
	if !ok {
		return fmt.Errorf("%w: unknown morph target %q", ErrInvalidArgument, name)
	}
	return a.SetMorphWeight(idx, weight)
}

func (a *animatedMeshInstance) SetSkinningEnabled(enabled bool) {
	a.skinningEnabled = enabled
}

func (a *animatedMeshInstance) Update(want SkinOutputs) {
	a.refresh(want)
	a.UpdateSockets()
}

func (a *animatedMeshInstance) MorphedPositions() []mgl32.Vec3 {
	a.syncFactory(false)
	return a.morphed()
}

func (a *animatedMeshInstance) Positions() []mgl32.Vec3 {
	a.refresh(OutputPositions)
	return a.out.Positions
}

func (a *animatedMeshInstance) Normals() ([]mgl32.Vec3, bool) {
	if a.factory.Normals() == nil {
		return nil, false
	}
	a.refresh(OutputNormals)
	return a.out.Normals, true
}

func (a *animatedMeshInstance) Tangents() ([]mgl32.Vec3, bool) {
	if a.factory.Tangents() == nil {
		return nil, false
	}
	a.refresh(OutputTangents)
	return a.out.Tangents, true
}

func (a *animatedMeshInstance) Binormals() ([]mgl32.Vec3, bool) {
	if a.factory.Binormals() == nil {
		return nil, false
	}
	a.refresh(OutputTangents)
	return a.out.Binormals, true
}

func (a *animatedMeshInstance) LastMode() SkinningMode {
	return a.lastMode
}

func (a *animatedMeshInstance) SkinCount() uint64 {
	return a.skinCount
}

func (a *animatedMeshInstance) SubmeshVisible(index int) bool {
	a.syncFactory(false)
	if index < 0 || index >= len(a.submeshes) {
		return false
	}
	return a.submeshes[index].visible
}

func (a *animatedMeshInstance) SetSubmeshVisible(index int, visible bool) error {
	a.syncFactory(false)
	if index < 0 || index >= len(a.submeshes) {
		return fmt.Errorf("%w: submesh %d of %d", ErrInvalidArgument, index, len(a.submeshes))
	}
	a.submeshes[index].visible = visible
	return nil
}

func (a *animatedMeshInstance) SubmeshMaterial(index int) string {
	a.syncFactory(false)
	if index < 0 || index >= len(a.submeshes) {
		return ""
	}
	if s := a.submeshes[index]; s.hasMaterial {
		return s.material
	}
	return a.factory.Submeshes()[index].Material
}

func (a *animatedMeshInstance) SetSubmeshMaterial(index int, material string) error {
	a.syncFactory(false)
	if index < 0 || index >= len(a.submeshes) {
		return fmt.Errorf("%w: submesh %d of %d", ErrInvalidArgument, index, len(a.submeshes))
	}
	a.submeshes[index].material = material
	a.submeshes[index].hasMaterial = true
	return nil
}

func (a *animatedMeshInstance) Sockets() []Socket {
	a.syncFactory(false)
	out := make([]Socket, len(a.sockets))
	for i, s := range a.sockets {
		out[i] = s
	}
	return out
}

func (a *animatedMeshInstance) Socket(name string) (Socket, bool) {
	a.syncFactory(false)
	s, ok := a.socketByName[name]
	if !ok {
		return nil, false
	}
	return s, true
}

func (a *animatedMeshInstance) UpdateSockets() {
	a.syncFactory(false)
	for _, s := range a.sockets {
		s.Update(a.skel)
	}
}

func (a *animatedMeshInstance) LastError() error {
	return a.lastErr
}

// syncFactory rebuilds per-factory state (morph weights, submesh overrides, sockets) after the
// factory publishes a new version. Existing weights, overrides and socket attachments are carried
// over by name or index where they still apply.
func (a *animatedMeshInstance) syncFactory(force bool) {
	v := a.factory.Version()
	if !force && v == a.factoryVersion {
		return
	}
	a.factoryVersion = v

	targets := a.factory.MorphTargets()
	weights := make([]float32, len(targets))
	copy(weights, a.weights)
	a.weights = weights
	a.morphVersion++

	subs := a.factory.Submeshes()
	states := make([]submeshState, len(subs))
	for i, s := range subs {
		if i < len(a.submeshes) {
			states[i] = a.submeshes[i]
			continue
		}
		states[i] = submeshState{visible: s.Visible}
	}
	a.submeshes = states

	defs := a.factory.SocketFactories()
	sockets := make([]*socket, len(defs))
	byName := make(map[string]*socket, len(defs))
	for i, def := range defs {
		s := newSocket(def)
		if old, ok := a.socketByName[def.Name]; ok && old.node != nil {
			s.node = old.node
		}
		sockets[i] = s
		byName[def.Name] = s
	}
	a.sockets = sockets
	a.socketByName = byName
}

// currentStamp captures the inputs skinning would read right now.
func (a *animatedMeshInstance) currentStamp() stamp {
	return stamp{
		skeleton: a.skel.GetVersion(),
		factory:  a.factoryVersion,
		morph:    a.morphVersion,
		skinning: a.skinningEnabled,
		valid:    true,
	}
}

// morphed returns the morph working positions, reblending only when weights or the factory changed.
func (a *animatedMeshInstance) morphed() []mgl32.Vec3 {
	want := stamp{factory: a.factoryVersion, morph: a.morphVersion, valid: true}
	if a.morphStamp == want {
		return a.current
	}
	base := a.factory.Positions()
	result := ApplyMorphs(base, a.factory.MorphTargets(), a.weights, a.working)
	if len(result) > 0 && &result[0] != &base[0] {
		a.working = result
	}
	a.current = result
	a.morphStamp = want
	return a.current
}

// refresh recomputes whichever requested outputs are stale. It never panics or returns errors to
// the caller; failures keep the previous buffers and are recorded in lastErr.
func (a *animatedMeshInstance) refresh(want SkinOutputs) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(fmt.Errorf("animesh: skinning panicked: %v", r))
		}
	}()

	a.syncFactory(false)
	haveNormals := a.factory.Normals() != nil
	haveTangents := a.factory.Tangents() != nil

	cur := a.currentStamp()
	var stale SkinOutputs
	if want.Has(OutputPositions) && a.positionStamp != cur {
		stale |= OutputPositions
	}
	if want.Has(OutputNormals) && haveNormals && a.normalStamp != cur {
		stale |= OutputNormals
	}
	if want.Has(OutputTangents) && haveTangents && a.tanStamp != cur {
		stale |= OutputTangents
	}
	if stale == 0 {
		return
	}

	if maxBone := a.factory.MaxInfluenceBone(); int(maxBone) >= a.skel.BoneCount() {
		a.fail(fmt.Errorf("%w: mesh references bone %d, skeleton has %d bones", ErrInvalidArgument, maxBone, a.skel.BoneCount()))
		return
	}

	mode := SelectSkinningMode(stale, haveNormals, haveTangents)
	influences := a.factory.Influences()
	if !a.skinningEnabled || len(influences) == 0 {
		mode = SkinNone
	}

	in := SkinInput{
		Positions: a.morphed(),
		Normals:   a.factory.Normals(),
		Tangents:  a.factory.Tangents(),
		Binormals: a.factory.Binormals(),
	}
	if mode != SkinNone && (!a.paletteValid || a.paletteStamp != cur.skeleton) {
		a.palette = a.skel.SkinningPalette(a.palette)
		a.paletteStamp = cur.skeleton
		a.paletteValid = true
	}

	Skin(mode, in, a.palette, influences, a.factory.InfluencesPerVertex(), &a.out)
	a.skinCount++
	a.lastMode = mode
	a.lastErr = nil

	a.positionStamp = cur
	if mode == SkinPositionNormal || mode == SkinPositionNormalTangent || (mode == SkinNone && haveNormals) {
		a.normalStamp = cur
	}
	if mode == SkinPositionNormalTangent || (mode == SkinNone && haveTangents) {
		a.tanStamp = cur
	}
}

// fail records a per-frame failure and logs it once per distinct message.
func (a *animatedMeshInstance) fail(err error) {
	if a.lastErr == nil || a.lastErr.Error() != err.Error() {
		a.logger.Warn("animesh update failed, keeping last good pose", "instance", a.name, "err", err)
	}
	a.lastErr = err
}
