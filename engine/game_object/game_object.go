package game_object

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/model"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
)

var (
	// ErrNoInstance is returned by NewGameObject when no mesh instance is given.
	ErrNoInstance = errors.New("game_object: nil mesh instance")
	// ErrSkeletonMismatch is returned when the animator or ragdoll bridge drives a different
	// skeleton than the mesh instance.
	ErrSkeletonMismatch = errors.New("game_object: skeleton mismatch")
	// ErrUnknownSocket is returned by AttachTo for a socket the parent does not have.
	ErrUnknownSocket = errors.New("game_object: unknown socket")
)

type gameObject struct {
	id       uint64
	name     string
	enabled  atomic.Bool
	instance animesh.AnimatedMeshInstance
	mdl      model.Model
	animator animator.Animator
	bridge   ragdoll.Bridge
	outputs  animesh.SkinOutputs
	frames   atomic.Uint64

	// transform is also written by a parent's socket, possibly from another worker.
	mu        sync.RWMutex
	transform common.Transform
}

// GameObject is a scene entity built around one animated mesh instance. It owns the instance's
// per-frame pipeline: ragdoll step, clip playback, forward kinematics, morphing, skinning and socket
// updates, in that order. A GameObject is also an animesh.SceneNode, so it can follow another
// object's socket.
type GameObject interface {
	animesh.SceneNode

	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Name returns the object's name. Defaults to the instance name.
	//
	// Returns:
	//   - string: the object name
	Name() string

	// Enabled returns whether the object takes part in scene updates.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object takes part in scene updates.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Instance returns the animated mesh instance the object drives.
	//
	// Returns:
	//   - animesh.AnimatedMeshInstance: the instance
	Instance() animesh.AnimatedMeshInstance

	// Skeleton returns the instance's skeleton.
	//
	// Returns:
	//   - skeleton.Skeleton: the skeleton
	Skeleton() skeleton.Skeleton

	// Model returns the render emission model, or nil if the object does not emit.
	//
	// Returns:
	//   - model.Model: the model or nil
	Model() model.Model

	// SetModel replaces the render emission model. Pass nil to stop emitting.
	//
	// Parameters:
	//   - m: the Model to associate
	SetModel(m model.Model)

	// Animator returns the clip player driving the skeleton, or nil.
	//
	// Returns:
	//   - animator.Animator: the animator or nil
	Animator() animator.Animator

	// SetAnimator sets the clip player. Pass nil to detach.
	//
	// Parameters:
	//   - anim: the animator, which must drive this object's skeleton
	//
	// Returns:
	//   - error: ErrSkeletonMismatch if anim drives another skeleton
	SetAnimator(anim animator.Animator) error

	// Bridge returns the ragdoll bridge, or nil.
	//
	// Returns:
	//   - ragdoll.Bridge: the bridge or nil
	Bridge() ragdoll.Bridge

	// SetBridge sets the ragdoll bridge. Pass nil to detach.
	//
	// Parameters:
	//   - b: the bridge, which must drive this object's skeleton
	//
	// Returns:
	//   - error: ErrSkeletonMismatch if b drives another skeleton
	SetBridge(b ragdoll.Bridge) error

	// Outputs returns the skinned buffers Update keeps current.
	//
	// Returns:
	//   - animesh.SkinOutputs: the requested outputs
	Outputs() animesh.SkinOutputs

	// SetOutputs sets the skinned buffers Update keeps current.
	//
	// Parameters:
	//   - outputs: the requested outputs
	SetOutputs(outputs animesh.SkinOutputs)

	// Transform returns the object's world placement.
	//
	// Returns:
	//   - common.Transform: the world transform
	Transform() common.Transform

	// ModelData packs the world placement for GPU upload.
	//
	// Returns:
	//   - model.GPUModelData: the model matrix
	ModelData() model.GPUModelData

	// AttachTo makes this object follow a socket of parent.
	//
	// Parameters:
	//   - parent: the object owning the socket
	//   - socket: the socket name
	//
	// Returns:
	//   - error: ErrUnknownSocket if parent has no such socket
	AttachTo(parent GameObject, socket string) error

	// Update runs one frame: ragdoll PreStep, Step and PostStep, then animator playback with
	// forward kinematics, then morph blending, skinning and socket updates.
	//
	// Parameters:
	//   - dt: the frame time in seconds
	Update(dt float32)

	// Emit returns the object's render meshes, rebuilt only when something changed. It returns nil
	// when the object has no model.
	//
	// Returns:
	//   - []model.RenderMesh: the current render meshes
	Emit() []model.RenderMesh

	// Frames returns how many times Update ran.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64
}

var _ GameObject = &gameObject{}

// NewGameObject creates a GameObject driving instance. By default it is enabled, emits through a
// model.Model over the instance and requests every output the factory can produce.
//
// Parameters:
//   - instance: the animated mesh instance
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
//   - error: ErrNoInstance or ErrSkeletonMismatch
func NewGameObject(instance animesh.AnimatedMeshInstance, options ...GameObjectBuilderOption) (GameObject, error) {
	if instance == nil {
		return nil, ErrNoInstance
	}
	obj := &gameObject{
		name:      instance.Name(),
		instance:  instance,
		mdl:       model.NewModel(instance),
		outputs:   model.RequiredOutputs(instance.Factory()),
		transform: common.IdentityTransform(),
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	if obj.animator != nil && obj.animator.Skeleton() != instance.Skeleton() {
		return nil, fmt.Errorf("%w: animator", ErrSkeletonMismatch)
	}
	if obj.bridge != nil && obj.bridge.Skeleton() != instance.Skeleton() {
		return nil, fmt.Errorf("%w: ragdoll bridge", ErrSkeletonMismatch)
	}
	return obj, nil
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Instance() animesh.AnimatedMeshInstance {
	return g.instance
}

func (g *gameObject) Skeleton() skeleton.Skeleton {
	return g.instance.Skeleton()
}

func (g *gameObject) Model() model.Model {
	return g.mdl
}

func (g *gameObject) SetModel(m model.Model) {
	g.mdl = m
}

func (g *gameObject) Animator() animator.Animator {
	return g.animator
}

func (g *gameObject) SetAnimator(anim animator.Animator) error {
	if anim != nil && anim.Skeleton() != g.instance.Skeleton() {
		return fmt.Errorf("%w: animator", ErrSkeletonMismatch)
	}
	g.animator = anim
	return nil
}

func (g *gameObject) Bridge() ragdoll.Bridge {
	return g.bridge
}

func (g *gameObject) SetBridge(b ragdoll.Bridge) error {
	if b != nil && b.Skeleton() != g.instance.Skeleton() {
		return fmt.Errorf("%w: ragdoll bridge", ErrSkeletonMismatch)
	}
	g.bridge = b
	return nil
}

func (g *gameObject) Outputs() animesh.SkinOutputs {
	return g.outputs
}

func (g *gameObject) SetOutputs(outputs animesh.SkinOutputs) {
	g.outputs = outputs
}

func (g *gameObject) Transform() common.Transform {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transform
}

func (g *gameObject) SetTransform(t common.Transform) {
	g.mu.Lock()
	g.transform = t
	g.mu.Unlock()
}

func (g *gameObject) ModelData() model.GPUModelData {
	return model.NewModelData(g.Transform())
}

func (g *gameObject) AttachTo(parent GameObject, socket string) error {
	s, ok := parent.Instance().Socket(socket)
	if !ok {
		return fmt.Errorf("%w: %q on %q", ErrUnknownSocket, socket, parent.Name())
	}
	s.Attach(g)
	return nil
}

func (g *gameObject) Update(dt float32) {
	if g.bridge != nil {
		g.bridge.PreStep()
		g.bridge.Step(dt)
		g.bridge.PostStep()
	}
	if g.animator != nil {
		g.animator.PrepareFrame(dt)
	}
	g.instance.Update(g.outputs)
	g.frames.Add(1)
}

func (g *gameObject) Emit() []model.RenderMesh {
	if g.mdl == nil {
		return nil
	}
	return g.mdl.Meshes()
}

func (g *gameObject) Frames() uint64 {
	return g.frames.Load()
}
