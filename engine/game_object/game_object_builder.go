package game_object

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/model"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithName sets the name of the GameObject, overriding the instance name.
//
// Parameters:
//   - name: the object name
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the name
func WithName(name string) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.name = name
	}
}

// WithEnabled sets whether the GameObject takes part in scene updates.
//
// Parameters:
//   - enabled: true to update the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithModel sets the render emission Model for this GameObject. Pass nil to disable emission.
//
// Parameters:
//   - m: the Model to associate
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Model
func WithModel(m model.Model) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.mdl = m
	}
}

// WithAnimator sets the clip player driving the object's skeleton.
//
// Parameters:
//   - anim: the animator
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Animator
func WithAnimator(anim animator.Animator) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.animator = anim
	}
}

// WithBridge sets the ragdoll bridge stepped before animation each frame.
//
// Parameters:
//   - b: the ragdoll bridge
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Bridge
func WithBridge(b ragdoll.Bridge) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.bridge = b
	}
}

// WithOutputs sets the skinned buffers kept current by Update.
//
// Parameters:
//   - outputs: the requested outputs
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the outputs
func WithOutputs(outputs animesh.SkinOutputs) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.outputs = outputs
	}
}

// WithTransform sets the initial world placement of the GameObject.
//
// Parameters:
//   - t: the world transform
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the transform
func WithTransform(t common.Transform) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transform = t
	}
}
