package ragdoll

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
)

// chain is the bridge's record for one registered ChainDefinition.
type chain struct {
	def   ChainDefinition
	bones []common.BoneID // ascending, so parents precede children
	// parents[i] indexes the nearest ancestor of bones[i] inside the chain, or -1.
	parents []int
	// joints[i] connects bones[i] to bones[parents[i]]; nil when undefined.
	joints []*JointDefinition

	requested RagdollState
	actual    RagdollState

	built    bool
	buildErr error
	bodies   []RigidBody
	handles  []Joint
}

// bridge is the implementation of the Bridge interface.
type bridge struct {
	logger *slog.Logger
	skel   skeleton.Skeleton
	system DynamicSystem

	pending []ChainDefinition
	chains  []*chain
	byName  map[string]ChainID
	claimed map[common.BoneID]ChainID
}

// Bridge couples chains of skeleton bones to rigid bodies in an external DynamicSystem.
//
// Each chain is in exactly one RagdollState at a time and only changes state through
// SetBodyChainState. Bodies and joints are created the first time a chain leaves StateInactive
// and are reused afterwards. When that construction fails, the failure is cached, logged, and the
// chain stays on forward kinematics: ActualState reports StateInactive while RequestedState keeps
// the caller's request.
//
// The bridge is not safe for concurrent use and expects exclusive access to its skeleton during
// PreStep, Step and PostStep.
type Bridge interface {
	// Skeleton returns the skeleton whose bones the bridge drives.
	Skeleton() skeleton.Skeleton

	// System returns the dynamics system the bridge creates bodies in.
	System() DynamicSystem

	// AddChain registers a chain. No bodies are created until the chain is activated.
	//
	// Parameters:
	//   - def: the chain definition
	//
	// Returns:
	//   - ChainID: the new chain's id
	//   - error: ErrInvalidChain, ErrUnknownBone or ErrChainOverlap (wrapped)
	AddChain(def ChainDefinition) (ChainID, error)

	// Chain looks a chain up by name.
	//
	// Parameters:
	//   - name: the chain name
	//
	// Returns:
	//   - ChainID: the id
	//   - bool: true if found
	Chain(name string) (ChainID, bool)

	// ChainCount returns how many chains are registered. Ids run from 0 to ChainCount()-1.
	ChainCount() int

	// ChainBones returns a chain's bones in parent-before-child order, or nil for an unknown id.
	ChainBones(id ChainID) []common.BoneID

	// SetBodyChainState requests a state for a chain.
	//
	// Entering StateDynamic builds the chain's bodies if needed, seeds every body from the
	// current animated bone pose, and pins the bones at that pose so nothing moves until the
	// next physics step. Entering StateKinematic builds if needed and hands the bones back to
	// animation. Entering StateInactive leaves the bones at their current pose under forward
	// kinematics and stops touching the bodies.
	//
	// Parameters:
	//   - id: the chain
	//   - state: the requested state
	//
	// Returns:
	//   - error: ErrUnknownChain (wrapped) for a bad id, or the cached construction error when the
	//     chain cannot be built; in the latter case the request is still recorded
	SetBodyChainState(id ChainID, state RagdollState) error

	// RequestedState returns the last state requested for a chain.
	RequestedState(id ChainID) RagdollState

	// ActualState returns the state the chain is really in; StateInactive after a failed build.
	ActualState(id ChainID) RagdollState

	// ChainError returns the chain's cached construction error, if any.
	ChainError(id ChainID) error

	// Body returns the rigid body simulating a bone of a built chain.
	//
	// Parameters:
	//   - id: the chain
	//   - bone: a bone of the chain
	//
	// Returns:
	//   - RigidBody: the body handle
	//   - bool: false if the chain is unbuilt or does not own the bone
	Body(id ChainID, bone common.BoneID) (RigidBody, bool)

	// PreStep pushes the animated pose of every kinematic chain into its bodies.
	PreStep()

	// Step advances the dynamics system when at least one chain is active.
	Step(dt float32)

	// PostStep writes every dynamic body's pose over its bone's forward-kinematics result.
	PostStep()

	// Update runs PreStep, Step and PostStep in order.
	Update(dt float32)
}

var _ Bridge = &bridge{}

// NewBridge creates a bridge over a skeleton and a dynamics system.
//
// Parameters:
//   - skel: the skeleton whose bones are driven
//   - system: the dynamics system bodies are created in
//   - options: functional options (logger, initial chains)
//
// Returns:
//   - Bridge: the new bridge with every chain inactive
//   - error: an error if an argument is nil or an initial chain is rejected
func NewBridge(skel skeleton.Skeleton, system DynamicSystem, options ...BridgeBuilderOption) (Bridge, error) {
	if skel == nil || system == nil {
		return nil, fmt.Errorf("ragdoll: skeleton and dynamics system are required")
	}
	b := &bridge{
		logger:  slog.Default(),
		skel:    skel,
		system:  system,
		byName:  make(map[string]ChainID),
		claimed: make(map[common.BoneID]ChainID),
	}
	for _, opt := range options {
		opt(b)
	}

	for _, def := range b.pending {
		if _, err := b.AddChain(def); err != nil {
			return nil, err
		}
	}
	b.pending = nil
	return b, nil
}

func (b *bridge) Skeleton() skeleton.Skeleton {
	return b.skel
}

func (b *bridge) System() DynamicSystem {
	return b.system
}

func (b *bridge) AddChain(def ChainDefinition) (ChainID, error) {
	if err := def.Validate(); err != nil {
		return -1, err
	}
	if _, dup := b.byName[def.Name]; dup {
		return -1, fmt.Errorf("%w: duplicate chain %q", ErrInvalidChain, def.Name)
	}
	if def.BodyRadius <= 0 {
		def.BodyRadius = DefaultBodyRadius
	}
	if def.Mass <= 0 {
		def.Mass = DefaultBodyMass
	}

	sf := b.skel.Factory()
	bones := make([]common.BoneID, 0, len(def.Bones))
	for _, name := range def.Bones {
		id, ok := sf.BoneIndex(name)
		if !ok {
			return -1, fmt.Errorf("%w: chain %q bone %q", ErrUnknownBone, def.Name, name)
		}
		if owner, taken := b.claimed[id]; taken {
			return -1, fmt.Errorf("%w: bone %q is in chain %q", ErrChainOverlap, name, b.chains[owner].def.Name)
		}
		bones = append(bones, id)
	}
	slices.Sort(bones)

	index := make(map[common.BoneID]int, len(bones))
	for i, id := range bones {
		index[id] = i
	}
	parents := make([]int, len(bones))
	for i, id := range bones {
		parents[i] = -1
		for p := sf.Parent(id); p != common.NoBone; p = sf.Parent(p) {
			if pi, ok := index[p]; ok {
				parents[i] = pi
				break
			}
		}
	}

	joints := make([]*JointDefinition, len(bones))
	for k := range def.Joints {
		j := &def.Joints[k]
		child, _ := sf.BoneIndex(j.Child)
		parent, _ := sf.BoneIndex(j.Parent)
		ci := index[child]
		if parents[ci] < 0 || bones[parents[ci]] != parent {
			return -1, fmt.Errorf("%w: chain %q joint %s-%s does not join a bone to its nearest chain ancestor", ErrInvalidChain, def.Name, j.Parent, j.Child)
		}
		joints[ci] = j
	}

	id := ChainID(len(b.chains))
	b.chains = append(b.chains, &chain{
		def:     def,
		bones:   bones,
		parents: parents,
		joints:  joints,
	})
	b.byName[def.Name] = id
	for _, bone := range bones {
		b.claimed[bone] = id
	}
	return id, nil
}

func (b *bridge) Chain(name string) (ChainID, bool) {
	id, ok := b.byName[name]
	return id, ok
}

func (b *bridge) ChainCount() int {
	return len(b.chains)
}

func (b *bridge) ChainBones(id ChainID) []common.BoneID {
	c := b.chain(id)
	if c == nil {
		return nil
	}
	return c.bones
}

func (b *bridge) SetBodyChainState(id ChainID, state RagdollState) error {
	c := b.chain(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownChain, id)
	}
	if state < StateInactive || state > StateKinematic {
		return fmt.Errorf("ragdoll: invalid state %d", state)
	}
	c.requested = state
	if state == c.actual {
		return nil
	}

	if state == StateInactive {
		b.deactivate(c)
		return nil
	}

	if err := b.build(c); err != nil {
		return err
	}

	if c.actual == StateDynamic {
		b.releaseBones(c)
	}
	poses := b.animatedPose(c)
	for i, body := range c.bodies {
		body.SetEnabled(true)
		body.SetKinematic(state == StateKinematic)
		body.SetWorldTransform(poses[i])
	}
	for _, j := range c.handles {
		j.SetEnabled(true)
	}
	if state == StateDynamic {
		for i, bone := range c.bones {
			// ids come from the skeleton's own factory, so this cannot fail
			_ = b.skel.SetBoneWorldOverride(bone, poses[i])
		}
	}
	c.actual = state
	return nil
}

func (b *bridge) RequestedState(id ChainID) RagdollState {
	if c := b.chain(id); c != nil {
		return c.requested
	}
	return StateInactive
}

func (b *bridge) ActualState(id ChainID) RagdollState {
	if c := b.chain(id); c != nil {
		return c.actual
	}
	return StateInactive
}

func (b *bridge) ChainError(id ChainID) error {
	if c := b.chain(id); c != nil {
		return c.buildErr
	}
	return fmt.Errorf("%w: %d", ErrUnknownChain, id)
}

func (b *bridge) Body(id ChainID, bone common.BoneID) (RigidBody, bool) {
	c := b.chain(id)
	if c == nil || !c.built {
		return nil, false
	}
	i, found := slices.BinarySearch(c.bones, bone)
	if !found {
		return nil, false
	}
	return c.bodies[i], true
}

func (b *bridge) PreStep() {
	defer b.recoverPhase("pre-step")
	for _, c := range b.chains {
		if c.actual != StateKinematic {
			continue
		}
		for i, bone := range c.bones {
			world, _ := b.skel.GetBoneWorldTransform(bone)
			c.bodies[i].SetWorldTransform(world)
		}
	}
}

func (b *bridge) Step(dt float32) {
	defer b.recoverPhase("step")
	for _, c := range b.chains {
		if c.actual != StateInactive {
			b.system.Step(dt)
			return
		}
	}
}

func (b *bridge) PostStep() {
	defer b.recoverPhase("post-step")
	for _, c := range b.chains {
		if c.actual != StateDynamic {
			continue
		}
		for i, bone := range c.bones {
			_ = b.skel.SetBoneWorldOverride(bone, c.bodies[i].GetWorldTransform())
		}
	}
}

func (b *bridge) Update(dt float32) {
	b.PreStep()
	b.Step(dt)
	b.PostStep()
}

// chain returns the record for id, or nil.
func (b *bridge) chain(id ChainID) *chain {
	if id < 0 || int(id) >= len(b.chains) {
		return nil
	}
	return b.chains[id]
}

// build creates the chain's bodies and joints once. A failure is cached and returned on every
// later activation without retrying.
func (b *bridge) build(c *chain) error {
	if c.built {
		return nil
	}
	if c.buildErr != nil {
		return c.buildErr
	}

	err := b.construct(c)
	if err == nil {
		c.built = true
		return nil
	}

	for _, j := range c.handles {
		j.SetEnabled(false)
	}
	for _, body := range c.bodies {
		body.SetEnabled(false)
	}
	c.handles, c.bodies = nil, nil
	c.buildErr = err
	c.actual = StateInactive
	b.logger.Warn("ragdoll chain construction failed, staying on forward kinematics",
		"chain", c.def.Name, "requested", c.requested.String(), "err", err)
	return err
}

// construct asks the system for one body per bone and one joint per in-chain parent link.
func (b *bridge) construct(c *chain) error {
	sf := b.skel.Factory()
	for i, p := range c.parents {
		if p >= 0 && c.joints[i] == nil {
			return fmt.Errorf("%w: chain %q has no joint between %q and %q",
				ErrMissingJoint, c.def.Name, sf.BoneName(c.bones[p]), sf.BoneName(c.bones[i]))
		}
	}

	poses := b.animatedPose(c)
	c.bodies = make([]RigidBody, 0, len(c.bones))
	for i, bone := range c.bones {
		body, err := b.system.CreateBody(BodyDescriptor{
			Name:      c.def.Name + "/" + sf.BoneName(bone),
			Transform: poses[i],
			Radius:    c.def.BodyRadius,
			Mass:      c.def.Mass,
			Kinematic: true,
		})
		if err != nil {
			return fmt.Errorf("ragdoll: chain %q body %q: %w", c.def.Name, sf.BoneName(bone), err)
		}
		body.SetEnabled(false)
		c.bodies = append(c.bodies, body)
	}

	for i, p := range c.parents {
		if p < 0 {
			continue
		}
		jd := c.joints[i]
		joint, err := b.system.CreateJoint(JointDescriptor{
			Name:         jd.Parent + "-" + jd.Child,
			Parent:       c.bodies[p],
			Child:        c.bodies[i],
			ParentAnchor: poses[p].Inverse().Apply(poses[i].Translation),
			SwingLimit:   jd.SwingLimit,
			TwistLimit:   jd.TwistLimit,
		})
		if err != nil {
			return fmt.Errorf("ragdoll: chain %q joint %s-%s: %w", c.def.Name, jd.Parent, jd.Child, err)
		}
		joint.SetEnabled(false)
		c.handles = append(c.handles, joint)
	}
	return nil
}

// animatedPose snapshots the current world transform of every chain bone.
func (b *bridge) animatedPose(c *chain) []common.Transform {
	worlds := b.skel.WorldTransforms()
	poses := make([]common.Transform, len(c.bones))
	for i, bone := range c.bones {
		poses[i] = worlds[bone]
	}
	return poses
}

// releaseBones hands dynamic bones back to forward kinematics at their simulated pose by baking
// each override into a local transform before clearing it.
func (b *bridge) releaseBones(c *chain) {
	sf := b.skel.Factory()
	worlds := b.skel.WorldTransforms()
	locals := make([]common.Transform, len(c.bones))
	for i, bone := range c.bones {
		if parent := sf.Parent(bone); parent != common.NoBone {
			locals[i] = common.Compose(worlds[parent].Inverse(), worlds[bone])
		} else {
			locals[i] = worlds[bone]
		}
	}
	for i, bone := range c.bones {
		b.skel.ClearBoneWorldOverride(bone)
		_ = b.skel.SetBoneLocalTransform(bone, locals[i])
	}
}

// deactivate returns a chain to pure forward kinematics and parks its bodies.
func (b *bridge) deactivate(c *chain) {
	if c.actual == StateDynamic {
		b.releaseBones(c)
	}
	for _, j := range c.handles {
		j.SetEnabled(false)
	}
	for _, body := range c.bodies {
		body.SetEnabled(false)
	}
	c.actual = StateInactive
}

// recoverPhase keeps a misbehaving dynamics system from taking down the frame.
func (b *bridge) recoverPhase(phase string) {
	if r := recover(); r != nil {
		b.logger.Error("ragdoll update panicked", "phase", phase, "panic", r)
	}
}
