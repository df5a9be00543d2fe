package skeleton

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-animesh/common"
)

// skeletonFactory is the implementation of the SkeletonFactory interface.
type skeletonFactory struct {
	names       []string
	parents     []common.BoneID
	bindLocal   []common.Transform
	bindWorld   []common.Transform
	inverseBind []common.Transform
	roots       []common.BoneID

	nameToID map[string]common.BoneID
	// remap maps a definition's position in the slice passed to NewSkeletonFactory to its arena id.
	remap []common.BoneID

	// inverseBindOverride is indexed by definition order; consumed during construction only.
	inverseBindOverride []common.Transform
}

// SkeletonFactory is the immutable template of a skeleton: a dense arena of bones whose ids are
// assigned in topological order, so iterating ids ascending always visits a parent before any of
// its children.
//
// A SkeletonFactory is read-only after construction and may be shared by any number of live
// Skeleton instances.
type SkeletonFactory interface {
	// BoneCount returns the number of bones in the arena.
	//
	// Returns:
	//   - int: the bone count
	BoneCount() int

	// BoneName returns the name of a bone, or an empty string for an invalid id.
	//
	// Parameters:
	//   - id: the bone id
	//
	// Returns:
	//   - string: the bone's name
	BoneName(id common.BoneID) string

	// BoneIndex looks a bone up by name.
	//
	// Parameters:
	//   - name: the bone name
	//
	// Returns:
	//   - common.BoneID: the bone id, or common.NoBone when not found
	//   - bool: true if the bone exists
	BoneIndex(name string) (common.BoneID, bool)

	// Parent returns the parent id of a bone, or common.NoBone for roots and invalid ids.
	//
	// Parameters:
	//   - id: the bone id
	//
	// Returns:
	//   - common.BoneID: the parent id
	Parent(id common.BoneID) common.BoneID

	// Roots returns the ids of all bones without a parent, ascending.
	//
	// Returns:
	//   - []common.BoneID: the root bone ids
	Roots() []common.BoneID

	// BindLocal returns a bone's bind-pose transform relative to its parent.
	//
	// Parameters:
	//   - id: the bone id
	//
	// Returns:
	//   - common.Transform: the bind-pose local transform, identity for invalid ids
	BindLocal(id common.BoneID) common.Transform

	// BindWorld returns a bone's bind-pose transform in model space.
	//
	// Parameters:
	//   - id: the bone id
	//
	// Returns:
	//   - common.Transform: the bind-pose world transform, identity for invalid ids
	BindWorld(id common.BoneID) common.Transform

	// InverseBind returns the transform taking model-space bind-pose geometry into the bone's space.
	//
	// Parameters:
	//   - id: the bone id
	//
	// Returns:
	//   - common.Transform: the inverse bind transform, identity for invalid ids
	InverseBind(id common.BoneID) common.Transform

	// Remap returns the arena id assigned to each definition passed at construction, by definition
	// position. Importers use it to translate source joint indices into arena ids.
	//
	// Returns:
	//   - []common.BoneID: the definition-to-arena mapping
	Remap() []common.BoneID

	// NewInstance creates a live Skeleton in bind pose backed by this factory.
	//
	// Returns:
	//   - Skeleton: the new skeleton instance
	NewInstance() Skeleton
}

var _ SkeletonFactory = &skeletonFactory{}

// NewSkeletonFactory builds a skeleton arena from bone definitions given in any order.
// Parent references are validated (in range, not self, no cycles) and bones are re-indexed
// breadth-first from the roots, so the resulting ids are topologically ordered.
//
// Parameters:
//   - defs: the bone definitions; Parent refers to positions within defs
//   - options: functional options applied before the arena is built
//
// Returns:
//   - SkeletonFactory: the built factory
//   - error: ErrInvalidHierarchy or ErrDuplicateBone (wrapped) when the definitions are unusable
func NewSkeletonFactory(defs []common.BoneDefinition, options ...SkeletonFactoryBuilderOption) (SkeletonFactory, error) {
	f := &skeletonFactory{}
	for _, opt := range options {
		opt(f)
	}

	n := len(defs)
	if f.inverseBindOverride != nil && len(f.inverseBindOverride) != n {
		return nil, fmt.Errorf("%w: %d inverse bind transforms for %d bones", ErrInvalidHierarchy, len(f.inverseBindOverride), n)
	}

	seen := make(map[string]int, n)
	children := make([][]int, n)
	var rootDefs []int
	for i, d := range defs {
		if prev, ok := seen[d.Name]; ok && d.Name != "" {
			return nil, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateBone, d.Name, prev, i)
		}
		seen[d.Name] = i

		switch {
		case d.Parent < 0:
			rootDefs = append(rootDefs, i)
		case int(d.Parent) >= n:
			return nil, fmt.Errorf("%w: bone %d parent %d out of range", ErrInvalidHierarchy, i, d.Parent)
		case int(d.Parent) == i:
			return nil, fmt.Errorf("%w: bone %d is its own parent", ErrInvalidHierarchy, i)
		default:
			children[d.Parent] = append(children[d.Parent], i)
		}
	}

	// BFS from roots; anything unreachable sits on a cycle.
	order := make([]int, 0, n)
	queue := append(make([]int, 0, n), rootDefs...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		queue = append(queue, children[cur]...)
	}
	if len(order) != n {
		return nil, fmt.Errorf("%w: %d bones unreachable from any root (cycle)", ErrInvalidHierarchy, n-len(order))
	}

	f.names = make([]string, n)
	f.parents = make([]common.BoneID, n)
	f.bindLocal = make([]common.Transform, n)
	f.bindWorld = make([]common.Transform, n)
	f.inverseBind = make([]common.Transform, n)
	f.nameToID = make(map[string]common.BoneID, n)
	f.remap = make([]common.BoneID, n)

	for newIdx, oldIdx := range order {
		f.remap[oldIdx] = common.BoneID(newIdx)
	}
	for newIdx, oldIdx := range order {
		d := defs[oldIdx]
		id := common.BoneID(newIdx)
		f.names[id] = d.Name
		f.bindLocal[id] = d.Bind
		if d.Parent < 0 {
			f.parents[id] = common.NoBone
			f.roots = append(f.roots, id)
			f.bindWorld[id] = d.Bind
		} else {
			p := f.remap[d.Parent]
			f.parents[id] = p
			f.bindWorld[id] = common.Compose(f.bindWorld[p], d.Bind)
		}
		if d.Name != "" {
			f.nameToID[d.Name] = id
		}
		if f.inverseBindOverride != nil {
			f.inverseBind[id] = f.inverseBindOverride[oldIdx]
		} else {
			f.inverseBind[id] = f.bindWorld[id].Inverse()
		}
	}
	f.inverseBindOverride = nil

	return f, nil
}

func (f *skeletonFactory) BoneCount() int {
	return len(f.names)
}

func (f *skeletonFactory) BoneName(id common.BoneID) string {
	if !id.Valid(len(f.names)) {
		return ""
	}
	return f.names[id]
}

func (f *skeletonFactory) BoneIndex(name string) (common.BoneID, bool) {
	id, ok := f.nameToID[name]
	if !ok {
		return common.NoBone, false
	}
	return id, true
}

func (f *skeletonFactory) Parent(id common.BoneID) common.BoneID {
	if !id.Valid(len(f.parents)) {
		return common.NoBone
	}
	return f.parents[id]
}

func (f *skeletonFactory) Roots() []common.BoneID {
	return append([]common.BoneID(nil), f.roots...)
}

func (f *skeletonFactory) BindLocal(id common.BoneID) common.Transform {
	if !id.Valid(len(f.bindLocal)) {
		return common.IdentityTransform()
	}
	return f.bindLocal[id]
}

func (f *skeletonFactory) BindWorld(id common.BoneID) common.Transform {
	if !id.Valid(len(f.bindWorld)) {
		return common.IdentityTransform()
	}
	return f.bindWorld[id]
}

func (f *skeletonFactory) InverseBind(id common.BoneID) common.Transform {
	if !id.Valid(len(f.inverseBind)) {
		return common.IdentityTransform()
	}
	return f.inverseBind[id]
}

func (f *skeletonFactory) Remap() []common.BoneID {
	return append([]common.BoneID(nil), f.remap...)
}

func (f *skeletonFactory) NewInstance() Skeleton {
	return newSkeleton(f)
}
