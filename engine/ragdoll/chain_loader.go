package ragdoll

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBodyRadius is used when a chain does not specify a body radius.
	DefaultBodyRadius float32 = 0.05

	// DefaultBodyMass is used when a chain does not specify a per-body mass.
	DefaultBodyMass float32 = 1
)

// chainFile is the top-level layout of a chain definition document.
type chainFile struct {
	Chains []ChainDefinition `yaml:"chains"`
}

// LoadChains decodes chain definitions from a YAML document of the form:
//
//	chains:
//	  - name: left_arm
//	    bones: [upper_arm.L, forearm.L, hand.L]
//	    body_radius: 0.04
//	    mass: 2
//	    joints:
//	      - {parent: upper_arm.L, child: forearm.L, swing_limit: 1.5}
//	      - {parent: forearm.L, child: hand.L}
//
// Unknown fields are rejected. Missing radius and mass take DefaultBodyRadius and DefaultBodyMass.
// Bone names are only checked against a skeleton when the chain is added to a Bridge.
//
// Parameters:
//   - r: the YAML source
//
// Returns:
//   - []ChainDefinition: the chains in document order
//   - error: a decode error, or ErrInvalidChain (wrapped) for malformed chains
func LoadChains(r io.Reader) ([]ChainDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file chainFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("ragdoll: decode chains: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Chains))
	for i := range file.Chains {
		def := &file.Chains[i]
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate chain %q", ErrInvalidChain, def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.BodyRadius <= 0 {
			def.BodyRadius = DefaultBodyRadius
		}
		if def.Mass <= 0 {
			def.Mass = DefaultBodyMass
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Chains, nil
}

// LoadChainsFile reads chain definitions from a YAML file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - []ChainDefinition: the chains in document order
//   - error: a read, decode or validation error
func LoadChainsFile(path string) ([]ChainDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ragdoll: read %s: %w", path, err)
	}
	return LoadChains(bytes.NewReader(data))
}

// Validate checks the definition's internal consistency: a name, at least one bone, no repeated
// bones, and joints that only reference bones of the chain.
//
// Returns:
//   - error: ErrInvalidChain (wrapped) describing the first problem, or nil
func (d ChainDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: chain has no name", ErrInvalidChain)
	}
	if len(d.Bones) == 0 {
		return fmt.Errorf("%w: chain %q has no bones", ErrInvalidChain, d.Name)
	}
	bones := make(map[string]struct{}, len(d.Bones))
	for _, b := range d.Bones {
		if _, dup := bones[b]; dup {
			return fmt.Errorf("%w: chain %q lists bone %q twice", ErrInvalidChain, d.Name, b)
		}
		bones[b] = struct{}{}
	}
	for _, j := range d.Joints {
		_, okP := bones[j.Parent]
		_, okC := bones[j.Child]
		if !okP || !okC {
			return fmt.Errorf("%w: chain %q joint %s-%s references a bone outside the chain", ErrInvalidChain, d.Name, j.Parent, j.Child)
		}
		if j.SwingLimit < 0 || j.TwistLimit < 0 {
			return fmt.Errorf("%w: chain %q joint %s-%s has a negative limit", ErrInvalidChain, d.Name, j.Parent, j.Child)
		}
	}
	return nil
}
