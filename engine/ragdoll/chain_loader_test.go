package ragdoll

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainsYAML = `
chains:
  - name: torso
    bones: [hips, spine]
    mass: 4
    joints:
      - {parent: hips, child: spine, swing_limit: 0.5, twist_limit: 0.25}
  - name: leg
    bones: [thigh]
`

func TestLoadChains(t *testing.T) {
	defs, err := LoadChains(strings.NewReader(chainsYAML))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "torso", defs[0].Name)
	assert.Equal(t, []string{"hips", "spine"}, defs[0].Bones)
	assert.Equal(t, float32(4), defs[0].Mass)
	assert.Equal(t, DefaultBodyRadius, defs[0].BodyRadius)
	assert.Equal(t, JointDefinition{Parent: "hips", Child: "spine", SwingLimit: 0.5, TwistLimit: 0.25}, defs[0].Joints[0])
	assert.Equal(t, DefaultBodyMass, defs[1].Mass)
}

func TestLoadChainsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "chains:\n  - name: a\n    bones: [x]\n    colour: red\n",
		"duplicate chain": "chains:\n  - {name: a, bones: [x]}\n  - {name: a, bones: [y]}\n",
		"no bones":        "chains:\n  - {name: a}\n",
		"stray joint":     "chains:\n  - {name: a, bones: [x], joints: [{parent: x, child: z}]}\n",
		"negative limit":  "chains:\n  - {name: a, bones: [x, y], joints: [{parent: x, child: y, swing_limit: -1}]}\n",
		"not yaml":        "chains: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadChains(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadChainsEmptyDocument(t *testing.T) {
	defs, err := LoadChains(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadChainsFileFeedsBridge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(chainsYAML), 0o644))

	defs, err := LoadChainsFile(path)
	require.NoError(t, err)

	b, err := NewBridge(humanoid(t), &fakeSystem{}, WithChains(defs...))
	require.NoError(t, err)
	assert.Equal(t, 2, b.ChainCount())

	_, err = LoadChainsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
